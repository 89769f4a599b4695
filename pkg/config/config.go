// Package config loads the optional TOML configuration file. Every field
// falls back to a built-in default, so running without a file works.
package config

import (
	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"

	"github.com/rotty/deb-audit/pkg/fetch/udd"
	"github.com/rotty/deb-audit/pkg/utils"
)

type Config struct {
	// Release is the Debian release audited when the command line does not
	// name one.
	Release  string     `toml:"release"`
	CacheDir string     `toml:"cache_dir"`
	UDD      udd.Config `toml:"udd"`
}

func Default() Config {
	return Config{
		Release:  "stable",
		CacheDir: utils.CacheDir(),
		UDD:      udd.DefaultConfig(),
	}
}

// Load reads the file at path over the defaults. Unknown keys are rejected
// so typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, xerrors.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// LoadDefault reads the per-user config file if it exists and returns the
// built-in defaults otherwise.
func LoadDefault() (Config, error) {
	path := utils.ConfigPath()
	ok, err := utils.Exists(path)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to stat config %s: %w", path, err)
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}
