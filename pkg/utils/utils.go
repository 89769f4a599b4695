package utils

import (
	"os"
	"path/filepath"
)

// CacheDir returns the default location for the on-disk issue cache.
func CacheDir() string {
	tmpDir, err := os.UserCacheDir()
	if err != nil {
		tmpDir = os.TempDir()
	}
	return filepath.Join(tmpDir, "deb-audit")
}

// ConfigPath returns the default location of the optional config file.
func ConfigPath() string {
	confDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(confDir, "deb-audit", "config.toml")
}

func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}
