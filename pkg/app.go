package pkg

import (
	"github.com/urfave/cli"
)

func NewApp(version string) *cli.App {
	app := cli.NewApp()
	app.Name = "deb-audit"
	app.Version = version
	app.Usage = "Audit Debian binary packages against the security tracker"
	app.ArgsUsage = "FILE..."

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "release, r",
			Usage: "Debian release to audit against",
		},
		cli.BoolFlag{
			Name:  "show-all, a",
			Usage: "list ignored and fixed issues, not only present ones",
		},
		cli.BoolFlag{
			Name:  "json",
			Usage: "emit results as a JSON document",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable debug logging",
		},
		cli.StringFlag{
			Name:  "cache-dir",
			Usage: "cache directory path",
		},
		cli.StringFlag{
			Name:  "policy",
			Usage: "classification policy file",
		},
	}
	app.Action = run

	return app
}
