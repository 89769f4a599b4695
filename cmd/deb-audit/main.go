package main

import (
	"os"

	"github.com/rotty/deb-audit/pkg"
	"github.com/rotty/deb-audit/pkg/log"
)

var (
	version = "0.0.1"
)

func main() {
	app := pkg.NewApp(version)
	if err := app.Run(os.Args); err != nil {
		log.Errorf("%s", err)
		os.Exit(2)
	}
}
