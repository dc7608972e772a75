package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

//nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := cli.NewApp()
	app.Name = "pord"
	app.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	app.Usage = "proof of reserves auditor for bitcoin custody vaults"
	app.Flags = globalFlags
	app.Before = bindFlags
	app.Commands = append(
		cli.Commands{},
		auditCmd,
		serveCmd,
		vaultsCmd,
		scriptCmd,
	)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
