/*
Maillogd - Internal log server for mail systems.
Copyright © 2023 Max Mazurov <fox.cpp@disroot.org>, Maillogd contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/foxcpp/maillogd"
	"github.com/foxcpp/maillogd/framework/log"
)

func main() {
	app := cli.NewApp()
	app.Name = "maillogd"
	app.Usage = "internal log server for mail systems"
	app.Description = `Maillogd receives log records from other mail system processes over a
local datagram socket and writes them to a dedicated log file, falling
back to syslog when no file is configured.

It is meant to run under a process supervisor and exits on its own when
there is no traffic.
`
	app.Version = maillogd.BuildInfo()
	app.ExitErrHandler = func(c *cli.Context, err error) {
		cli.HandleExitCoder(err)
		if err != nil {
			log.Println(err)
			cli.OsExiter(2)
		}
	}

	runFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "configuration file to use",
			EnvVars: []string{"MAILLOGD_CONFIG"},
			Value:   filepath.Join(maillogd.ConfigDirectory(), "maillogd.conf"),
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "enable debug logging early",
			EnvVars: []string{"MAILLOGD_DEBUG"},
		},
		&cli.StringSliceFlag{
			Name:  "log",
			Usage: "default logging target(s) for the daemon's own diagnostics",
			Value: cli.NewStringSlice("socket"),
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "start the log server",
			Flags:  runFlags,
			Action: maillogd.Run,
		},
		{
			Name:  "version",
			Usage: "print version and build metadata",
			Action: func(c *cli.Context) error {
				fmt.Println(maillogd.BuildInfo())
				return nil
			},
		},
	}

	// The supervisor starts the executable without a subcommand.
	app.Action = maillogd.Run
	app.Flags = runFlags

	if err := app.Run(os.Args); err != nil {
		log.DefaultLogger.Error("app.Run failed", err)
	}
}
