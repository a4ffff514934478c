package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/souzu/cmd"
)

func main() {
	app := &cli.App{
		Name:  "souzu",
		Usage: "monitor Bambu Lab printers and report print jobs to Slack",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "shorthand for --log-level DEBUG",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "monitor",
				Usage:  "discover printers and watch them until interrupted",
				Action: cmd.MonitorCommand,
			},
			{
				Name:      "compact",
				Usage:     "remove repeated reports from a printer log",
				ArgsUsage: "<log file> [output file]",
				Action:    cmd.CompactCommand,
			},
		},
		DefaultCommand: "monitor",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
