package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JustinTDCT/Posteract/internal/config"
	"github.com/JustinTDCT/Posteract/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "posteract:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	libraryFlag := func() cli.Flag {
		return &cli.StringSliceFlag{
			Name:  "library",
			Usage: "limit to the named Plex library (repeatable)",
		}
	}

	return &cli.Command{
		Name:    "posteract",
		Usage:   "pick textless or language-preferred posters for Plex",
		Version: version.Load("version.json").Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML configuration file",
				Value: config.DefaultConfigFile,
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment file",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "item",
				Usage: "process a single Plex item",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "id", Usage: "Plex rating key"},
					&cli.StringFlag{Name: "title", Usage: "exact movie title"},
				},
				Action: itemAction,
			},
			{
				Name:   "all",
				Usage:  "process every item in the configured libraries",
				Flags:  []cli.Flag{libraryFlag()},
				Action: allAction,
			},
			{
				Name:   "sample",
				Usage:  "process The Matrix, Inception and The Dark Knight",
				Action: sampleAction,
			},
			{
				Name:  "reset",
				Usage: "delete local posters and job state, restore Plex posters",
				Flags: []cli.Flag{
					libraryFlag(),
					&cli.BoolFlag{Name: "outcomes", Usage: "also clear the poster outcome cache"},
				},
				Action: resetAction,
			},
			{
				Name:   "retries",
				Usage:  "list items due for a retry",
				Action: retriesAction,
			},
			{
				Name:   "retry",
				Usage:  "process items due for a retry once",
				Action: retryAction,
			},
			{
				Name:   "schedule",
				Usage:  "run retries on the configured cron schedule until interrupted",
				Action: scheduleAction,
			},
			{
				Name:  "jobs",
				Usage: "show poster job state",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "filter by status"},
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: jobsAction,
			},
			{
				Name:   "libraries",
				Usage:  "list Plex libraries",
				Action: librariesAction,
			},
		},
	}
}
