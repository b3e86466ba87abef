package main

import (
	"context"
	"log"
	"os"

	commands "github.com/urfave/cli/v3"

	"github.com/st3v3nmw/replcheck/internal/cli"
)

func main() {
	cmd := &commands.Command{
		Name:  "replcheck",
		Usage: "Verify that a replicated HTTP session survives failover",
		Commands: []*commands.Command{
			{
				Name:      "init",
				Usage:     "Write a default replcheck.yaml",
				ArgsUsage: "[path]",
				Action:    cli.Init,
			},
			{
				Name:      "run",
				Usage:     "Run a scenario against the cluster",
				ArgsUsage: "[scenario]",
				Flags:     cli.RunFlags(),
				Action:    cli.Run,
			},
			{
				Name:   "serve",
				Usage:  "Run reference session nodes",
				Flags:  cli.ServeFlags(),
				Action: cli.Serve,
			},
			{
				Name:   "list",
				Usage:  "Show available scenarios",
				Action: cli.List,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
