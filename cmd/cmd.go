// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand writes the config file and prepares the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml, initialize the database and resolve the owner id",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent database migration instead",
			},
		},
		Action: r.Setup,
	}
}

// scanCommand discovers the library without uploading.
func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Scan, hash and check voice notes against the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Library directory (overrides library.root)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
		},
		Action: r.Scan,
	}
}

// uploadCommand runs the full discover and upload cycle.
func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "upload",
		Aliases: []string{"up"},
		Usage:   "Upload every voice note not yet on the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Library directory (overrides library.root)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum simultaneous uploads (overrides upload.concurrency)",
			},
			&cli.IntFlag{
				Name:  "max-attempts",
				Usage: "Attempts per file before giving up (overrides upload.max_attempts)",
			},
			&cli.StringSliceFlag{
				Name:  "only",
				Usage: "Upload only these file names or paths",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show the interactive upload monitor",
			},
			&cli.BoolFlag{
				Name:  "serve",
				Usage: "Serve /status and /metrics on server.host:server.port while uploading",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Status server address (overrides the server section)",
			},
		},
		Action: r.Upload,
	}
}

// statusCommand reports the completion ledger.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Report voice notes already uploaded",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: json, csv, txt or md",
				Value:   "txt",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
		},
		Action: r.Status,
	}
}

// resetCommand clears the completion ledger.
func resetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Forget every recorded upload for the current owner",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm the reset",
			},
		},
		Action: r.Reset,
	}
}
