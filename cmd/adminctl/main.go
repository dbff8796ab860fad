package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().Run(ctx, args); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "adminctl",
		Usage: "Operate the admin user directory, sessions and audit trail",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to a YAML config file"},
			&cli.StringFlag{Name: "dsn", Usage: "database DSN, overrides persistence.dsn"},
			&cli.BoolFlag{Name: "verbose", Usage: "log at trace level"},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			sweepCommand(),
			userCommand(),
			sessionCommand(),
			auditCommand(),
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the embedded schema migrations",
		Action: func(ctx context.Context, c *cli.Command) error {
			app, err := bootstrap(ctx, c, true)
			if err != nil {
				return err
			}
			defer app.Close()

			app.logger.Info("migrations applied", "dsn", app.cfg.Persistence.DSN)
			return nil
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Remove expired sessions and audit entries past retention",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "keep sweeping on the configured interval"},
			&cli.IntFlag{Name: "retention-days", Usage: "override audit retention"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			app, err := bootstrap(ctx, c, false)
			if err != nil {
				return err
			}
			defer app.Close()

			janitor := app.svc.Janitor()
			if days := int(c.Int("retention-days")); days > 0 {
				janitor = app.newJanitor(days)
			}

			if c.Bool("watch") {
				app.logger.Info("janitor started", "interval", app.cfg.Janitor.Interval)
				return janitor.Run(ctx)
			}

			result, err := janitor.RunOnce(ctx)
			if err != nil {
				return err
			}
			return printJSON(c, result)
		},
	}
}
