package main

import (
	"context"

	admin "github.com/goliatone/go-admin"
	"github.com/urfave/cli/v3"
)

func sessionCommand() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Inspect and manage sessions",
		Commands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Issue a session for a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true, Usage: "user id"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					session, err := app.svc.Sessions().Issue(ctx, c.String("user"), admin.SessionMeta{UserAgent: "adminctl"})
					if err != nil {
						return err
					}
					return printJSON(c, session)
				}),
			},
			{
				Name:  "revoke",
				Usage: "Revoke a session",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Required: true},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					ok, err := app.svc.Authenticator().Logout(ctx, c.String("token"))
					if err != nil {
						return err
					}
					return printJSON(c, map[string]any{"revoked": ok})
				}),
			},
			{
				Name:  "list",
				Usage: "List valid sessions of a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Required: true, Usage: "user id"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					sessions, err := app.svc.Sessions().ListByOwner(ctx, c.String("user"))
					if err != nil {
						return err
					}
					return printJSON(c, sessions)
				}),
			},
		},
	}
}
