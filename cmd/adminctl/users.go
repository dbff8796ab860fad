package main

import (
	"context"
	"fmt"

	admin "github.com/goliatone/go-admin"
	"github.com/urfave/cli/v3"
)

var actorFlag = &cli.StringFlag{Name: "actor", Usage: "id of the operator performing the change"}

func userCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage operators",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an operator",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "role", Value: string(admin.RoleAgent)},
					&cli.StringFlag{Name: "secret", Required: true, Usage: "initial password"},
					actorFlag,
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					user, err := app.svc.Directory().Create(ctx, admin.CreateUserInput{
						Email:  c.String("email"),
						Name:   c.String("name"),
						Role:   c.String("role"),
						Secret: c.String("secret"),
					}, c.String("actor"))
					if err != nil {
						return err
					}
					return printJSON(c, user)
				}),
			},
			{
				Name:  "list",
				Usage: "List operators",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "include inactive operators"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					users, err := app.svc.Directory().FindAll(ctx, c.Bool("all"))
					if err != nil {
						return err
					}
					return printJSON(c, users)
				}),
			},
			{
				Name:  "deactivate",
				Usage: "Deactivate an operator and revoke their sessions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					actorFlag,
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					inactive := false
					user, err := app.svc.Directory().Update(ctx, c.String("id"), admin.UpdateUserInput{
						IsActive: &inactive,
					}, c.String("actor"))
					if err != nil {
						return err
					}
					if user == nil {
						return fmt.Errorf("user %s not found", c.String("id"))
					}
					return printJSON(c, user)
				}),
			},
			{
				Name:  "delete",
				Usage: "Delete an operator",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					actorFlag,
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					ok, err := app.svc.Directory().Delete(ctx, c.String("id"), c.String("actor"))
					if err != nil {
						return err
					}
					return printJSON(c, map[string]any{"deleted": ok})
				}),
			},
			{
				Name:  "passwd",
				Usage: "Change an operator password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "secret", Required: true},
					actorFlag,
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					ok, err := app.svc.Directory().ChangePassword(ctx, c.String("id"), c.String("secret"), c.String("actor"))
					if err != nil {
						return err
					}
					return printJSON(c, map[string]any{"changed": ok})
				}),
			},
		},
	}
}

func withApp(fn func(ctx context.Context, c *cli.Command, app *App) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		app, err := bootstrap(ctx, c, false)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, c, app)
	}
}
