package main

import (
	"context"

	admin "github.com/goliatone/go-admin"
	"github.com/goliatone/go-admin/activitymap"
	"github.com/urfave/cli/v3"
)

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Read and maintain the audit trail",
		Commands: []*cli.Command{
			{
				Name:  "tail",
				Usage: "Show the newest audit entries",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: admin.DefaultAuditPageSize},
					&cli.StringFlag{Name: "action", Usage: "action prefix, e.g. user."},
					&cli.StringFlag{Name: "actor", Usage: "actor user id"},
					&cli.StringFlag{Name: "resource-type"},
					&cli.Int64Flag{Name: "cursor", Usage: "id of the last entry of the previous page"},
					&cli.BoolFlag{Name: "raw", Usage: "print stored entries instead of normalized records"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					page, err := app.svc.Audit().Query(ctx, admin.AuditQuery{
						ActionPrefix: c.String("action"),
						ActorUserID:  c.String("actor"),
						ResourceType: c.String("resource-type"),
						Cursor:       c.Int64("cursor"),
						Limit:        int(c.Int("limit")),
					})
					if err != nil {
						return err
					}
					if c.Bool("raw") {
						return printJSON(c, page)
					}
					return printJSON(c, map[string]any{
						"entries":     activitymap.NormalizeAll(page.Entries),
						"next_cursor": page.NextCursor,
					})
				}),
			},
			{
				Name:  "stats",
				Usage: "Show entry counts and the busiest actions",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Value: admin.DefaultActionStatsDays},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					ledger := app.svc.Audit()

					today, err := ledger.CountToday(ctx)
					if err != nil {
						return err
					}
					week, err := ledger.CountThisWeek(ctx)
					if err != nil {
						return err
					}
					stats, err := ledger.ActionStats(ctx, int(c.Int("days")))
					if err != nil {
						return err
					}

					return printJSON(c, map[string]any{
						"today":   today,
						"week":    week,
						"actions": stats,
					})
				}),
			},
			{
				Name:  "purge",
				Usage: "Delete entries older than the retention window",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Usage: "retention in days, defaults to the configured retention"},
				},
				Action: withApp(func(ctx context.Context, c *cli.Command, app *App) error {
					n, err := app.svc.Audit().PurgeOlderThan(ctx, int(c.Int("days")))
					if err != nil {
						return err
					}
					return printJSON(c, map[string]any{"purged": n})
				}),
			},
		},
	}
}
