package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	admin "github.com/goliatone/go-admin"
	"github.com/goliatone/go-admin/config"
	"github.com/goliatone/go-admin/persistence"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v3"
)

type App struct {
	cfg      *config.Config
	db       *bun.DB
	svc      *admin.Service
	lgr      *glog.BaseLogger
	logger   glog.Logger
	provider admin.LoggerProvider
}

func bootstrap(ctx context.Context, c *cli.Command, forceMigrate bool) (*App, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if dsn := strings.TrimSpace(c.String("dsn")); dsn != "" {
		cfg.Persistence.DSN = dsn
	}

	lgr := newLogger(cfg, c.Bool("verbose"))
	provider := admin.LoggerProviderFunc(func(name string) admin.Logger {
		return lgr.GetLogger(name)
	})

	client, err := persistence.Open(persistence.Config{
		DSN:         cfg.Persistence.DSN,
		Debug:       cfg.Persistence.Debug,
		PingTimeout: cfg.Persistence.PingTimeout,
	}, persistence.WithLogger(provider.GetLogger("persistence")))
	if err != nil {
		return nil, err
	}
	db := client.DB()

	if forceMigrate || cfg.Persistence.AutoMigrate {
		if err := persistence.Migrate(ctx, client); err != nil {
			db.Close()
			return nil, err
		}
	}

	app := &App{
		cfg:      cfg,
		db:       db,
		lgr:      lgr,
		logger:   lgr.GetLogger("adminctl"),
		provider: provider,
	}

	app.svc = admin.NewService(db, cfg.Admin,
		admin.WithLoggerProvider(provider),
		admin.WithJanitorOptions(admin.WithJanitorInterval(cfg.Janitor.Interval)),
	)

	return app, nil
}

func newLogger(cfg *config.Config, verbose bool) *glog.BaseLogger {
	if verbose || strings.EqualFold(cfg.Log.Level, "trace") {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("adminctl"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}

	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("adminctl"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

func (a *App) newJanitor(retentionDays int) *admin.Janitor {
	return admin.NewJanitor(a.svc.Sessions(), a.svc.Audit(),
		admin.WithJanitorInterval(a.cfg.Janitor.Interval),
		admin.WithJanitorRetentionDays(retentionDays),
		admin.WithJanitorLoggerProvider(a.provider),
	)
}

func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("close db", "error", err)
		}
	}
}

func printJSON(c *cli.Command, v any) error {
	var w io.Writer = os.Stdout
	if root := c.Root(); root != nil && root.Writer != nil {
		w = root.Writer
	}
	_, err := fmt.Fprintln(w, print.MaybePrettyJSON(v))
	return err
}
