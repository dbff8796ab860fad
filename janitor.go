package admin

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultJanitorInterval is how often the janitor sweeps when unset
const DefaultJanitorInterval = time.Hour

// SweepResult reports the rows removed by one janitor pass
type SweepResult struct {
	SessionsSwept int `json:"sessions_swept"`
	AuditPurged   int `json:"audit_purged"`
}

// Janitor periodically removes expired sessions and audit entries past
// retention.
type Janitor struct {
	sessions      SessionStore
	ledger        *AuditLedger
	interval      time.Duration
	retentionDays int
	logger        Logger
}

// JanitorOption customizes the janitor
type JanitorOption func(*Janitor)

// WithJanitorInterval sets the pause between passes
func WithJanitorInterval(d time.Duration) JanitorOption {
	return func(j *Janitor) {
		if d > 0 {
			j.interval = d
		}
	}
}

// WithJanitorRetentionDays overrides the configured audit retention
func WithJanitorRetentionDays(days int) JanitorOption {
	return func(j *Janitor) {
		j.retentionDays = days
	}
}

// WithJanitorLoggerProvider resolves the janitor logger from provider
func WithJanitorLoggerProvider(provider LoggerProvider) JanitorOption {
	return func(j *Janitor) {
		_, j.logger = ResolveLogger("admin.janitor", provider, nil)
	}
}

// NewJanitor returns a janitor. A nil ledger skips the audit purge.
func NewJanitor(sessions SessionStore, ledger *AuditLedger, opts ...JanitorOption) *Janitor {
	_, logger := ResolveLogger("admin.janitor", nil, nil)
	j := &Janitor{
		sessions: sessions,
		ledger:   ledger,
		interval: DefaultJanitorInterval,
		logger:   logger,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(j)
		}
	}

	return j
}

// RunOnce sweeps sessions and purges the ledger concurrently
func (j *Janitor) RunOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	g, gctx := errgroup.WithContext(ctx)

	if j.sessions != nil {
		g.Go(func() error {
			n, err := j.sessions.SweepExpired(gctx)
			result.SessionsSwept = n
			return err
		})
	}

	if j.ledger != nil {
		g.Go(func() error {
			n, err := j.ledger.PurgeOlderThan(gctx, j.retentionDays)
			result.AuditPurged = n
			return err
		})
	}

	err := g.Wait()
	return result, err
}

// Run sweeps once immediately and then every interval until ctx is done.
// Pass errors are logged and do not stop the loop.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		j.pass(ctx)

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (j *Janitor) pass(ctx context.Context) {
	result, err := j.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Error("janitor pass failed", "error", err)
		}
		return
	}
	j.logger.Debug("janitor pass done", "sessions_swept", result.SessionsSwept, "audit_purged", result.AuditPurged)
}
