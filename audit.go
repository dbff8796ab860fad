package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const (
	// DefaultAuditPageSize is used when a query does not set a limit
	DefaultAuditPageSize = 50
	// MaxAuditPageSize caps query and recent entry limits
	MaxAuditPageSize = 200
	// DefaultActionStatsDays is the window used when ActionStats gets no days
	DefaultActionStatsDays = 30
)

// AuditQuery filters audit entries. Cursor is the id of the last entry of
// the previous page, zero for the first page.
type AuditQuery struct {
	Since        time.Time
	Until        time.Time
	ActorUserID  string
	ActorTokenID string
	ActionPrefix string
	ResourceType string
	Cursor       int64
	Limit        int
}

// AuditPage is one page of entries, newest first. NextCursor is zero when
// there are no older entries.
type AuditPage struct {
	Entries    []*AuditEntry `json:"entries"`
	NextCursor int64         `json:"next_cursor,omitempty"`
}

// AuditLedger is the append-only log of privileged actions
type AuditLedger struct {
	db        bun.IDB
	cfg       Config
	now       func() time.Time
	logger    Logger
	provider  LoggerProvider
	onFailure AuditFailureHandler
}

var _ AuditRecorder = (*AuditLedger)(nil)

// AuditLedgerOption customizes the ledger
type AuditLedgerOption func(*AuditLedger)

// WithAuditClock injects the clock used for timestamps and windows
func WithAuditClock(clock func() time.Time) AuditLedgerOption {
	return func(l *AuditLedger) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithAuditFailureHandler registers a diagnostics callback for failed records
func WithAuditFailureHandler(handler AuditFailureHandler) AuditLedgerOption {
	return func(l *AuditLedger) {
		l.onFailure = handler
	}
}

// WithAuditLogger overrides the diagnostics logger
func WithAuditLogger(logger Logger) AuditLedgerOption {
	return func(l *AuditLedger) {
		l.provider, l.logger = ResolveLogger("admin.audit", l.provider, logger)
	}
}

// WithAuditLoggerProvider resolves the diagnostics logger from provider
func WithAuditLoggerProvider(provider LoggerProvider) AuditLedgerOption {
	return func(l *AuditLedger) {
		l.provider, l.logger = ResolveLogger("admin.audit", provider, nil)
	}
}

// NewAuditLedger returns a ledger writing to the audit_logs table
func NewAuditLedger(db bun.IDB, cfg Config, opts ...AuditLedgerOption) *AuditLedger {
	provider, logger := ResolveLogger("admin.audit", nil, nil)
	l := &AuditLedger{
		db:       db,
		cfg:      normalizeConfig(cfg),
		now:      time.Now,
		logger:   logger,
		provider: provider,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// Record appends entry on a best-effort basis. Errors and panics are
// reported to diagnostics and never reach the caller.
func (l *AuditLedger) Record(ctx context.Context, entry AuditEntry) {
	if ctx == nil {
		ctx = context.Background()
	}
	// the triggering request may be done before the audit write lands
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			l.reportFailure(ctx, entry, fmt.Errorf("audit record panic: %v", r))
		}
	}()

	if err := l.Append(ctx, &entry); err != nil {
		l.reportFailure(ctx, entry, err)
	}
}

// Append is the strict write: it returns the store error to the caller.
func (l *AuditLedger) Append(ctx context.Context, entry *AuditEntry) error {
	if entry == nil {
		return nil
	}

	l.prepareEntry(entry)

	if _, err := l.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return persistenceFailure(err, "failed to append audit entry", map[string]any{
			"action": entry.Action,
		})
	}

	return nil
}

func (l *AuditLedger) prepareEntry(entry *AuditEntry) {
	entry.ID = 0
	entry.Action = strings.TrimSpace(entry.Action)
	if entry.Action == "" {
		entry.Action = DeriveAction(entry.RequestPath)
	}

	entry.ActorUserID = normalizeActor(entry.ActorUserID)
	entry.ActorTokenID = normalizeActor(entry.ActorTokenID)
	entry.RequestMethod = strings.ToUpper(strings.TrimSpace(entry.RequestMethod))

	metadata, dropped := entry.Metadata.Sanitize()
	if len(dropped) > 0 {
		l.logger.Warn("audit metadata keys dropped", "action", entry.Action, "keys", strings.Join(dropped, ","))
	}
	entry.Metadata = metadata

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.clock()
	} else {
		entry.CreatedAt = entry.CreatedAt.UTC()
	}
}

func (l *AuditLedger) reportFailure(ctx context.Context, entry AuditEntry, err error) {
	l.logger.Error("audit ledger record error", "error", err, "action", entry.Action)
	if l.onFailure != nil {
		l.onFailure(ctx, entry, err)
	}
}

// Query returns a page of entries matching q, newest first. Pages are keyed
// on the entry id so inserts never shift pages already returned.
func (l *AuditLedger) Query(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	limit := clampLimit(q.Limit)

	var records []*AuditEntry
	sel := l.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.id DESC").
		Limit(limit + 1)

	if !q.Since.IsZero() {
		sel = sel.Where("?TableAlias.created_at >= ?", q.Since.UTC())
	}
	if !q.Until.IsZero() {
		sel = sel.Where("?TableAlias.created_at < ?", q.Until.UTC())
	}
	if actor := strings.TrimSpace(q.ActorUserID); actor != "" {
		sel = sel.Where("?TableAlias.actor_user_id = ?", actor)
	}
	if token := strings.TrimSpace(q.ActorTokenID); token != "" {
		sel = sel.Where("?TableAlias.actor_token_id = ?", token)
	}
	if prefix := strings.TrimSpace(q.ActionPrefix); prefix != "" {
		sel = sel.Where("?TableAlias.action LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
	}
	if rt := strings.TrimSpace(q.ResourceType); rt != "" {
		sel = sel.Where("?TableAlias.resource_type = ?", rt)
	}
	if q.Cursor > 0 {
		sel = sel.Where("?TableAlias.id < ?", q.Cursor)
	}

	if err := sel.Scan(ctx); err != nil && !isNotFound(err) {
		return nil, persistenceFailure(err, "failed to query audit entries", nil)
	}

	page := &AuditPage{Entries: records}
	if len(records) > limit {
		page.Entries = records[:limit]
		page.NextCursor = page.Entries[limit-1].ID
	}

	if page.Entries == nil {
		page.Entries = []*AuditEntry{}
	}

	return page, nil
}

// RecentEntries returns the newest limit entries
func (l *AuditLedger) RecentEntries(ctx context.Context, limit int) ([]*AuditEntry, error) {
	page, err := l.Query(ctx, AuditQuery{Limit: limit})
	if err != nil {
		return nil, err
	}
	return page.Entries, nil
}

// CountSince counts entries created at or after start
func (l *AuditLedger) CountSince(ctx context.Context, start time.Time) (int, error) {
	count, err := l.db.NewSelect().
		Model((*AuditEntry)(nil)).
		Where("?TableAlias.created_at >= ?", start.UTC()).
		Count(ctx)
	if err != nil {
		return 0, persistenceFailure(err, "failed to count audit entries", nil)
	}
	return count, nil
}

// CountToday counts entries since midnight in the configured location
func (l *AuditLedger) CountToday(ctx context.Context) (int, error) {
	return l.CountSince(ctx, startOfDay(l.localNow()))
}

// CountThisWeek counts entries since Monday midnight in the configured location
func (l *AuditLedger) CountThisWeek(ctx context.Context) (int, error) {
	return l.CountSince(ctx, startOfWeek(l.localNow()))
}

// ActionStats groups entries of the trailing window by action
func (l *AuditLedger) ActionStats(ctx context.Context, days int) ([]ActionStat, error) {
	if days <= 0 {
		days = DefaultActionStatsDays
	}

	since := l.clock().Add(-time.Duration(days) * 24 * time.Hour)

	var rows []struct {
		Action string `bun:"action"`
		Total  int    `bun:"total"`
	}

	err := l.db.NewSelect().
		Model((*AuditEntry)(nil)).
		ColumnExpr("?TableAlias.action AS action").
		ColumnExpr("COUNT(*) AS total").
		Where("?TableAlias.created_at >= ?", since).
		GroupExpr("?TableAlias.action").
		OrderExpr("total DESC").
		OrderExpr("action ASC").
		Scan(ctx, &rows)

	if err != nil && !isNotFound(err) {
		return nil, persistenceFailure(err, "failed to aggregate audit actions", nil)
	}

	stats := make([]ActionStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, ActionStat{Action: row.Action, Count: row.Total})
	}

	return stats, nil
}

// PurgeOlderThan deletes entries older than retentionDays. Zero or negative
// uses the configured retention.
func (l *AuditLedger) PurgeOlderThan(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = l.cfg.GetAuditRetentionDays()
	}
	if retentionDays <= 0 {
		retentionDays = DefaultAuditRetentionDays
	}

	cutoff := l.clock().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	res, err := l.db.NewDelete().
		Model((*AuditEntry)(nil)).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, persistenceFailure(err, "failed to purge audit entries", nil)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistenceFailure(err, "failed to purge audit entries", nil)
	}

	if n > 0 {
		l.logger.Info("audit entries purged", "count", n, "retention_days", retentionDays)
	}

	return int(n), nil
}

func (l *AuditLedger) clock() time.Time {
	return l.now().UTC()
}

func (l *AuditLedger) localNow() time.Time {
	loc := l.cfg.GetLocation()
	if loc == nil {
		loc = time.UTC
	}
	return l.now().In(loc)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultAuditPageSize
	}
	if limit > MaxAuditPageSize {
		return MaxAuditPageSize
	}
	return limit
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func normalizeActor(id *string) *string {
	if id == nil {
		return nil
	}
	return ActorUser(*id)
}
