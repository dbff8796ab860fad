package admin

import (
	"github.com/uptrace/bun"
)

// Service is the composition root. It owns one instance of every component
// and hands them out by reference.
type Service struct {
	cfg           Config
	repos         RepositoryManager
	sessions      SessionStore
	ledger        *AuditLedger
	directory     *UserDirectory
	guard         *AuthGuard
	authenticator *Authenticator
	routes        *RouteGuard
	janitor       *Janitor
}

// ServiceOption customizes the components built by NewService
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	provider  LoggerProvider
	sessions  []SessionsOption
	ledger    []AuditLedgerOption
	directory []DirectoryOption
	janitor   []JanitorOption
}

// WithLoggerProvider shares one provider across all components
func WithLoggerProvider(provider LoggerProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

func WithSessionOptions(opts ...SessionsOption) ServiceOption {
	return func(o *serviceOptions) {
		o.sessions = append(o.sessions, opts...)
	}
}

func WithAuditOptions(opts ...AuditLedgerOption) ServiceOption {
	return func(o *serviceOptions) {
		o.ledger = append(o.ledger, opts...)
	}
}

func WithDirectoryOptions(opts ...DirectoryOption) ServiceOption {
	return func(o *serviceOptions) {
		o.directory = append(o.directory, opts...)
	}
}

func WithJanitorOptions(opts ...JanitorOption) ServiceOption {
	return func(o *serviceOptions) {
		o.janitor = append(o.janitor, opts...)
	}
}

// NewService builds the session store, audit ledger, directory, guard and
// their helpers over db.
func NewService(db *bun.DB, cfg Config, opts ...ServiceOption) *Service {
	cfg = normalizeConfig(cfg)

	o := &serviceOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	var sessionOpts []SessionsOption
	var ledgerOpts []AuditLedgerOption
	var directoryOpts []DirectoryOption
	var janitorOpts []JanitorOption
	var guardOpts []GuardOption

	if o.provider != nil {
		sessionOpts = append(sessionOpts, WithSessionsLoggerProvider(o.provider))
		ledgerOpts = append(ledgerOpts, WithAuditLoggerProvider(o.provider))
		directoryOpts = append(directoryOpts, WithDirectoryLoggerProvider(o.provider))
		janitorOpts = append(janitorOpts, WithJanitorLoggerProvider(o.provider))
		guardOpts = append(guardOpts, WithGuardLoggerProvider(o.provider))
	}

	sessions := NewSessionStore(db, cfg, append(sessionOpts, o.sessions...)...)
	repos := NewRepositoryManager(db, cfg, WithManagerSessions(sessions))
	ledger := NewAuditLedger(db, cfg, append(ledgerOpts, o.ledger...)...)
	directory := NewUserDirectory(repos, ledger, cfg, append(directoryOpts, o.directory...)...)
	guard := NewAuthGuard(sessions, directory, cfg, guardOpts...)

	authenticator := NewAuthenticator(directory, sessions, ledger)
	routes := NewRouteGuard(guard, ledger)
	if o.provider != nil {
		authenticator.WithLogger(o.provider.GetLogger("admin.auth"))
		if l := o.provider.GetLogger("admin.http"); l != nil {
			routes.Logger = l
		}
	}

	return &Service{
		cfg:           cfg,
		repos:         repos,
		sessions:      sessions,
		ledger:        ledger,
		directory:     directory,
		guard:         guard,
		authenticator: authenticator,
		routes:        routes,
		janitor:       NewJanitor(sessions, ledger, append(janitorOpts, o.janitor...)...),
	}
}

func (s *Service) Config() Config                 { return s.cfg }
func (s *Service) Repositories() RepositoryManager { return s.repos }
func (s *Service) Sessions() SessionStore          { return s.sessions }
func (s *Service) Audit() *AuditLedger             { return s.ledger }
func (s *Service) Directory() *UserDirectory       { return s.directory }
func (s *Service) Guard() *AuthGuard               { return s.guard }
func (s *Service) Authenticator() *Authenticator   { return s.authenticator }
func (s *Service) Routes() *RouteGuard             { return s.routes }
func (s *Service) Janitor() *Janitor               { return s.janitor }
