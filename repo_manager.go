package admin

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	DB() *bun.DB
	Users() Users
	Sessions() SessionStore
}

type mngr struct {
	db       *bun.DB
	users    Users
	sessions SessionStore
}

// ManagerOption customizes the repository manager
type ManagerOption func(*mngr)

// WithManagerUsers overrides the users repository
func WithManagerUsers(users Users) ManagerOption {
	return func(m *mngr) {
		if users != nil {
			m.users = users
		}
	}
}

// WithManagerSessions overrides the session store
func WithManagerSessions(store SessionStore) ManagerOption {
	return func(m *mngr) {
		if store != nil {
			m.sessions = store
		}
	}
}

func NewRepositoryManager(db *bun.DB, cfg Config, opts ...ManagerOption) RepositoryManager {
	m := &mngr{db: db}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.users == nil {
		m.users = NewUsersRepository(db)
	}

	if m.sessions == nil {
		m.sessions = NewSessionStore(db, cfg)
	}

	return m
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) DB() *bun.DB {
	return m.db
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Sessions() SessionStore {
	return m.sessions
}
