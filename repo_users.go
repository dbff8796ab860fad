package admin

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserChanges is the column level patch applied by Users.Update
type UserChanges struct {
	Email    *string
	Name     *string
	Role     *Role
	IsActive *bool
}

// IsEmpty reports whether there is nothing to write
func (c UserChanges) IsEmpty() bool {
	return c.Email == nil && c.Name == nil && c.Role == nil && c.IsActive == nil
}

// Users is the operator repository
type Users interface {
	repository.Repository[*User]

	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error)
	ListUsers(ctx context.Context, includeInactive bool) ([]*User, error)

	Insert(ctx context.Context, user *User) (*User, error)
	InsertTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Patch(ctx context.Context, id string, changes UserChanges) (*User, error)
	PatchTx(ctx context.Context, tx bun.IDB, id string, changes UserChanges) (*User, error)
	Remove(ctx context.Context, id string) (bool, error)
	RemoveTx(ctx context.Context, tx bun.IDB, id string) (bool, error)
	SetSecret(ctx context.Context, id string, secretHash string) (bool, error)
	SetSecretTx(ctx context.Context, tx bun.IDB, id string, secretHash string) (bool, error)
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// UsersOption customizes the users repository
type UsersOption func(*users)

// WithUsersClock injects the clock used for created/updated timestamps
func WithUsersClock(clock func() time.Time) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return record, nil
}

// CanonicalUserID returns the lowercase hyphenated form of a user id. Any
// spelling uuid.Parse accepts maps to the same value; anything else is
// returned trimmed.
func CanonicalUserID(id string) string {
	id = strings.TrimSpace(id)
	if uid, err := uuid.Parse(id); err == nil {
		return uid.String()
	}
	return id
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, nil
	}

	record := &User{}
	err = tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", uid).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return record, nil
}

func (a *users) ListUsers(ctx context.Context, includeInactive bool) ([]*User, error) {
	var records []*User
	q := a.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.created_at ASC").
		OrderExpr("?TableAlias.email ASC")

	if !includeInactive {
		q = q.Where("?TableAlias.is_active = ?", true)
	}

	if err := q.Scan(ctx); err != nil && !isNotFound(err) {
		return nil, err
	}

	if records == nil {
		records = []*User{}
	}

	return records, nil
}

func (a *users) Insert(ctx context.Context, user *User) (*User, error) {
	return a.InsertTx(ctx, a.db, user)
}

func (a *users) InsertTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	a.prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) Patch(ctx context.Context, id string, changes UserChanges) (*User, error) {
	return a.PatchTx(ctx, a.db, id, changes)
}

func (a *users) PatchTx(ctx context.Context, tx bun.IDB, id string, changes UserChanges) (*User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, nil
	}

	if changes.IsEmpty() {
		return a.FindByIDTx(ctx, tx, id)
	}

	q := tx.NewUpdate().
		Model((*User)(nil)).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", uid)

	if changes.Email != nil {
		q = q.Set("email = ?", normalizeEmail(*changes.Email))
	}
	if changes.Name != nil {
		q = q.Set("name = ?", strings.TrimSpace(*changes.Name))
	}
	if changes.Role != nil {
		q = q.Set("role = ?", *changes.Role)
	}
	if changes.IsActive != nil {
		q = q.Set("is_active = ?", *changes.IsActive)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, nil
	}

	return a.FindByIDTx(ctx, tx, id)
}

func (a *users) Remove(ctx context.Context, id string) (bool, error) {
	return a.RemoveTx(ctx, a.db, id)
}

func (a *users) RemoveTx(ctx context.Context, tx bun.IDB, id string) (bool, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return false, nil
	}

	res, err := tx.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", uid).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (a *users) SetSecret(ctx context.Context, id string, secretHash string) (bool, error) {
	return a.SetSecretTx(ctx, a.db, id, secretHash)
}

func (a *users) SetSecretTx(ctx context.Context, tx bun.IDB, id string, secretHash string) (bool, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return false, nil
	}

	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_secret = ?", secretHash).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", uid).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (a *users) prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = normalizeEmail(record.Email)
	record.Name = strings.TrimSpace(record.Name)

	now := a.now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}
