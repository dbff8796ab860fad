package admin

import (
	"context"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// MaxSecretLength is the longest secret bcrypt will hash without truncating
const MaxSecretLength = 72

// CreateUserInput is the payload for UserDirectory.Create
type CreateUserInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Secret   string `json:"secret"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// Validate checks the payload against the allowed roles
func (r CreateUserInput) Validate(allowed RoleSet) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Role, validation.Required, validation.In(allowed.toAny()...)),
		validation.Field(&r.Secret, validation.Required, validation.Length(MinSecretLength, MaxSecretLength)),
	)
}

func (r CreateUserInput) normalize() CreateUserInput {
	r.Email = normalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	return r
}

// UpdateUserInput is a partial update, nil fields are left untouched
type UpdateUserInput struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// Validate checks the supplied fields against the allowed roles
func (r UpdateUserInput) Validate(allowed RoleSet) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Length(3, 254), is.Email),
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Role, validation.NilOrNotEmpty, validation.In(allowed.toAny()...)),
	)
}

func (r UpdateUserInput) normalize() UpdateUserInput {
	if r.Email != nil {
		email := normalizeEmail(*r.Email)
		r.Email = &email
	}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		r.Name = &name
	}
	if r.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*r.Role))
		r.Role = &role
	}
	return r
}

// UserDirectory manages operators and keeps sessions and the audit trail in
// step with every mutation.
type UserDirectory struct {
	repos    RepositoryManager
	audit    AuditRecorder
	cfg      Config
	roles    RoleSet
	now      func() time.Time
	logger   Logger
	provider LoggerProvider
}

// DirectoryOption customizes the directory
type DirectoryOption func(*UserDirectory)

// WithAllowedRoles replaces the role allow-list
func WithAllowedRoles(roles ...Role) DirectoryOption {
	return func(d *UserDirectory) {
		if len(roles) > 0 {
			d.roles = RoleSet(roles)
		}
	}
}

// WithDirectoryClock injects the clock used for audit timestamps
func WithDirectoryClock(clock func() time.Time) DirectoryOption {
	return func(d *UserDirectory) {
		if clock != nil {
			d.now = clock
		}
	}
}

// WithDirectoryLogger overrides the directory logger
func WithDirectoryLogger(logger Logger) DirectoryOption {
	return func(d *UserDirectory) {
		d.provider, d.logger = ResolveLogger("admin.directory", d.provider, logger)
	}
}

// WithDirectoryLoggerProvider resolves the directory logger from provider
func WithDirectoryLoggerProvider(provider LoggerProvider) DirectoryOption {
	return func(d *UserDirectory) {
		d.provider, d.logger = ResolveLogger("admin.directory", provider, nil)
	}
}

// NewUserDirectory returns a directory over the managed repositories.
// A nil recorder disables auditing.
func NewUserDirectory(repos RepositoryManager, audit AuditRecorder, cfg Config, opts ...DirectoryOption) *UserDirectory {
	provider, logger := ResolveLogger("admin.directory", nil, nil)
	d := &UserDirectory{
		repos:    repos,
		audit:    normalizeAuditRecorder(audit),
		cfg:      normalizeConfig(cfg),
		roles:    RoleSet(DefaultRoles()),
		now:      time.Now,
		logger:   logger,
		provider: provider,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d
}

// AllowedRoles returns the role allow-list
func (d *UserDirectory) AllowedRoles() RoleSet {
	return d.roles
}

// Create adds an operator. Emails are unique regardless of case.
func (d *UserDirectory) Create(ctx context.Context, input CreateUserInput, actorID string) (*UserPublic, error) {
	input = input.normalize()
	if err := input.Validate(d.roles); err != nil {
		return nil, invalidUserInput(err)
	}

	existing, err := d.repos.Users().FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, persistenceFailure(err, "failed to check email", nil)
	}
	if existing != nil {
		return nil, emailTaken(input.Email)
	}

	hash, err := HashSecret(input.Secret, d.cfg.GetPasswordCost())
	if err != nil {
		return nil, err
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	record, err := d.repos.Users().Insert(ctx, &User{
		Email:          input.Email,
		Name:           input.Name,
		Role:           Role(input.Role),
		IsActive:       active,
		PasswordSecret: hash,
	})
	if err != nil {
		// a concurrent create won the race between the pre-check and the insert
		if isUniqueViolation(err) {
			return nil, emailTaken(input.Email)
		}
		return nil, persistenceFailure(err, "failed to create user", nil)
	}

	user := record.Public()
	d.logger.Info("user created", "user_id", user.ID, "role", user.Role)

	d.audit.Record(ctx, userAuditEntry(ActionUserCreate, actorID, user.ID, Metadata{
		"email": user.Email,
		"role":  string(user.Role),
	}, d.clock()))

	return user, nil
}

// Update applies the supplied fields. It returns nil when id is unknown.
// Deactivating a user revokes all of their sessions; if that fails the
// updated user is returned together with a *CascadeError.
func (d *UserDirectory) Update(ctx context.Context, id string, input UpdateUserInput, actorID string) (*UserPublic, error) {
	id = CanonicalUserID(id)
	input = input.normalize()
	if err := input.Validate(d.roles); err != nil {
		return nil, invalidUserInput(err)
	}

	var updated *User
	var changed []string

	err := d.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := d.repos.Users().FindByIDTx(ctx, tx, id)
		if err != nil {
			return persistenceFailure(err, "failed to load user", map[string]any{"user_id": id})
		}
		if current == nil {
			return nil
		}

		if input.Email != nil {
			owner, err := d.repos.Users().FindByEmailTx(ctx, tx, *input.Email)
			if err != nil {
				return persistenceFailure(err, "failed to check email", nil)
			}
			if owner != nil && owner.ID != current.ID {
				return emailTaken(*input.Email)
			}
		}

		changes := UserChanges{
			Email:    input.Email,
			Name:     input.Name,
			IsActive: input.IsActive,
		}
		if input.Role != nil {
			role := Role(*input.Role)
			changes.Role = &role
		}
		changed = changedFields(current, changes)

		updated, err = d.repos.Users().PatchTx(ctx, tx, id, changes)
		if err != nil {
			if isUniqueViolation(err) {
				return emailTaken(*input.Email)
			}
			return persistenceFailure(err, "failed to update user", map[string]any{"user_id": id})
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	if updated == nil {
		return nil, nil
	}

	user := updated.Public()

	d.audit.Record(ctx, userAuditEntry(ActionUserUpdate, actorID, user.ID, Metadata{
		"changed_fields": strings.Join(changed, ","),
	}, d.clock()))

	if input.IsActive != nil && !*input.IsActive {
		if _, err := d.repos.Sessions().RevokeAllForOwner(ctx, user.ID); err != nil {
			d.logger.Error("deactivation session revoke failed", "user_id", user.ID, "error", err)
			return user, &CascadeError{Op: "revoke sessions", UserID: user.ID, Err: err}
		}
	}

	return user, nil
}

// Delete removes the user and all of their sessions. An actor can never
// delete their own account.
func (d *UserDirectory) Delete(ctx context.Context, id string, actorID string) (bool, error) {
	id = CanonicalUserID(id)
	actorID = CanonicalUserID(actorID)
	if id != "" && id == actorID {
		return false, ErrSelfDelete.Clone().WithMetadata(map[string]any{"user_id": id})
	}

	current, err := d.repos.Users().FindByIDTx(ctx, d.repos.DB(), id)
	if err != nil {
		return false, persistenceFailure(err, "failed to load user", map[string]any{"user_id": id})
	}
	if current == nil {
		return false, nil
	}

	removed, err := d.repos.Users().Remove(ctx, id)
	if err != nil {
		return false, persistenceFailure(err, "failed to delete user", map[string]any{"user_id": id})
	}
	if !removed {
		return false, nil
	}

	d.logger.Info("user deleted", "user_id", id)

	revoked, revokeErr := d.repos.Sessions().RevokeAllForOwner(ctx, id)

	d.audit.Record(ctx, userAuditEntry(ActionUserDelete, actorID, id, Metadata{
		"email":            current.Email,
		"sessions_revoked": revoked,
	}, d.clock()))

	if revokeErr != nil {
		d.logger.Error("delete session revoke failed", "user_id", id, "error", revokeErr)
		return true, &CascadeError{Op: "revoke sessions", UserID: id, Err: revokeErr}
	}

	return true, nil
}

// ChangePassword replaces the user's secret. Sessions are revoked when the
// actor is changing someone else's password.
func (d *UserDirectory) ChangePassword(ctx context.Context, id, newSecret, actorID string) (bool, error) {
	id = CanonicalUserID(id)
	actorID = CanonicalUserID(actorID)

	if len(newSecret) > MaxSecretLength {
		return false, ErrInvalidSecret.Clone().WithMetadata(map[string]any{"reason": "secret too long"})
	}

	hash, err := HashSecret(newSecret, d.cfg.GetPasswordCost())
	if err != nil {
		return false, err
	}

	ok, err := d.repos.Users().SetSecret(ctx, id, hash)
	if err != nil {
		return false, persistenceFailure(err, "failed to change password", map[string]any{"user_id": id})
	}
	if !ok {
		return false, nil
	}

	self := id == actorID

	var revoked int
	var revokeErr error
	if !self {
		revoked, revokeErr = d.repos.Sessions().RevokeAllForOwner(ctx, id)
	}

	d.audit.Record(ctx, userAuditEntry(ActionUserChangePassword, actorID, id, Metadata{
		"self":             self,
		"sessions_revoked": revoked,
	}, d.clock()))

	if revokeErr != nil {
		d.logger.Error("password change session revoke failed", "user_id", id, "error", revokeErr)
		return true, &CascadeError{Op: "revoke sessions", UserID: id, Err: revokeErr}
	}

	return true, nil
}

// FindAll lists users oldest first, active only unless includeInactive
func (d *UserDirectory) FindAll(ctx context.Context, includeInactive bool) ([]*UserPublic, error) {
	records, err := d.repos.Users().ListUsers(ctx, includeInactive)
	if err != nil {
		return nil, persistenceFailure(err, "failed to list users", nil)
	}

	out := make([]*UserPublic, 0, len(records))
	for _, r := range records {
		out = append(out, r.Public())
	}
	return out, nil
}

func (d *UserDirectory) FindByID(ctx context.Context, id string) (*UserPublic, error) {
	record, err := d.repos.Users().FindByIDTx(ctx, d.repos.DB(), id)
	if err != nil {
		return nil, persistenceFailure(err, "failed to find user", map[string]any{"user_id": id})
	}
	return record.Public(), nil
}

func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*UserPublic, error) {
	record, err := d.repos.Users().FindByEmail(ctx, email)
	if err != nil {
		return nil, persistenceFailure(err, "failed to find user", nil)
	}
	return record.Public(), nil
}

// findCredentials returns the full record, secret included, for login
func (d *UserDirectory) findCredentials(ctx context.Context, email string) (*User, error) {
	record, err := d.repos.Users().FindByEmail(ctx, email)
	if err != nil {
		return nil, persistenceFailure(err, "failed to find user", nil)
	}
	return record, nil
}

func (d *UserDirectory) clock() time.Time {
	return d.now().UTC()
}

func changedFields(current *User, changes UserChanges) []string {
	var fields []string
	if changes.Email != nil && *changes.Email != current.Email {
		fields = append(fields, "email")
	}
	if changes.Name != nil && *changes.Name != current.Name {
		fields = append(fields, "name")
	}
	if changes.Role != nil && *changes.Role != current.Role {
		fields = append(fields, "role")
	}
	if changes.IsActive != nil && *changes.IsActive != current.IsActive {
		fields = append(fields, "is_active")
	}
	sort.Strings(fields)
	return fields
}

func emailTaken(email string) error {
	return ErrEmailTaken.Clone().WithMetadata(map[string]any{"email": email})
}

func invalidUserInput(err error) error {
	richErr := goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid user input").
		WithTextCode(TextCodeInvalidUserInput).
		WithCode(goerrors.CodeBadRequest)

	if fields, ok := err.(validation.Errors); ok {
		meta := make(map[string]any, len(fields))
		for k, v := range fields {
			meta[k] = v.Error()
		}
		richErr = richErr.WithMetadata(meta)
	}

	return richErr
}
