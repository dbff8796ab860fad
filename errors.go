package admin

import (
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeEmailTaken       = "ADMIN_EMAIL_TAKEN"
	TextCodeSelfDelete       = "ADMIN_SELF_DELETE"
	TextCodeInvalidUserInput = "ADMIN_INVALID_USER_INPUT"
	TextCodeInvalidRole      = "ADMIN_INVALID_ROLE"
	TextCodeInvalidMetadata  = "ADMIN_INVALID_METADATA"
	TextCodeInvalidSecret    = "ADMIN_INVALID_SECRET"
	TextCodeInvalidLogin     = "ADMIN_INVALID_LOGIN"
	TextCodePersistence      = "ADMIN_PERSISTENCE_FAILURE"
)

// ErrEmailTaken is returned when another user already owns the email
var ErrEmailTaken = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrSelfDelete is returned when an actor tries to delete their own account
var ErrSelfDelete = goerrors.New("an actor cannot delete their own account", goerrors.CategoryValidation).
	WithTextCode(TextCodeSelfDelete).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidUserInput wraps validation failures for user payloads
var ErrInvalidUserInput = goerrors.New("invalid user input", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidUserInput).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidRole is returned for roles outside the allow-list
var ErrInvalidRole = goerrors.New("invalid role", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidRole).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidMetadata is returned by Metadata.Validate
var ErrInvalidMetadata = goerrors.New("invalid audit metadata", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidMetadata).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidSecret is returned for empty or too short secrets
var ErrInvalidSecret = goerrors.New("invalid secret", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidSecret).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidLogin is returned for unknown, inactive or mismatched credentials
var ErrInvalidLogin = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidLogin).
	WithCode(goerrors.CodeUnauthorized)

// CascadeError reports a follow-up step that failed after the primary
// mutation was already committed.
type CascadeError struct {
	Op     string
	UserID string
	Err    error
}

func (e *CascadeError) Error() string {
	if e == nil {
		return "cascade failed"
	}
	return fmt.Sprintf("%s for user %s failed: %v", e.Op, e.UserID, e.Err)
}

func (e *CascadeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func persistenceFailure(err error, msg string, meta map[string]any) error {
	if err == nil {
		return nil
	}

	richErr := goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodePersistence).
		WithCode(goerrors.CodeInternal)

	if len(meta) > 0 {
		richErr = richErr.WithMetadata(meta)
	}

	return richErr
}

// IsPersistenceFailure reports whether err came from the backing store
func IsPersistenceFailure(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodePersistence
}

// IsConflict reports whether err is a uniqueness conflict
func IsConflict(err error) bool {
	return hasTextCode(err, TextCodeEmailTaken)
}

// IsInvalidOperation reports whether err is a rejected self-protection check
func IsInvalidOperation(err error) bool {
	return hasTextCode(err, TextCodeSelfDelete)
}

// IsValidationError reports whether err is a rejected user payload
func IsValidationError(err error) bool {
	return hasTextCode(err, TextCodeInvalidUserInput) ||
		hasTextCode(err, TextCodeInvalidSecret) ||
		hasTextCode(err, TextCodeInvalidRole)
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// isUniqueViolation matches the driver messages for unique constraint
// failures on sqlite and postgres.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryConflict {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "constraint failed: unique")
}
