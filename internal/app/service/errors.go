package service

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized              = errors.New("unauthorized")
	ErrConfigIncomplete          = errors.New("configuration incomplete")
	ErrInsufficientRoleHierarchy = errors.New("verified role is not below the bot's highest role")
	ErrAlreadyVerified           = errors.New("applicant already verified")
	ErrReviewChannelMissing      = errors.New("review channel missing")
	ErrApplicantGone             = errors.New("applicant left the guild")
	ErrRoleUnconfigured          = errors.New("verified role not configured")
	ErrRoleMissing               = errors.New("verified role missing")
	ErrInsufficientPermission    = errors.New("bot lacks permission to grant role")
	ErrAlreadyResolved           = errors.New("application already resolved")
	ErrNotifyFailed              = errors.New("direct notification failed")

	ErrInvalidReason       = errors.New("invalid reason")
	ErrApplicationNotFound = errors.New("application not found")
)

// PersistError wraps a failed durable write. The caller may retry; nothing
// was applied in memory.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return fmt.Sprintf("persist: %v", e.Err) }
func (e *PersistError) Unwrap() error { return e.Err }

// UserMessage is the short reason shown (ephemerally) to whoever triggered err.
func UserMessage(err error) string {
	var pe *PersistError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return "⚠️ Could not save right now. Please try again."
	case errors.Is(err, ErrUnauthorized):
		return "❌ You don't have permission to do that."
	case errors.Is(err, ErrConfigIncomplete):
		return "❌ Verification isn't fully set up. Use `/verify-setup` first."
	case errors.Is(err, ErrInsufficientRoleHierarchy):
		return "❌ I can't assign that role. Move my highest role above the verified role."
	case errors.Is(err, ErrAlreadyVerified):
		return "✅ You're already verified!"
	case errors.Is(err, ErrReviewChannelMissing):
		return "❌ The review channel isn't set or no longer exists. Please contact an admin."
	case errors.Is(err, ErrApplicantGone):
		return "❌ The applicant has left the server."
	case errors.Is(err, ErrRoleUnconfigured):
		return "❌ The verified role hasn't been configured."
	case errors.Is(err, ErrRoleMissing):
		return "❌ The verified role no longer exists."
	case errors.Is(err, ErrInsufficientPermission):
		return "❌ I don't have permission to assign the verified role."
	case errors.Is(err, ErrAlreadyResolved):
		return "ℹ️ This application has already been resolved."
	case errors.Is(err, ErrInvalidReason):
		return "❌ Please enter a reason (1–1000 characters)."
	case errors.Is(err, ErrApplicationNotFound):
		return "❌ That application no longer exists."
	default:
		return "⚠️ Something went wrong. Please try again."
	}
}
