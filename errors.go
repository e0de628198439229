package pubhost

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("not found")

	ErrSubdirectoryTaken  = errors.New("subdirectory is already taken")
	ErrSlugTaken          = errors.New("slug is already used on this site")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrSiteLimit is returned when a free-plan user tries to create more
	// sites than the plan allows.
	ErrSiteLimit = errors.New("site limit reached for the free plan")

	ErrForbidden     = errors.New("forbidden")
	ErrDraftTooLarge = errors.New("draft exceeds maximum size")
	ErrInvalidDraft  = errors.New("draft must be a JSON object")
)
