package notes

import (
	"errors"

	"github.com/dmitrymomot/notekit/pkg/subscription"
)

var (
	// ErrNotAuthenticated is returned when no user is signed in.
	ErrNotAuthenticated = subscription.ErrNotAuthenticated

	ErrLimitReached = errors.New("note limit reached for current plan")
	ErrNoteNotFound = errors.New("note not found")
	ErrTitleTooLong = errors.New("note title is too long")
	ErrStoreFailure = errors.New("notes storage failure")

	ErrTagNotFound  = errors.New("tag not found")
	ErrInvalidTag   = errors.New("invalid tag")
	ErrDuplicateTag = errors.New("tag already exists")
)
