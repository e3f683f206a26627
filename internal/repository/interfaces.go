package repository

import (
	"context"
	"errors"

	"github.com/vaihtovirtahepo/faustjs/internal/domain"
)

// ErrCodeNotFound is returned by ConsumeCode when the code does not exist,
// is expired, or has already been consumed. The three cases are
// deliberately indistinguishable to callers.
var ErrCodeNotFound = errors.New("authorization code not found")

// UserRepository exposes the host CMS user directory.
type UserRepository interface {
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
}

// CodeStore manages one-time authorization codes.
type CodeStore interface {
	SaveCode(ctx context.Context, code domain.AuthorizationCode) error
	// ConsumeCode atomically invalidates the code and returns the bound
	// user id. Check-and-invalidate is a single operation so two
	// concurrent exchanges can never both redeem the same code.
	ConsumeCode(ctx context.Context, code string) (int64, error)
}
