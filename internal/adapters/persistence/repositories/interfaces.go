package repositories

import (
	"context"
	"time"

	"c5isr-identity/internal/core/domain"
)

// IdentityRepository is the credential store. Records are read-mostly:
// they change only on successful full authentication and enrollment.
type IdentityRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.Identity, error)
	List(ctx context.Context) ([]*domain.Identity, error)
	Upsert(ctx context.Context, identity *domain.Identity) error
	Exists(ctx context.Context, username string) (bool, error)
	// RecordLogin sets last-login to at and increments the login counter
	RecordLogin(ctx context.Context, username string, at time.Time) (*domain.Identity, error)
	MarkTOTPEnrolled(ctx context.Context, username string) error
}
