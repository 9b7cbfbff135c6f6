package port

import (
	"context"

	"receiptcsv/internal/domain"
)

// SessionStore keeps per-browser session state between requests.
type SessionStore interface {
	// Get returns domain.ErrSessionNotFound when id is unknown or expired.
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
}
