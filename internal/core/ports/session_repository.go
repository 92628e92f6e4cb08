package ports

import (
	"context"
	"time"

	"github.com/petfolio/petcare-auth/internal/core/domain"
)

// SessionRepository persists refresh-token sessions. Token values are
// unique across all rows; Create must fail with domain.ErrDuplicateToken
// when the value collides so the issuer can regenerate and retry.
// DeleteByToken reports how many rows it removed; rotation uses that
// count to arbitrate concurrent refreshes of the same token.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	FindByToken(ctx context.Context, token string) (*domain.Session, error)
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
