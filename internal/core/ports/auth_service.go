package ports

import (
	"context"
	"time"

	"github.com/petfolio/petcare-auth/internal/core/domain"
)

// TokenPair carries the credentials minted by a successful login or
// refresh. The refresh token travels back to the client as a cookie,
// never in the response body.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionExpiresAt time.Time
}

type LoginResult struct {
	Tokens TokenPair
	User   *domain.User
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}
