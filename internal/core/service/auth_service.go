package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/petfolio/petcare-auth/internal/core/domain"
	"github.com/petfolio/petcare-auth/internal/core/ports"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultSessionTTL = 7 * 24 * time.Hour

	// refreshTokenBytes is the entropy of an opaque refresh token:
	// 32 bytes rendered as 64 hex characters.
	refreshTokenBytes = 32

	// tokenInsertRetries bounds regeneration attempts when a freshly
	// minted token value collides with an existing session row.
	tokenInsertRetries = 3

	minPasswordLength = 8
)

// AuthService implements login, token refresh with rotation, logout and
// password change on top of injected user/session stores.
type AuthService struct {
	users      ports.UserRepository
	sessions   ports.SessionRepository
	retired    ports.ReuseRecorder
	jwtSecret  string
	accessTTL  time.Duration
	sessionTTL time.Duration
	logger     zerolog.Logger

	// now is swappable in tests to pin expiry boundaries.
	now func() time.Time
}

func NewAuthService(users ports.UserRepository, sessions ports.SessionRepository, retired ports.ReuseRecorder, jwtSecret string, accessTTL, sessionTTL time.Duration, logger zerolog.Logger) *AuthService {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		retired:    retired,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		sessionTTL: sessionTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Login verifies the credentials and issues a fresh token pair backed by
// a new session row. Unknown username and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Run the compare against a cost-equivalent dummy hash so
			// the unknown-username path is not observably faster.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Active || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		// Non-fatal: the stamp is informational and the session already exists.
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to stamp last login")
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user logged in")

	return &ports.LoginResult{Tokens: *pair, User: user}, nil
}

// Refresh exchanges a live refresh token for a new access token and,
// because rotation is the default, a replacement refresh token. The old
// session row is deleted, its token value is recorded as retired, and a
// retired token showing up again revokes every session of its owner.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	if refreshToken == "" {
		return nil, domain.ErrMissingToken
	}

	session, err := s.sessions.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, s.handleUnknownToken(ctx, refreshToken)
		}
		return nil, err
	}

	if session.Expired(s.now()) {
		// The row outlived its expiry because the sweep has not run yet.
		// Treat it exactly like an absent row, and drop it while here.
		if _, err := s.sessions.DeleteByToken(ctx, refreshToken); err != nil {
			s.logger.Warn().Err(err).Str("user_id", session.UserID).Msg("failed to purge expired session")
		}
		return nil, domain.ErrSessionExpired
	}

	pair, err := s.rotate(ctx, session)
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout deletes the session row for the given refresh token. Deleting a
// token that has no session is not an error: the outcome the caller asked
// for (no live session) already holds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if _, err := s.sessions.DeleteByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ChangePassword re-hashes the user's password after verifying the old
// one. Existing sessions stay valid; revoking them on password change is
// a recorded follow-up, not current behaviour.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return domain.ErrPasswordPolicy
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

// RevokeAllForUser deletes every session the user holds, forcing re-login
// on all devices. Used by the admin force-logout endpoint.
func (s *AuthService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return 0, err
	}

	n, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Int64("sessions_revoked", n).Msg("all sessions revoked")
	return n, nil
}

// issue mints an access token and a session-backed refresh token for the
// user. A unique-index collision on the token value is retried with a
// fresh random value.
func (s *AuthService) issue(ctx context.Context, userID string) (*ports.TokenPair, error) {
	access, err := s.signAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	expiresAt := s.now().UTC().Add(s.sessionTTL)

	var refresh string
	for attempt := 0; ; attempt++ {
		refresh, err = generateRefreshToken()
		if err != nil {
			return nil, fmt.Errorf("generate refresh token: %w", err)
		}

		err = s.sessions.Create(ctx, &domain.Session{
			UserID:       userID,
			RefreshToken: refresh,
			ExpiresAt:    expiresAt,
			CreatedAt:    s.now().UTC(),
		})
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrDuplicateToken) || attempt >= tokenInsertRetries {
			return nil, fmt.Errorf("create session: %w", err)
		}
		s.logger.Warn().Int("attempt", attempt+1).Msg("refresh token collision, regenerating")
	}

	return &ports.TokenPair{AccessToken: access, RefreshToken: refresh, SessionExpiresAt: expiresAt}, nil
}

// rotate replaces the session's token value: old row out first, then a
// new row in. The conditional delete is the arbiter between concurrent
// refreshes of the same token; whoever matched the row owns the
// rotation, and a delete that matched nothing means the token was
// already rotated away, so presenting it now is a replay.
func (s *AuthService) rotate(ctx context.Context, session *domain.Session) (*ports.TokenPair, error) {
	n, err := s.sessions.DeleteByToken(ctx, session.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("delete rotated session: %w", err)
	}
	if n == 0 {
		return nil, s.handleUnknownToken(ctx, session.RefreshToken)
	}

	retireTTL := session.ExpiresAt.Sub(s.now())
	if err := s.retired.MarkRetired(ctx, session.RefreshToken, session.UserID, retireTTL); err != nil {
		// The old row is already gone; losing the marker only degrades
		// reuse detection for this one token.
		s.logger.Warn().Err(err).Str("user_id", session.UserID).Msg("failed to record retired token")
	}

	return s.issue(ctx, session.UserID)
}

// handleUnknownToken decides between "never existed" and "rotated away".
// A retired token presented again means someone is replaying it: revoke
// everything the owner has.
func (s *AuthService) handleUnknownToken(ctx context.Context, refreshToken string) error {
	userID, found, err := s.retired.RetiredOwner(ctx, refreshToken)
	if err != nil {
		s.logger.Warn().Err(err).Msg("reuse lookup failed")
		return domain.ErrSessionNotFound
	}
	if !found {
		return domain.ErrSessionNotFound
	}

	n, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to revoke sessions after token reuse")
	} else {
		s.logger.Warn().Str("user_id", userID).Int64("sessions_revoked", n).Msg("retired refresh token replayed, all sessions revoked")
	}
	return domain.ErrTokenReused
}

func (s *AuthService) signAccessToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
		"jti": uuid.NewString(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

func generateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// dummyHash is a bcrypt hash of an unguessable throwaway value, used to
// equalise timing on the unknown-username login path.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("petcare-dummy-credential"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()
