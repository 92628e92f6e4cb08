package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/petfolio/petcare-auth/internal/api/metrics"
	"github.com/petfolio/petcare-auth/internal/core/domain"
	"github.com/petfolio/petcare-auth/internal/core/ports"
)

const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/auth"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Login authenticates a user and starts a refresh-token session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		}
		return err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	setRefreshCookie(c, result.Tokens.RefreshToken, result.Tokens.SessionExpiresAt)

	return c.JSON(http.StatusOK, loginResponse{
		Message:     "login successful",
		AccessToken: result.Tokens.AccessToken,
	})
}

// Refresh exchanges the refresh-token cookie for a new access token.
// The cookie is rotated on every successful call.
//
// @Summary      Refresh access token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  refreshResponse
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	token := refreshCookieValue(c)
	if token == "" {
		metrics.RefreshTotal.WithLabelValues("missing").Inc()
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing refresh token"})
	}

	pair, err := h.authService.Refresh(c.Request().Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionExpired):
			metrics.RefreshTotal.WithLabelValues("expired").Inc()
			clearRefreshCookie(c)
			return c.JSON(http.StatusForbidden, map[string]string{"error": "session expired"})
		case errors.Is(err, domain.ErrTokenReused):
			metrics.RefreshTotal.WithLabelValues("reused").Inc()
			metrics.TokenReuseDetectedTotal.Inc()
			metrics.SessionsRevokedTotal.WithLabelValues("reuse").Inc()
			clearRefreshCookie(c)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid session"})
		case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrMissingToken):
			metrics.RefreshTotal.WithLabelValues("invalid").Inc()
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid session"})
		}
		return err
	}

	metrics.RefreshTotal.WithLabelValues("success").Inc()
	setRefreshCookie(c, pair.RefreshToken, pair.SessionExpiresAt)

	return c.JSON(http.StatusOK, refreshResponse{AccessToken: pair.AccessToken})
}

// Logout deletes the refresh-token session and clears the cookie.
// Always 204, whether or not a session existed.
//
// @Summary      Logout
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	token := refreshCookieValue(c)
	if err := h.authService.Logout(c.Request().Context(), token); err != nil {
		return err
	}

	// A request without a cookie had no session to revoke; counting it
	// would inflate the revocation rate.
	if token != "" {
		metrics.SessionsRevokedTotal.WithLabelValues("logout").Inc()
	}
	clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword replaces the authenticated user's password.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Old and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.authService.ChangePassword(c.Request().Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, domain.ErrPasswordPolicy):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "password does not meet policy"})
		case errors.Is(err, domain.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		}
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "password changed"})
}

// Me returns the profile of the authenticated user.
//
// @Summary      Current user profile
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.User
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// RevokeUserSessions force-logs-out a user everywhere by deleting all of
// their sessions. Admin only.
//
// @Summary      Revoke all sessions of a user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  map[string]int64
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/users/{id}/sessions [delete]
func (h *AuthHandler) RevokeUserSessions(c echo.Context) error {
	n, err := h.authService.RevokeAllForUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	metrics.SessionsRevokedTotal.WithLabelValues("admin").Add(float64(n))
	return c.JSON(http.StatusOK, map[string]int64{"revoked": n})
}

func refreshCookieValue(c echo.Context) string {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setRefreshCookie(c echo.Context, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
