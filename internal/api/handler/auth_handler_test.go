package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/petfolio/petcare-auth/internal/api/metrics"
	"github.com/petfolio/petcare-auth/internal/core/domain"
	"github.com/petfolio/petcare-auth/internal/core/ports"
)

type stubAuthService struct {
	loginFn          func(ctx context.Context, username, password string) (*ports.LoginResult, error)
	refreshFn        func(ctx context.Context, refreshToken string) (*ports.TokenPair, error)
	logoutFn         func(ctx context.Context, refreshToken string) error
	changePasswordFn func(ctx context.Context, userID, oldPassword, newPassword string) error
	revokeAllFn      func(ctx context.Context, userID string) (int64, error)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, username, password)
}

func (s *stubAuthService) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	return s.refreshFn(ctx, refreshToken)
}

func (s *stubAuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.logoutFn(ctx, refreshToken)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return s.changePasswordFn(ctx, userID, oldPassword, newPassword)
}

func (s *stubAuthService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.revokeAllFn(ctx, userID)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == refreshCookieName {
			return cookie
		}
	}
	return nil
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	expiresAt := time.Now().Add(7 * 24 * time.Hour)
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (*ports.LoginResult, error) {
			if username != "alice" || password != "Secret123" {
				t.Fatalf("unexpected args: %s %s", username, password)
			}
			return &ports.LoginResult{
				Tokens: ports.TokenPair{AccessToken: "access123", RefreshToken: "refresh123", SessionExpiresAt: expiresAt},
				User:   &domain.User{ID: "u1", Username: "alice"},
			}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/login", `{"username":"alice","password":"Secret123"}`)
	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["accessToken"] != "access123" {
		t.Fatalf("expected access token in body, got %v", resp["accessToken"])
	}

	cookie := refreshCookie(rec)
	if cookie == nil {
		t.Fatalf("expected refresh cookie")
	}
	if cookie.Value != "refresh123" {
		t.Fatalf("unexpected cookie value: %s", cookie.Value)
	}
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteNoneMode {
		t.Fatalf("cookie missing security attributes: %+v", cookie)
	}
	if cookie.MaxAge <= 0 {
		t.Fatalf("expected positive Max-Age, got %d", cookie.MaxAge)
	}
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (*ports.LoginResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/login", `{"username":"alice"}`)
	_ = handler.Login(c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (*ports.LoginResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/login", `{"username":"alice","password":"bad"}`)
	_ = handler.Login(c)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if refreshCookie(rec) != nil {
		t.Fatalf("failed login must not set a cookie")
	}
}

func withRefreshCookie(e *echo.Echo, token string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Refresh_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		refreshFn: func(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
			if refreshToken != "old-token" {
				t.Fatalf("unexpected token: %s", refreshToken)
			}
			return &ports.TokenPair{AccessToken: "access456", RefreshToken: "new-token", SessionExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := withRefreshCookie(e, "old-token")
	if err := handler.Refresh(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["accessToken"] != "access456" {
		t.Fatalf("expected new access token, got %v", resp["accessToken"])
	}

	cookie := refreshCookie(rec)
	if cookie == nil || cookie.Value != "new-token" {
		t.Fatalf("expected rotated cookie, got %+v", cookie)
	}
}

func TestAuthHandler_Refresh_MissingCookie(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		refreshFn: func(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := withRefreshCookie(e, "")
	_ = handler.Refresh(c)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthHandler_Refresh_Expired(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		refreshFn: func(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
			return nil, domain.ErrSessionExpired
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := withRefreshCookie(e, "stale-token")
	_ = handler.Refresh(c)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	cookie := refreshCookie(rec)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", cookie)
	}
}

func TestAuthHandler_Refresh_UnknownSession(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		refreshFn: func(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
			return nil, domain.ErrSessionNotFound
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := withRefreshCookie(e, "gone-token")
	_ = handler.Refresh(c)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthHandler_Refresh_ReusedToken(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		refreshFn: func(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
			return nil, domain.ErrTokenReused
		},
	}
	handler := NewAuthHandler(stub)

	reuseBefore := testutil.ToFloat64(metrics.SessionsRevokedTotal.WithLabelValues("reuse"))

	c, rec := withRefreshCookie(e, "stolen-token")
	_ = handler.Refresh(c)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	cookie := refreshCookie(rec)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", cookie)
	}
	if got := testutil.ToFloat64(metrics.SessionsRevokedTotal.WithLabelValues("reuse")); got != reuseBefore+1 {
		t.Fatalf("expected reuse revocation to be counted, got %v before and %v after", reuseBefore, got)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	e := newEcho()
	var seen string
	stub := &stubAuthService{
		logoutFn: func(ctx context.Context, refreshToken string) error {
			seen = refreshToken
			return nil
		},
	}
	handler := NewAuthHandler(stub)

	logoutBefore := testutil.ToFloat64(metrics.SessionsRevokedTotal.WithLabelValues("logout"))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "tok"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen != "tok" {
		t.Fatalf("service did not receive cookie token")
	}
	cookie := refreshCookie(rec)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", cookie)
	}
	if got := testutil.ToFloat64(metrics.SessionsRevokedTotal.WithLabelValues("logout")); got != logoutBefore+1 {
		t.Fatalf("expected logout revocation to be counted, got %v before and %v after", logoutBefore, got)
	}
}

func TestAuthHandler_Logout_NoCookie(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		logoutFn: func(ctx context.Context, refreshToken string) error {
			if refreshToken != "" {
				t.Fatalf("expected empty token, got %q", refreshToken)
			}
			return nil
		},
	}
	handler := NewAuthHandler(stub)

	logoutBefore := testutil.ToFloat64(metrics.SessionsRevokedTotal.WithLabelValues("logout"))

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(metrics.SessionsRevokedTotal.WithLabelValues("logout")); got != logoutBefore {
		t.Fatalf("logout without a session must not count a revocation, got %v before and %v after", logoutBefore, got)
	}
}

func TestAuthHandler_ChangePassword_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		changePasswordFn: func(ctx context.Context, userID, oldPassword, newPassword string) error {
			if userID != "u1" || oldPassword != "Secret123" || newPassword != "NewSecret456" {
				t.Fatalf("unexpected args: %s %s %s", userID, oldPassword, newPassword)
			}
			return nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/change-password", `{"oldPassword":"Secret123","newPassword":"NewSecret456","confirmPassword":"NewSecret456"}`)
	c.Set("user", &domain.User{ID: "u1", Username: "alice"})

	if err := handler.ChangePassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_ChangePassword_ConfirmMismatch(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		changePasswordFn: func(ctx context.Context, userID, oldPassword, newPassword string) error {
			t.Fatalf("should not be called")
			return nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/change-password", `{"oldPassword":"Secret123","newPassword":"NewSecret456","confirmPassword":"Different789"}`)
	c.Set("user", &domain.User{ID: "u1"})

	_ = handler.ChangePassword(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthHandler_ChangePassword_TooShort(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		changePasswordFn: func(ctx context.Context, userID, oldPassword, newPassword string) error {
			t.Fatalf("should not be called")
			return nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/change-password", `{"oldPassword":"Secret123","newPassword":"short","confirmPassword":"short"}`)
	c.Set("user", &domain.User{ID: "u1"})

	_ = handler.ChangePassword(c)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthHandler_ChangePassword_WrongOldPassword(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		changePasswordFn: func(ctx context.Context, userID, oldPassword, newPassword string) error {
			return domain.ErrInvalidCredentials
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := postJSON(e, "/auth/change-password", `{"oldPassword":"wrong","newPassword":"NewSecret456","confirmPassword":"NewSecret456"}`)
	c.Set("user", &domain.User{ID: "u1"})

	_ = handler.ChangePassword(c)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	e := newEcho()
	handler := NewAuthHandler(&stubAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", &domain.User{ID: "u1", Username: "alice", Role: domain.RoleOwner, Active: true})

	if err := handler.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["username"] != "alice" {
		t.Fatalf("unexpected profile: %+v", resp)
	}
}

func TestAuthHandler_RevokeUserSessions(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		revokeAllFn: func(ctx context.Context, userID string) (int64, error) {
			if userID != "u2" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			return 2, nil
		},
	}
	handler := NewAuthHandler(stub)

	req := httptest.NewRequest(http.MethodDelete, "/admin/users/u2/sessions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("u2")

	if err := handler.RevokeUserSessions(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["revoked"] != 2 {
		t.Fatalf("expected 2 revoked, got %d", resp["revoked"])
	}
}

func TestAuthHandler_Me_NoUserInContext(t *testing.T) {
	e := newEcho()
	handler := NewAuthHandler(&stubAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.Me(c)
	if err == nil {
		t.Fatalf("expected error without user in context")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}
