package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(userID uuid.UUID, role string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
}

func TestTokenManager_IssueVerifyRoundTrip(t *testing.T) {
	m := NewTokenManager(testSigningKey, time.Hour)
	uid := uuid.New()

	token, exp, err := m.Issue(uid, RoleDoctor)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expected expiry in the future, got %v", exp)
	}

	id, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.UserID != uid {
		t.Errorf("expected user %s, got %s", uid, id.UserID)
	}
	if id.Role != RoleDoctor {
		t.Errorf("expected role DOCTOR, got %s", id.Role)
	}
}

func TestNewTokenManager_DefaultTTL(t *testing.T) {
	m := NewTokenManager(testSigningKey, 0)
	if m.ttl != DefaultTokenTTL {
		t.Errorf("expected default ttl %v, got %v", DefaultTokenTTL, m.ttl)
	}
}

func TestTokenManager_VerifyRejects(t *testing.T) {
	m := NewTokenManager(testSigningKey, time.Hour)
	uid := uuid.New()

	expired := validClaims(uid, RolePatient)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExp := validClaims(uid, RolePatient)
	noExp.ExpiresAt = nil

	badRole := validClaims(uid, "SUPERUSER")

	badSubject := validClaims(uid, RolePatient)
	badSubject.Subject = "not-a-uuid"

	wrongIssuer := validClaims(uid, RolePatient)
	wrongIssuer.Issuer = "someone-else"

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims(uid, RoleAdmin)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"empty", ""},
		{"wrong key", createTestToken(t, validClaims(uid, RolePatient), []byte("another-secret"))},
		{"expired", createTestToken(t, expired, testSigningKey)},
		{"missing exp", createTestToken(t, noExp, testSigningKey)},
		{"unknown role", createTestToken(t, badRole, testSigningKey)},
		{"bad subject", createTestToken(t, badSubject, testSigningKey)},
		{"wrong issuer", createTestToken(t, wrongIssuer, testSigningKey)},
		{"alg none", noneToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			if !errors.Is(err, apperr.ErrUnauthenticated) {
				t.Fatalf("expected unauthenticated error, got %v", err)
			}
			if err.Error() != "invalid or expired token" {
				t.Errorf("expected uniform message, got %q", err.Error())
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Token abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := BearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := JWTMiddleware(NewTokenManager(testSigningKey, time.Hour), nil)
	err := mw(handler)(c)

	if err == nil {
		t.Fatal("expected error for missing header")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_InvalidToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, validClaims(uuid.New(), RolePatient), []byte("wrong")))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := JWTMiddleware(NewTokenManager(testSigningKey, time.Hour), nil)
	err := mw(func(c echo.Context) error { return nil })(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
	if httpErr.Message != "invalid or expired token" {
		t.Errorf("unexpected message %v", httpErr.Message)
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	m := NewTokenManager(testSigningKey, time.Hour)
	uid := uuid.New()
	token, _, err := m.Issue(uid, RolePatient)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Identity
	handler := func(c echo.Context) error {
		got, _ = IdentityFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	}

	if err := JWTMiddleware(m, nil)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != uid || got.Role != RolePatient {
		t.Errorf("unexpected identity %+v", got)
	}
	if UserIDFromContext(c.Request().Context()) != uid {
		t.Error("UserIDFromContext mismatch")
	}
	if RoleFromContext(c.Request().Context()) != RolePatient {
		t.Error("RoleFromContext mismatch")
	}
	if c.Get("user_id") != uid.String() {
		t.Errorf("expected user_id on echo context, got %v", c.Get("user_id"))
	}
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/blog", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/blog")

	called := false
	mw := JWTMiddleware(NewTokenManager(testSigningKey, time.Hour), AuthSkipper)
	err := mw(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to run for public route")
	}
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret!" {
		t.Fatal("hash must not equal the plaintext")
	}
	if err := CheckPassword(hash, "s3cret!"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Error("expected mismatch error")
	}
}
