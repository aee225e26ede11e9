package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("dashboard", RoleControl, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.ClientID != "dashboard" || claims.Role != RoleControl {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("dashboard", RoleControl, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ValidateToken(token, []byte("other-secret")); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken("dashboard", RoleControl, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ValidateToken(token, testSecret); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestAuthorizeReadRoleCannotMutate(t *testing.T) {
	token, err := GenerateToken("widget", RoleRead, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	get := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	get.Header.Set("Authorization", "Bearer "+token)
	if _, err := Authorize(get, testSecret); err != nil {
		t.Fatalf("read role should allow GET: %v", err)
	}

	post := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	post.Header.Set("Authorization", "Bearer "+token)
	if _, err := Authorize(post, testSecret); !errors.Is(err, ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
}

func TestAuthorizeAcceptsQueryToken(t *testing.T) {
	token, err := GenerateToken("widget", RoleRead, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/ws/state?token="+token, nil)
	if _, err := Authorize(r, testSecret); err != nil {
		t.Fatalf("query token should authorize: %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// Valid token.
	token, err := GenerateToken("cli", RoleControl, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Nil secret: dev mode passes everything.
	open := AuthMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/clear", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 in dev mode, got %d", rec.Code)
	}
}
