package apiapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authsvc "github.com/areut/bookmarket/backend/internal/services/auth"
)

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestRequireRoleAllowsCaseInsensitiveMatch(t *testing.T) {
	mw := RequireRole("ADMIN")
	next, called := okHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/purchases", nil)
	req = req.WithContext(authsvc.WithIdentity(context.Background(), authsvc.Identity{
		UserID: 1,
		Role:   "admin",
	}))
	rr := httptest.NewRecorder()

	mw(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !*called {
		t.Fatalf("expected pass-through, got status %d", rr.Code)
	}
}

func TestRequireRoleRejectsWrongRole(t *testing.T) {
	mw := RequireRole("ADMIN")
	next, called := okHandler()

	req := httptest.NewRequest(http.MethodGet, "/admin/purchases", nil)
	req = req.WithContext(authsvc.WithIdentity(context.Background(), authsvc.Identity{
		UserID: 2,
		Role:   "",
	}))
	rr := httptest.NewRecorder()

	mw(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden || *called {
		t.Fatalf("expected 403, got status %d", rr.Code)
	}
}

func TestRequireRoleRejectsAnonymous(t *testing.T) {
	mw := RequireRole("ADMIN")
	next, called := okHandler()

	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/purchases", nil))
	if rr.Code != http.StatusUnauthorized || *called {
		t.Fatalf("expected 401, got status %d", rr.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	manager := authsvc.NewJWTManager("secret", time.Hour)
	mw := AuthMiddleware(manager, nil)

	token, _, err := manager.GenerateAccessToken(7, "ADMIN")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var seen authsvc.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = authsvc.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/purchases/1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("valid token: status %d", rr.Code)
	}
	if seen.UserID != 7 || seen.Role != "ADMIN" {
		t.Fatalf("unexpected identity: %+v", seen)
	}

	for _, header := range []string{"", "Bearer nope", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/purchases/1", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		mw(next).ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status %d, want 401", header, rr.Code)
		}
	}
}
