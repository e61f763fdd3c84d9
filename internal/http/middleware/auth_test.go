// README: Tests for auth middleware and role guards.
package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"ridebook/internal/http/middleware"
	"ridebook/internal/infra"
	"ridebook/internal/logging"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	id  *infra.Identity
	err error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.Identity, error) {
	return s.id, s.err
}

func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery(logging.Discard()), middleware.Auth(verifier))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": middleware.CallerUID(c), "role": middleware.CallerRole(c)})
	})
	r.GET("/admin", middleware.RequireRole(infra.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func get(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(&stubVerifier{id: &infra.Identity{UserID: "user1"}})
	if w := get(r, "/test", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubVerifier{id: &infra.Identity{UserID: "user1"}})
	if w := get(r, "/test", "Token sometoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if w := get(r, "/test", "Bearer   "); w.Code != http.StatusUnauthorized {
		t.Errorf("blank token: expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("bad token")})
	if w := get(r, "/test", "Bearer invalidtoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidToken_UIDAndRolePopulated(t *testing.T) {
	r := newTestRouter(&stubVerifier{id: &infra.Identity{UserID: "driver123", Role: infra.RoleDriver}})
	w := get(r, "/test", "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"uid":"driver123"`) || !strings.Contains(body, `"role":"driver"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role infra.Role
		want int
	}{
		{infra.RoleAdmin, http.StatusNoContent},
		{infra.RoleDriver, http.StatusForbidden},
		{infra.RolePassenger, http.StatusForbidden},
	}
	for _, tc := range cases {
		r := newTestRouter(&stubVerifier{id: &infra.Identity{UserID: "u1", Role: tc.role}})
		if w := get(r, "/admin", "Bearer t"); w.Code != tc.want {
			t.Errorf("role %s: expected %d, got %d", tc.role, tc.want, w.Code)
		}
	}
}

func TestRecovery(t *testing.T) {
	r := newTestRouter(&stubVerifier{id: &infra.Identity{UserID: "u1"}})
	if w := get(r, "/panic", "Bearer t"); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
