package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/confero/confero/internal/pkg/auth"
)

func newTestRouter(jwtService *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewAuthMiddleware(jwtService)

	router := gin.New()
	protected := router.Group("", m.JWTAuth())
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userID": c.GetInt64(ContextUserID)})
	})
	protected.GET("/admin", m.RoleRequired("ADMIN"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenExp:  time.Minute,
		RefreshTokenExp: time.Hour,
		TokenIssuer:     "test",
	})
}

func TestJWTAuthMiddleware(t *testing.T) {
	jwtService := testJWTService()
	router := newTestRouter(jwtService)

	accessToken, err := jwtService.Sign(5, "u@example.com", []string{"PARTICIPANT"}, "sid", auth.ClassAccess)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	refreshToken, err := jwtService.Sign(5, "u@example.com", nil, "sid", auth.ClassRefresh)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
		{"refresh token rejected", "Bearer " + refreshToken, http.StatusUnauthorized},
		{"valid access token", "Bearer " + accessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRoleRequiredMiddleware(t *testing.T) {
	jwtService := testJWTService()
	router := newTestRouter(jwtService)

	participantToken, err := jwtService.Sign(5, "u@example.com", []string{"PARTICIPANT"}, "sid", auth.ClassAccess)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	adminToken, err := jwtService.Sign(6, "admin@example.com", []string{"PARTICIPANT", "ADMIN"}, "sid", auth.ClassAccess)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+participantToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for participant, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d", rec.Code)
	}
}
