package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestTokenRoundTrip(t *testing.T) {
	a := NewAuthService("unit-test-secret", "x")
	token, err := a.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Username != "admin" {
		t.Fatalf("expected username 'admin', got %q", claims.Username)
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewAuthService("secret-one", "x")
	verifier := NewAuthService("secret-two", "x")
	token, err := issuer.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestPasswordCheck(t *testing.T) {
	a := NewAuthService("secret", "")
	hash, err := a.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	a = NewAuthService("secret", hash)
	if !a.CheckPassword("hunter2") {
		t.Fatalf("expected correct password to verify")
	}
	if a.CheckPassword("wrong") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestOpenModePassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewAuthService("secret", "")
	if a.Enabled() {
		t.Fatalf("expected auth to be disabled without a password hash")
	}

	r := gin.New()
	r.Use(a.RequireAPIAuth())
	r.GET("/api/snapshot", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected open-mode request to pass, got %d", w.Code)
	}
}

func TestAPIAuthRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewAuthService("secret", "some-hash")

	r := gin.New()
	r.Use(a.RequireAPIAuth())
	r.GET("/api/snapshot", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestPostGuardBlocksNonAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.POST("/foo", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	req := httptest.NewRequest(http.MethodPost, "/foo", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for non-API POST, got %d", w.Code)
	}
}

func TestPostGuardAllowsAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.POST("/api/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected API POST to succeed (200), got %d", w.Code)
	}
}
