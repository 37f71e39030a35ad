package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultJWTSecret = "change-me-procman-secret"
	TokenExpiry      = 24 * time.Hour
	CookieName       = "procman_token"
)

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService issues and validates dashboard session tokens. When no
// password hash is configured the service runs in open mode and the
// middleware lets every request through; procman is a localhost tool by
// default and authentication is opt-in.
type AuthService struct {
	secret       []byte
	passwordHash string
	mu           sync.Mutex
	apiFailures  map[string]*apiFailure
}

type apiFailure struct {
	count        int
	lastAttempt  time.Time
	lockoutUntil time.Time
}

// NewAuthService builds the service from the configured JWT secret and
// bcrypt password hash. Empty secret falls back to a development default.
func NewAuthService(secret, passwordHash string) *AuthService {
	if strings.TrimSpace(secret) == "" {
		secret = defaultJWTSecret
	}
	return &AuthService{
		secret:       []byte(secret),
		passwordHash: strings.TrimSpace(passwordHash),
		apiFailures:  make(map[string]*apiFailure),
	}
}

// Enabled reports whether a password is configured.
func (a *AuthService) Enabled() bool {
	return a.passwordHash != ""
}

func (a *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword verifies a login attempt against the configured hash.
func (a *AuthService) CheckPassword(password string) bool {
	if !a.Enabled() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) == nil
}

func (a *AuthService) GenerateToken(username string) (string, error) {
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// Helper to detect if current request is effectively HTTPS (behind proxy or direct)
func requestIsSecure(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); strings.EqualFold(proto, "https") {
		return true
	}
	return false
}

// SetAuthCookie sets the session cookie with appropriate flags.
func SetAuthCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(c),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(TokenExpiry.Seconds()),
	})
}

// ClearAuthCookie clears the session cookie using the same attributes.
func ClearAuthCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(c),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// RequireAuth gates browser page routes; unauthenticated requests are
// redirected to the login page.
func (a *AuthService) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}
		tokenString := bearerOrCookie(c)
		if tokenString == "" {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// RequireAPIAuth gates API routes, returning JSON errors instead of
// redirects and locking out clients after repeated failures.
func (a *AuthService) RequireAPIAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}
		key := c.ClientIP()
		if retryAfter, locked := a.checkAPILockout(key); locked {
			abortLocked(c, retryAfter)
			return
		}

		tokenString := bearerOrCookie(c)
		if tokenString == "" {
			if retryAfter, locked := a.recordAPIFailure(key); locked {
				abortLocked(c, retryAfter)
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header or cookie required"})
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			if retryAfter, locked := a.recordAPIFailure(key); locked {
				abortLocked(c, retryAfter)
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		a.clearAPIFailures(key)
		c.Set("username", claims.Username)
		c.Next()
	}
}

func bearerOrCookie(c *gin.Context) string {
	tokenString := c.GetHeader("Authorization")
	if tokenString != "" {
		return strings.TrimPrefix(tokenString, "Bearer ")
	}
	tokenString, _ = c.Cookie(CookieName)
	return tokenString
}

func abortLocked(c *gin.Context, retryAfter time.Duration) {
	c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       "Too many unauthorized attempts",
		"retry_after": int(retryAfter.Seconds()),
	})
}

func (a *AuthService) checkAPILockout(key string) (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.apiFailures[key]
	if !ok {
		return 0, false
	}
	now := time.Now()
	if rec.lockoutUntil.After(now) {
		return rec.lockoutUntil.Sub(now), true
	}
	return 0, false
}

func (a *AuthService) recordAPIFailure(key string) (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	rec, ok := a.apiFailures[key]
	if !ok {
		rec = &apiFailure{}
		a.apiFailures[key] = rec
	}

	if rec.lockoutUntil.After(now) {
		return rec.lockoutUntil.Sub(now), true
	}

	if now.Sub(rec.lastAttempt) > 5*time.Minute {
		rec.count = 0
	}

	rec.lastAttempt = now
	rec.count++

	if rec.count >= 3 {
		lockout := time.Duration(rec.count) * 15 * time.Second
		if lockout > 2*time.Minute {
			lockout = 2 * time.Minute
		}
		rec.lockoutUntil = now.Add(lockout)
		rec.count = 0
		return lockout, true
	}

	return 0, false
}

func (a *AuthService) clearAPIFailures(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.apiFailures, key)
}
