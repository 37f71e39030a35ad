package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"procman/internal/middleware"
	"procman/internal/monitor"
)

type AuthHandlers struct {
	authService *middleware.AuthService
	monitor     *monitor.Monitor
}

func NewAuthHandlers(authService *middleware.AuthService, m *monitor.Monitor) *AuthHandlers {
	return &AuthHandlers{authService: authService, monitor: m}
}

type LoginRequest struct {
	Password string `json:"password" binding:"required" validate:"required,min=6"`
}

func (h *AuthHandlers) logAuthEvent(format string, args ...interface{}) {
	if h == nil || h.monitor == nil || h.monitor.Log == nil {
		return
	}
	h.monitor.Log.Write(fmt.Sprintf(format, args...))
}

func (h *AuthHandlers) LoginGET(c *gin.Context) {
	// Open mode has no login page to show.
	if !h.authService.Enabled() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	if token, _ := c.Cookie(middleware.CookieName); token != "" {
		if _, err := h.authService.ValidateToken(token); err == nil {
			c.Redirect(http.StatusFound, "/")
			return
		}
	}
	c.HTML(http.StatusOK, "login.html", gin.H{
		"redirect": c.Query("redirect"),
		"error":    c.Query("error"),
	})
}

func (h *AuthHandlers) LoginPOST(c *gin.Context) {
	if !h.authService.Enabled() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	password := strings.TrimSpace(c.PostForm("password"))
	redirect := strings.TrimSpace(c.PostForm("redirect"))

	if password == "" {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{
			"error":    "Password is required",
			"redirect": redirect,
		})
		return
	}

	if !h.authService.CheckPassword(password) {
		h.logAuthEvent("UI login failed from %s: password mismatch", c.ClientIP())
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"error":    "Invalid password",
			"redirect": redirect,
		})
		return
	}

	h.logAuthEvent("UI login successful from %s", c.ClientIP())

	token, err := h.authService.GenerateToken("operator")
	if err != nil {
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{
			"error":    "Failed to generate authentication token",
			"redirect": redirect,
		})
		return
	}

	middleware.SetAuthCookie(c, token)

	if redirect == "" || redirect == "/login" {
		redirect = "/"
	}
	c.Redirect(http.StatusFound, redirect)
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	middleware.ClearAuthCookie(c)
	c.Redirect(http.StatusFound, "/login")
}

// APILogin handles JSON-based authentication requests.
func (h *AuthHandlers) APILogin(c *gin.Context) {
	if !h.authService.Enabled() {
		c.JSON(http.StatusOK, gin.H{"token": "", "auth": "disabled"})
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}
	if err := middleware.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Validation failed",
		})
		return
	}

	if !h.authService.CheckPassword(strings.TrimSpace(req.Password)) {
		h.logAuthEvent("API login failed from %s: password mismatch", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid password",
		})
		return
	}

	h.logAuthEvent("API login successful from %s", c.ClientIP())

	token, err := h.authService.GenerateToken("operator")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate authentication token",
		})
		return
	}

	middleware.SetAuthCookie(c, token)
	c.JSON(http.StatusOK, gin.H{"token": token})
}
