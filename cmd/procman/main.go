package main

import (
	"context"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"procman/internal/handlers"
	"procman/internal/middleware"
	"procman/internal/monitor"
	"procman/internal/utils"
	"procman/internal/version"
	"procman/ui"
)

type App struct {
	monitor     *monitor.Monitor
	authService *middleware.AuthService
	wsHub       *middleware.Hub
	rateLimiter *middleware.RateLimiter
	tlsEnabled  bool
	tlsCertPath string
	tlsKeyPath  string
	ginLogFile  *os.File
}

var app *App

func logStuff(msg string) {
	if app != nil && app.monitor != nil && app.monitor.Log != nil {
		app.monitor.Log.Write(msg)
	} else {
		utils.NewLogger("").Write(msg)
	}
}

// monitorLogWriter adapts Monitor.Log to io.Writer for frameworks like Gin.
type monitorLogWriter struct{ mon *monitor.Monitor }

func (w monitorLogWriter) Write(p []byte) (int, error) {
	logStuff(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func main() {
	// Always run Gin in release mode; debugging is controlled via logs.
	gin.SetMode(gin.ReleaseMode)

	// Parse CLI flags: --config/-c <path>
	var configPath string
	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--config", "-c":
			if i+1 < len(os.Args) {
				configPath = strings.TrimSpace(os.Args[i+1])
				i++
			}
		}
	}

	mon := monitor.New(configPath)

	// On Windows with tray enabled, spawn a detached background instance so
	// the launching console returns immediately. Env guard prevents loops.
	if runtime.GOOS == "windows" && mon.TrayEnabled {
		if spawnDetachedIfNeeded(mon.TrayEnabled) {
			return
		}
	}

	app = &App{
		monitor:     mon,
		authService: middleware.NewAuthService(mon.JWTSecret, mon.PasswordHash),
		wsHub:       middleware.NewHub(mon.Log),
		rateLimiter: middleware.NewRateLimiter(rate.Every(time.Minute/100), 10),
	}

	if runtime.GOOS == "windows" && mon.TrayEnabled {
		hideConsoleWindow()
	}

	// Apply TLS settings; resolve relative paths against the configured root.
	app.tlsEnabled = mon.TLSEnabled
	app.tlsCertPath = resolveRootPath(mon, mon.TLSCertPath)
	app.tlsKeyPath = resolveRootPath(mon, mon.TLSKeyPath)

	if !mon.IsActive() {
		logStuff("Monitor failed to initialize")
		os.Exit(1)
	}

	// Stream each completed snapshot to connected websocket clients.
	go app.wsHub.Run()
	mon.SetPublisher(app.wsHub.Broadcast)
	mon.Start()

	// Route Gin logs to a dedicated GIN.log (fallback to the monitor log).
	if mon.Paths != nil {
		if err := os.MkdirAll(mon.Paths.LogsDir(), 0o755); err != nil {
			logStuff(fmt.Sprintf("Failed to ensure logs directory: %v", err))
		} else {
			ginLogPath := filepath.Join(mon.Paths.LogsDir(), "GIN.log")
			file, err := os.OpenFile(ginLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				logStuff(fmt.Sprintf("Failed to open Gin log file: %v", err))
			} else {
				app.ginLogFile = file
				gin.DefaultWriter = file
				gin.DefaultErrorWriter = file
			}
		}
	}
	if app.ginLogFile == nil {
		gin.DefaultWriter = monitorLogWriter{mon: mon}
		gin.DefaultErrorWriter = monitorLogWriter{mon: mon}
	}
	if app.ginLogFile != nil {
		defer app.ginLogFile.Close()
	}

	r := setupRouter()

	srv := &http.Server{
		Addr:           ":" + strconv.Itoa(mon.Port),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	srv.ErrorLog = log.New(monitorLogWriter{mon: mon}, "", 0)

	certMissing := strings.TrimSpace(app.tlsCertPath) == ""
	keyMissing := strings.TrimSpace(app.tlsKeyPath) == ""
	useTLS := app.tlsEnabled && !certMissing && !keyMissing
	if app.tlsEnabled && !useTLS {
		logStuff("TLS enabled but certificate or key missing; falling back to HTTP")
		app.tlsEnabled = false
	}

	startServer := func() {
		if useTLS {
			logStuff(fmt.Sprintf("Starting HTTPS server on port %d", mon.Port))
			if err := srv.ListenAndServeTLS(app.tlsCertPath, app.tlsKeyPath); err != nil && err != http.ErrServerClosed {
				logStuff(fmt.Sprintf("HTTPS server failed to start: %v", err))
				os.Exit(1)
			}
		} else {
			logStuff(fmt.Sprintf("Starting HTTP server on port %d", mon.Port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logStuff(fmt.Sprintf("Server failed to start: %v", err))
				os.Exit(1)
			}
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if mon.TrayEnabled && runtime.GOOS == "windows" {
		trayDone := make(chan struct{})
		go startServer()
		go func() {
			<-quit
			logStuff("Shutdown signal received")
			trayQuit()
		}()
		// Tray must run on the main thread on Windows; blocks until exit.
		startTray(app, srv, trayDone)
		logStuff("Tray exit requested")
	} else {
		go startServer()
		<-quit
		logStuff("Shutdown signal received")
	}

	// Gracefully stop HTTP server (allow in-flight requests up to 5s).
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(ctx); err != nil {
		logStuff(fmt.Sprintf("HTTP server shutdown error: %v", err))
	}
	cancel()

	app.rateLimiter.Stop()
	mon.Stop()

	logStuff("Server exited")
}

func resolveRootPath(mon *monitor.Monitor, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if mon.Paths != nil {
		return filepath.Join(mon.Paths.RootPath, p)
	}
	return p
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	// Security middleware
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	// Rate limiting - 100 requests per minute per IP
	r.Use(app.rateLimiter.Middleware())

	// Load templates and static assets from the embedded filesystem.
	funcMap := htmltmpl.FuncMap{
		"appVersion": func() string { return version.Version },
		"buildTime":  func() string { return version.String() },
	}
	r.SetFuncMap(funcMap)
	t, err := htmltmpl.New("").Funcs(funcMap).ParseFS(ui.Assets, "templates/*.html")
	if err != nil {
		log.Fatalf("FATAL: failed to parse templates: %v", err)
	}
	r.SetHTMLTemplate(t)

	staticFS, err := fs.Sub(ui.Assets, "static")
	if err != nil {
		logStuff(fmt.Sprintf("FATAL: embedded static directory missing: %v", err))
		os.Exit(1)
	}
	r.StaticFS("/static", http.FS(staticFS))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version": version.Version,
			"commit":  version.Commit,
			"date":    version.Date,
			"dirty":   version.Dirty,
			"display": version.String(),
		})
	})

	authHandlers := handlers.NewAuthHandlers(app.authService, app.monitor)
	monitorHandlers := handlers.NewMonitorHandlers(app.monitor, app.wsHub)
	processHandlers := handlers.NewProcessHandlers(app.monitor)

	// Authentication routes
	auth := r.Group("/")
	{
		auth.GET("/login", authHandlers.LoginGET)
		auth.POST("/login", authHandlers.LoginPOST)
		auth.GET("/logout", authHandlers.Logout)
		auth.POST("/api/login", authHandlers.APILogin)
	}

	// API routes (require token authentication when a password is set)
	api := r.Group("/api")
	api.Use(app.authService.RequireAPIAuth())
	{
		api.GET("/stats", monitorHandlers.APIStats)
		api.GET("/snapshot", monitorHandlers.APISnapshot)
		api.GET("/history", monitorHandlers.APIHistory)
		api.GET("/processes", processHandlers.APIProcesses)
		api.GET("/processes/export", processHandlers.ExportProcessesCSV)
		api.POST("/processes/:pid/kill", processHandlers.APIProcessKill)
	}

	// Protected web routes
	protected := r.Group("/")
	protected.Use(app.authService.RequireAuth())
	{
		protected.GET("/", monitorHandlers.Dashboard)
	}

	// WebSocket endpoint
	r.GET("/ws", app.wsHub.HandleWebSocket())

	return r
}
