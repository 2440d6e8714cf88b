package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"verbfleet/internal/round"
	"verbfleet/internal/verbs"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	setupLogging(isProduction, getEnv("LOG_LEVEL", "info"))
	logInfo("Starting Verbfleet in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	ds, err := loadDataset(os.Getenv("VERBS_DIR"))
	if err != nil {
		logFatal("Failed to load verb tables: %v", err)
	}
	logInfo("Loaded %d verbs across %d tenses", ds.Total(), len(verbs.AllTenses))

	app := newApp(ds, isProduction)
	router := app.setupRouter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.runJanitor(ctx)

	startServer(router, app)
}

// loadDataset reads the verb tables from dir when it exists, falling back to
// the tables compiled into the binary.
func loadDataset(dir string) (*verbs.Dataset, error) {
	if dir != "" {
		if dirExists(dir) {
			return verbs.LoadDir(dir)
		}
		logWarn("VERBS_DIR %q does not exist, using embedded verb tables", dir)
	}
	return verbs.Load()
}

// newApp builds the application state from the environment.
func newApp(ds *verbs.Dataset, isProduction bool) *App {
	return &App{
		Dataset:         ds,
		Rounds:          make(map[string]*RoundSession),
		LimiterMap:      make(map[string]*rate.Limiter),
		IsProduction:    isProduction,
		CookieMaxAge:    getEnvDuration("COOKIE_MAX_AGE", 2*time.Hour),
		SessionTimeout:  getEnvDuration("SESSION_TIMEOUT", 2*time.Hour),
		SpawnInterval:   getEnvDuration("SPAWN_INTERVAL", round.DefaultInterval),
		JanitorInterval: getEnvDuration("JANITOR_INTERVAL", 10*time.Minute),
		RateLimitRPS:    getEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 10),
		SessionsDir:     getEnv("SESSIONS_DIR", "data/sessions"),
		StartTime:       time.Now(),
		NewTicker:       round.Ticker,
	}
}

// setupRouter wires middleware and routes.
func (app *App) setupRouter() *gin.Engine {
	if app.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedPaths([]string{RouteRoundEvents})))
	router.Use(noStoreMiddleware())

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logWarn("Failed to set trusted proxies: %v", err)
	}

	router.GET(RouteHome, app.homeHandler)
	router.GET(RouteHealth, app.healthzHandler)
	router.GET(RouteTenses, app.tensesHandler)
	router.GET(RouteTenseVerbs, app.tenseVerbsHandler)
	router.GET(RouteStats, app.statsHandler)

	router.GET(RouteRound, app.roundHandler)
	router.GET(RouteRoundEvents, app.eventsHandler)
	router.POST(RouteRound, app.rateLimitMiddleware(), app.startRoundHandler)
	router.POST(RouteRoundTap, app.rateLimitMiddleware(), app.tapHandler)
	router.POST(RouteRoundExpire, app.rateLimitMiddleware(), app.expireHandler)
	router.POST(RouteRoundRetry, app.rateLimitMiddleware(), app.retryHandler)
	router.POST(RouteRoundExit, app.rateLimitMiddleware(), app.exitHandler)

	return router
}

func startServer(router *gin.Engine, app *App) {
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		logInfo("Shutdown signal received, shutting down server gracefully...")

		// Stopping the loops first closes every event stream, so Shutdown
		// is not left waiting on them.
		app.stopAllRounds()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	logInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	logInfo("Server shutdown complete")
}
