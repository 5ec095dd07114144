package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"watchlog/internal/auth"
	"watchlog/internal/catalog"
	"watchlog/internal/library"
	"watchlog/internal/logging"
	"watchlog/internal/metrics"
	synchub "watchlog/internal/sync"
	"watchlog/pkg/database"
	"watchlog/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := utils.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	dbCfg := database.Config{Path: cfg.DB.Path}
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logging.Fatal().Err(err).Msg("db migrate failed")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := synchub.NewHub()
	router.GET("/ws", synchub.WSHandler(hub))
	tcpSrv := synchub.NewServer(cfg.Sync.Addr, hub)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	// Catalog (public)
	catalogRepo := catalog.NewRepo(db)
	catalog.NewHandler(catalogRepo).RegisterRoutes(router.Group("/catalog"))

	// Auth
	tokenSvc := auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	auth.NewHandler(authRepo, tokenSvc).RegisterRoutes(router.Group("/auth"))

	// Protected routes
	protected := router.Group("/users")
	protected.Use(auth.AuthMiddleware(tokenSvc, authRepo))

	protected.GET("/me", func(c *gin.Context) {
		claims := auth.MustGetClaims(c)
		c.JSON(http.StatusOK, gin.H{
			"id":       claims.UserID,
			"username": claims.Username,
			"email":    claims.Email,
		})
	})

	library.NewHandler(library.NewRepo(db), catalogRepo, hub).RegisterRoutes(protected)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logging.Info().Str("addr", cfg.HTTP.Addr).Str("db", dbCfg.Path).Msg("HTTP API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logging.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("http shutdown error")
	}
	if err := tcpSrv.Close(); err != nil {
		logging.Warn().Err(err).Msg("tcp shutdown error")
	}

	wg.Wait()
	logging.Info().Msg("servers stopped")
}

// requestLogger tags each request with an id, logs it and counts it.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = logging.NewRequestID()
		}
		c.Header("X-Request-ID", id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		logging.Ctx(c.Request.Context()).Info().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
