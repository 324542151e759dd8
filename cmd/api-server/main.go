package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"vrstore/internal/auth"
	"vrstore/internal/catalog"
	"vrstore/internal/middleware"
	"vrstore/internal/scraper"
	synchub "vrstore/internal/sync"
	"vrstore/pkg/database"
	"vrstore/pkg/utils"
)

func main() {
	configPath := flag.String("config", "vrstore.json5", "config file (json5); a .local variant is overlaid")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("load config failed", "err", err)
	}
	logger := utils.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// admins always live in the relational database
	db := database.MustOpen(ctx, database.ConfigFrom(cfg.Store), cfg.Store.Retry)
	defer db.Close()

	store, err := catalog.Open(ctx, cfg.Store, db)
	if err != nil {
		logger.Fatal("open catalog failed", "backend", cfg.Store.Backend, "err", err)
	}
	if cfg.Store.Backend != catalog.BackendSQL && cfg.Store.Backend != "" {
		defer store.Close()
	}

	authRepo := auth.NewRepo(db)
	if _, err := auth.EnsureAdmin(ctx, authRepo, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, logger); err != nil {
		logger.Fatal("bootstrap admin failed", "err", err)
	}
	authHandler := auth.NewHandler(authRepo, auth.NewTokenService(cfg.Auth))

	var cache scraper.PageCache
	if cfg.Scraper.CacheDir != "" {
		bc, err := scraper.OpenBadgerCache(cfg.Scraper.CacheDir, cfg.Scraper.CacheTTL())
		if err != nil {
			logger.Fatal("open page cache failed", "dir", cfg.Scraper.CacheDir, "err", err)
		}
		defer bc.Close()
		cache = bc
	}
	fetcher := scraper.NewHTTPFetcher(scraper.FetcherOptions{
		Timeout:   cfg.Scraper.Timeout(),
		UserAgent: cfg.Scraper.UserAgent,
		Cache:     cache,
		Logger:    logger,
	})
	svc := scraper.NewService(fetcher, scraper.Options{
		Concurrency: cfg.Scraper.Concurrency,
		Interval:    cfg.Scraper.Interval(),
		Logger:      logger,
	})

	hub := synchub.NewHub()
	tcpSrv := synchub.NewServer(cfg.TCPAddr, hub, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware())

	router.GET("/ws", synchub.WSHandler(hub, logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": cfg.Store.Backend})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"storeError": err.Error(),
				"feed":       stats,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"store":  "ok",
			"feed":   stats,
			"stores": svc.Router().Stores(),
		})
	})

	// Catalog (public)
	catalogHandler := catalog.NewHandler(store, hub, logger)
	catalogHandler.RegisterRoutes(router.Group("/apps"))

	// Auth
	authHandler.RegisterRoutes(router.Group("/auth"))

	// Admin (protected)
	admin := router.Group("/admin")
	admin.Use(authHandler.Middleware())
	catalogHandler.RegisterAdminRoutes(admin.Group("/apps"))
	scrapeHandler := scraper.NewHandler(svc, scraper.NewApplier(store, hub, logger), scraper.NewMatcher(store))
	scrapeHandler.RegisterRoutes(admin)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
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
		logger.Info("HTTP API server listening", "addr", cfg.HTTPAddr, "backend", cfg.Store.Backend)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	failed := false
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", "err", err)
		failed = true
	}

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	if err := tcpSrv.Close(); err != nil {
		logger.Error("tcp shutdown error", "err", err)
	}

	wg.Wait()
	logger.Info("servers stopped")
	if failed {
		os.Exit(1)
	}
}
