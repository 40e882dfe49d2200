package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"bibliohub/internal/books"
	"bibliohub/internal/catalog"
	"bibliohub/internal/feed"
	"bibliohub/internal/loans"
	"bibliohub/internal/notify"
	"bibliohub/internal/reservations"
	"bibliohub/pkg/database"
	"bibliohub/pkg/utils"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	logger := zlog.Logger

	srvCfg := utils.LoadServerConfig()
	dbCfg := database.DefaultConfig()
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("db migrate failed")
	}

	if err := books.RegisterValidators(); err != nil {
		logger.Fatal().Err(err).Msg("register validators failed")
	}

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// Real-time feed: WebSocket on the router, raw TCP alongside.
	hub := feed.NewHub()
	router.GET("/ws", feed.WSHandler(hub, logger))
	tcpSrv := feed.NewServer(srvCfg.FeedAddr, hub, logger)

	// UDP pickup notices for registered borrower clients.
	registry := notify.NewRegistry()
	notifySrv := notify.NewServer(srvCfg.NotifyAddr, registry, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
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

	api := router.Group("/api")

	bookRepo := books.NewRepo(db)
	bookHandler := books.NewHandler(bookRepo)
	booksGroup := api.Group("/books")
	bookHandler.RegisterRoutes(booksGroup)

	catalogRepo := catalog.NewRepo(db)
	catalogHandler := catalog.NewHandler(catalogRepo)
	catalogHandler.RegisterAuthorRoutes(api.Group("/authors"))
	catalogHandler.RegisterCategoryRoutes(api.Group("/categories"))

	reservationRepo := reservations.NewRepo(db)
	reservationSvc := reservations.NewService(db, reservationRepo, hub, logger)
	reservationHandler := reservations.NewHandler(reservationSvc, reservationRepo)
	reservationHandler.RegisterRoutes(api.Group("/reservations"))
	reservationHandler.RegisterQueueRoute(booksGroup)

	loanRepo := loans.NewRepo(db)
	loanSvc := loans.NewService(db, loanRepo, reservationRepo, hub, logger)
	loanSvc.Notifier = notifySrv
	loanHandler := loans.NewHandler(loanSvc, loanRepo)
	loanHandler.RegisterRoutes(api.Group("/loans"))
	loanHandler.RegisterBorrowerRoutes(api.Group("/borrowers"))

	// The SPA runs on its own origin during development.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	httpSrv := &http.Server{
		Addr:    srvCfg.HTTPAddr,
		Handler: corsHandler,
	}

	errCh := make(chan error, 3)

	go func() {
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	go func() {
		if err := notifySrv.Run(); err != nil {
			errCh <- err
		}
	}()

	go func() {
		logger.Info().Str("addr", srvCfg.HTTPAddr).Msg("http api listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Warn().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	logger.Info().Msg("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}

	// TCP/UDP listeners have no graceful close; the process exit reaps
	// them once in-flight HTTP work has drained.
	logger.Info().Msg("servers stopped")
	os.Exit(0)
}
