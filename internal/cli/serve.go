package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/ambiora/techfest-backend/internal/config"
	"github.com/ambiora/techfest-backend/internal/handler"
	"github.com/ambiora/techfest-backend/internal/middleware"
	"github.com/ambiora/techfest-backend/internal/queue"
	"github.com/ambiora/techfest-backend/internal/reconcile"
	"github.com/ambiora/techfest-backend/internal/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, publisher(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Printf("store close: %v", err)
		}
	}()
	if !a.gateway.Configured() {
		log.Printf("payments: %s credentials not configured, checkout disabled", a.gateway.Name())
	}

	if cfg.Queue.Enabled && cfg.Queue.ConsumerEnabled {
		c := &queue.Consumer{URL: cfg.Queue.URL, LogDir: cfg.Queue.LogDir}
		go func() {
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("queue consumer: %v", err)
			}
		}()
	}
	if cfg.Reconcile.Enabled {
		r := &reconcile.Reconciler{
			Registrations: a.store,
			Payments:      a.regs,
			Gateway:       a.gateway,
			MinAge:        cfg.Reconcile.MinAge,
			Batch:         cfg.Reconcile.Batch,
			MaxAttempts:   cfg.Reconcile.MaxAttempts,
		}
		if _, err := reconcile.Start(ctx, r, cfg.Reconcile.Interval); err != nil {
			return err
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.LoggerWithConfig(echomw.LoggerConfig{
		Format: "${time_rfc3339} ${id} ${method} ${uri} ${status} ${latency_human}\n",
	}))
	e.Use(echomw.CORS())

	router.Register(e, router.Handlers{
		Auth:          handler.NewAuthHandler(a.auth, a.adminAuth),
		Registrations: handler.NewRegistrationHandler(a.regs),
		Teams:         handler.NewTeamHandler(a.teams),
		Checkout:      handler.NewCheckoutHandler(a.checkout),
		Events:        handler.NewEventHandler(a.catalog),
		Admin:         handler.NewAdminHandler(a.regs, a.teams, a.admin),
		Bridge:        handler.NewPaymentBridgeHandler(a.gateway),
		Health:        &handler.HealthHandler{GatewayEnv: cfg.Cashfree.Env, AppEnv: cfg.Env, Gateway: a.gateway, Store: a.store},
	}, router.Options{
		JWTSecret:     cfg.JWTSecret,
		InternalToken: cfg.InternalAPIToken,
		RateLimit:     middleware.NewTokenBucket(cfg.RateLimit, rdb),
		Cache:         middleware.NewRedisCache(cfg.Cache, rdb),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreDriver)
	errc := make(chan error, 1)
	go func() { errc <- e.Start(addr) }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
