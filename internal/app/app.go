package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodorder/internal/domain/cart"
	"github.com/xenking/foodorder/internal/domain/order"
	"github.com/xenking/foodorder/internal/handler"
	"github.com/xenking/foodorder/internal/messaging"
	"github.com/xenking/foodorder/internal/security"
	"github.com/xenking/foodorder/internal/storage/postgres"
	"github.com/xenking/foodorder/pkg/health"
	"github.com/xenking/foodorder/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New(lg)
	healthSvc.AddReadinessCheck("postgres", health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", health.GoroutineCountCheck(10000), health.WithTimeout(time.Second))
	healthSvc.AddLivenessCheck("gc", health.GCMaxPauseCheck(time.Second), health.WithTimeout(time.Second))

	// Repositories.
	menuRepo := postgres.NewMenuRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	calc, err := cfg.Pricing.Calculator()
	if err != nil {
		return errors.Wrap(err, "pricing")
	}

	// Domain services.
	opts := []order.Option{
		order.WithTelemetry(m.TracerProvider(), m.MeterProvider()),
	}
	if cfg.Orders.VerifyPrices {
		opts = append(opts, order.WithCatalog(menuRepo))
	}
	if cfg.AMQPURL != "" {
		publisher, err := messaging.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return errors.Wrap(err, "create event publisher")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				lg.Warn("Close event publisher", zap.Error(err))
			}
		}()
		healthSvc.AddReadinessCheck("rabbitmq", health.PingCheck("rabbitmq", publisher))
		opts = append(opts, order.WithNotifier(publisher))
		lg.Info("Publishing order events", zap.String("exchange", cfg.AMQPExchange))
	}
	orderService, err := order.NewService(orderRepo, calc, opts...)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		handler.Deps{
			Menu:    menuRepo,
			Cart:    cart.NewService(menuRepo, calc),
			Orders:  orderService,
			Queries: order.NewQueryService(orderRepo),
			Tokens:  security.NewJWT([]byte(cfg.JWTSecret), cfg.JWTTTL),
			APIKeys: handler.NewAPIKeyAuth(apikeyRepo, []byte(cfg.APIKeyPepper)),
		},
	)
	router := h.Routes()

	// Mux: health endpoints + API routes on one server.
	routeFinder := httpmiddleware.MakeRouteFinder(router)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   httpmiddleware.SkipPaths("/livez", "/readyz"),
			}),
			httpmiddleware.Instrument("food-api", routeFinder, m),
			httpmiddleware.Recovery(),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
