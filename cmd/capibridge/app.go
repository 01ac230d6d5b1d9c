package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	_ "capibridge/docs"
	"capibridge/internal/config"
	"capibridge/internal/constants"
	"capibridge/internal/conversion"
	"capibridge/internal/delivery"
	"capibridge/internal/logger"
	"capibridge/internal/webhook"
	"capibridge/pkg/health"
	"capibridge/pkg/metrics"
	"capibridge/pkg/middleware"
	"capibridge/pkg/ratelimit"
	"capibridge/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
	health         *health.CheckerRegistry
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config: cfg,
		logger: log,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}
	return nil
}

func (a *App) initRouter(ctx context.Context) error {
	filter, err := conversion.NewFilter(a.config.Mapping.SkipExpression)
	if err != nil {
		return err
	}
	mapper := conversion.NewMapper(a.config.Mapping.DefaultCurrency)

	metrics.RegisterWebhookMetrics()
	metrics.RegisterDeliveryMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterRateLimitMetrics()

	a.health = health.NewCheckerRegistry()
	a.health.Register(health.NewSecretChecker(a.config.Webhook.Secret != ""))

	var sender delivery.Sender = delivery.NewClient(a.config.Meta)
	if a.config.CircuitBreaker.Enabled {
		breakerCfg := delivery.BreakerConfig(constants.CircuitBreakerName, a.config.CircuitBreaker)
		breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
			a.logger.WarnwCtx(ctx, "Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		}
		cb := delivery.NewCircuitBreakerClient(sender, breakerCfg)
		a.health.Register(health.NewCircuitBreakerChecker(constants.CircuitBreakerName, cb))
		sender = cb
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}
	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.logger))

	var webhookMiddleware []gin.HandlerFunc
	if rl := a.config.Webhook.RateLimit; rl.Enabled {
		webhookMiddleware = append(webhookMiddleware, ratelimit.RateLimitMiddleware(ctx, rl))
		a.logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rl.RPS, "burst", rl.Burst)
	}

	handler := webhook.NewHandler(a.config.Webhook, mapper, filter, sender, a.logger)
	handler.RegisterRoutes(router, webhookMiddleware...)

	router.GET("/health", a.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

// handleHealth godoc
// @Summary      Component health
// @Tags         health
// @Produce      json
// @Success      200  {object}  health.Health
// @Failure      503  {object}  health.Health
// @Router       /health [get]
func (a *App) handleHealth(c *gin.Context) {
	h := a.health.Check(c.Request.Context())
	statusCode := http.StatusOK
	if h.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, h)
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(ctx, "HTTP server starting", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
