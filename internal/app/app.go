// Package app wires the application together. Construction is explicit:
// every component is built once at startup and passed to its consumers.
package app

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookwise/payments/internal/infra/events"
	"github.com/bookwise/payments/internal/module/monitoring"
	"github.com/bookwise/payments/internal/module/payment"
	"github.com/bookwise/payments/internal/module/payment/provider"
	"github.com/bookwise/payments/internal/shared/cache"
	"github.com/bookwise/payments/internal/shared/config"
	"github.com/bookwise/payments/internal/shared/database"
	"github.com/bookwise/payments/internal/utils/middleware"
)

// Application owns the wired components and the HTTP router.
type Application struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	redis   redis.UniversalClient
	bus     *events.Bus
	monitor *monitoring.Monitor
	router  *gin.Engine
}

// New builds the application from configuration.
func New(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := payment.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate payment tables: %w", err)
	}

	// redis only backs client-retry dedup; run without it if unreachable
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, idempotency keys disabled", zap.Error(err))
		redisClient = nil
	}

	bus := events.NewBus(logger, 0)
	subscribeEventLog(bus, logger)

	monitor := monitoring.New(monitoring.Config{
		Namespace:  cfg.Monitoring.Namespace,
		WindowSize: cfg.Monitoring.WindowSize,
	}, prometheus.DefaultRegisterer, &logNotifier{logger: logger}, logger)

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	repo := payment.NewRepository(db)
	service := payment.NewService(repo, registry, monitor, bus, payment.Config{
		DefaultProvider:   cfg.Payment.DefaultProvider,
		ProviderTimeout:   cfg.Payment.ProviderTimeout,
		SuccessRateWindow: cfg.Monitoring.SuccessRateWindow,
	}, logger)

	handler := payment.NewHandler(service, logger)
	webhookHandler := payment.NewWebhookHandler(service, registry, monitor, logger)

	router := buildRouter(cfg, logger, monitor, redisClient, handler, webhookHandler)

	return &Application{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		redis:   redisClient,
		bus:     bus,
		monitor: monitor,
		router:  router,
	}, nil
}

// Router returns the HTTP handler for the server.
func (a *Application) Router() http.Handler {
	return a.router
}

// Close drains the event bus and releases connections.
func (a *Application) Close() {
	a.bus.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// buildRegistry registers a breaker-wrapped strategy for every provider
// with credentials configured.
func buildRegistry(cfg *config.Config, logger *zap.Logger) (*payment.Registry, error) {
	registry := payment.NewRegistry()
	breakerCfg := provider.DefaultBreakerConfig()

	if cfg.Providers.Stripe.APIKey != "" {
		stripe := provider.NewStripeStrategy(&provider.StripeConfig{
			APIKey:        cfg.Providers.Stripe.APIKey,
			WebhookSecret: cfg.Providers.Stripe.WebhookSecret,
		}, logger)
		registry.Register(provider.WithBreaker(stripe, breakerCfg, logger))
	}

	if cfg.Providers.Alipay.AppID != "" {
		alipay, err := provider.NewAlipayStrategy(&provider.AlipayConfig{
			AppID:           cfg.Providers.Alipay.AppID,
			PrivateKey:      cfg.Providers.Alipay.PrivateKey,
			AlipayPublicKey: cfg.Providers.Alipay.AlipayPublicKey,
			IsProd:          cfg.Providers.Alipay.IsProd,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("configure alipay: %w", err)
		}
		registry.Register(provider.WithBreaker(alipay, breakerCfg, logger))
	}

	if cfg.Providers.Wechat.MchID != "" {
		wechat, err := provider.NewWechatStrategy(&provider.WechatConfig{
			AppID:                 cfg.Providers.Wechat.AppID,
			MchID:                 cfg.Providers.Wechat.MchID,
			SerialNo:              cfg.Providers.Wechat.SerialNo,
			APIv3Key:              cfg.Providers.Wechat.APIv3Key,
			PrivateKey:            cfg.Providers.Wechat.PrivateKey,
			WechatPublicKeySerial: cfg.Providers.Wechat.PublicKeySerial,
			WechatPublicKey:       cfg.Providers.Wechat.PublicKey,
			NotifyURL:             cfg.Providers.Wechat.NotifyURL,
			IsProd:                cfg.Providers.Wechat.IsProd,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("configure wechat: %w", err)
		}
		registry.Register(provider.WithBreaker(wechat, breakerCfg, logger))
	}

	if len(registry.List()) == 0 {
		return nil, fmt.Errorf("no payment provider configured")
	}
	return registry, nil
}

func buildRouter(cfg *config.Config, logger *zap.Logger, monitor *monitoring.Monitor, redisClient redis.UniversalClient, handler *payment.Handler, webhookHandler *payment.WebhookHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Metrics(monitor))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.IdempotencyKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		// client retries of mutating calls replay the stored response
		paymentAPI := api.Group("")
		paymentAPI.Use(middleware.Idempotency(redisClient, cfg.Payment.IdempotencyTTL))
		handler.RegisterRoutes(paymentAPI)

		// provider retries are deduped durably by event id instead
		webhookHandler.RegisterRoutes(api)
	}

	return router
}

// subscribeEventLog records every payment lifecycle event; downstream
// booking consumers attach the same way.
func subscribeEventLog(bus *events.Bus, logger *zap.Logger) {
	logEvent := func(e events.Event) error {
		logger.Info("payment event",
			zap.String("event_type", e.EventType()),
			zap.String("event_id", e.EventID().String()),
			zap.String("aggregate_id", e.AggregateID()))
		return nil
	}
	for _, t := range []string{
		payment.EventPaymentCreated,
		payment.EventPaymentSucceeded,
		payment.EventPaymentFailed,
		payment.EventPaymentRefunded,
	} {
		bus.SubscribeFunc(t, logEvent)
	}
}

// logNotifier is the default alert channel until a pager is configured.
type logNotifier struct {
	logger *zap.Logger
}

func (n *logNotifier) Notify(alert monitoring.Alert) error {
	n.logger.Error("ALERT",
		zap.String("severity", string(alert.Severity)),
		zap.String("metric", alert.Metric),
		zap.String("message", alert.Message),
		zap.Float64("value", alert.Value))
	return nil
}
