package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appbilling "github.com/creditgw/backend/internal/application/billing"
	"github.com/creditgw/backend/internal/application/gateway"
	"github.com/creditgw/backend/internal/infrastructure/cache"
	"github.com/creditgw/backend/internal/infrastructure/config"
	"github.com/creditgw/backend/internal/infrastructure/logger"
	"github.com/creditgw/backend/internal/infrastructure/persistence"
	"github.com/creditgw/backend/internal/infrastructure/pricing"
	"github.com/creditgw/backend/internal/infrastructure/ratelimit"
	"github.com/creditgw/backend/internal/infrastructure/upstream"
	"github.com/creditgw/backend/internal/interfaces/http/handler"
	"github.com/creditgw/backend/internal/interfaces/http/middleware"
	"github.com/creditgw/backend/internal/interfaces/http/router"
)

// webhookBodyLimit caps event deliveries well below the API body limit
const webhookBodyLimit = 64 << 10

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting credit gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database connection with zap-backed gorm logging
	gormLog := logger.NewQueryLogger(log, logger.GormLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Redis backs the rate counters and webhook dedup store so multiple
	// instances share one admission view. Absence degrades to in-process
	// stores, acceptable for single-node deployments only.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisAvailable := true
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		redisAvailable = false
		log.Warn("Redis unavailable, falling back to in-process stores", zap.Error(err))
	}

	var counterStore ratelimit.CounterStore
	if redisAvailable {
		counterStore = ratelimit.NewRedisCounterStore(redisClient)
	} else {
		counterStore = ratelimit.NewMemoryCounterStore()
	}

	dedupFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"))
	dedupStore, err := dedupFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create webhook dedup store", zap.Error(err))
	}
	defer func() {
		if err := counterStore.Close(); err != nil {
			log.Error("Error closing rate counter store", zap.Error(err))
		}
	}()

	// Repositories
	accountRepo := persistence.NewAccountRepository(db.DB)
	credentialRepo := persistence.NewCredentialRepository(db.DB)
	usageRecordRepo := persistence.NewUsageRecordRepository(db.DB)
	marginConfigRepo := persistence.NewMarginConfigRepository(db.DB)

	// Application services
	ledgerService := appbilling.NewLedgerService(accountRepo, log)
	usageService := appbilling.NewUsageService(usageRecordRepo, marginConfigRepo, log,
		appbilling.WithDefaultMarginPercent(cfg.Billing.DefaultMarginPercent))
	webhookService := appbilling.NewWebhookService(appbilling.WebhookServiceConfig{
		Accounts:    accountRepo,
		Credentials: credentialRepo,
		Ledger:      ledgerService,
		Dedup:       dedupStore,
		Stripe:      cfg.Stripe,
		DedupTTL:    cfg.Billing.DedupRetention,
		Logger:      log,
	})

	authenticator := gateway.NewCredentialAuthenticator(credentialRepo, log)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiterWithWindow(counterStore, cfg.RateLimit.Window)
	} else {
		log.Warn("rate limiting disabled by configuration")
	}

	upstreamClient := upstream.NewClient(cfg.Upstream, log)

	pipeline := gateway.NewPipeline(gateway.PipelineConfig{
		Authenticator: authenticator,
		Limiter:       limiter,
		Prices:        pricing.NewTable(),
		Ledger:        ledgerService,
		Usage:         usageService,
		Dispatcher:    upstreamClient,
		Logger:        log,
	})

	// HTTP handlers
	chatHandler := handler.NewChatHandler(pipeline, log)
	usageHandler := handler.NewUsageHandler(usageService)
	accountHandler := handler.NewAccountHandler(accountRepo)
	webhookHandler := handler.NewWebhookHandler(webhookService, log)
	systemHandler := handler.NewSystemHandler(
		handler.CheckFunc{CheckName: "database", Fn: func(ctx context.Context) error {
			return db.Ping()
		}},
		handler.CheckFunc{CheckName: "redis", Fn: func(ctx context.Context) error {
			if !redisAvailable {
				return nil
			}
			return redisClient.Ping(ctx).Err()
		}},
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.AccessLog(log))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(middleware.CORSWithConfig(corsConfig))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.UseAPI(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	r.RegisterAPI(chatHandler)
	r.RegisterAPI(authenticatedRoutes{
		auth:  middleware.CredentialAuth(authenticator),
		inner: []router.RouteRegistrar{usageHandler, accountHandler},
	})
	r.UseWebhooks(middleware.BodyLimit(webhookBodyLimit))
	r.RegisterWebhooks(webhookHandler)
	r.RegisterRoot(systemHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited")
}

// authenticatedRoutes wraps registrars behind the credential middleware so
// the chat entry, which authenticates inside the pipeline, stays outside it
type authenticatedRoutes struct {
	auth  gin.HandlerFunc
	inner []router.RouteRegistrar
}

func (a authenticatedRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("", a.auth)
	for _, registrar := range a.inner {
		registrar.RegisterRoutes(group)
	}
}
