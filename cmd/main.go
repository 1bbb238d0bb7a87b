package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v79"

	"github.com/financeai/bff/config"
	"github.com/financeai/bff/internal/billing"
	"github.com/financeai/bff/internal/cache"
	"github.com/financeai/bff/internal/container"
	"github.com/financeai/bff/internal/gateway"
	"github.com/financeai/bff/internal/identity"
	"github.com/financeai/bff/internal/interface/middleware"
	"github.com/financeai/bff/internal/report"
	"github.com/financeai/bff/internal/router"
	"github.com/financeai/bff/pkg/helpers"
	"github.com/financeai/bff/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	// Identity mode is fixed for the process lifetime
	mode := identity.Trusted
	if cfg.MockAuth {
		mode = identity.Permissive
		logger.Warn("permissive identity mode enabled; do not use in production")
	}
	resolver, err := identity.New(ctx, mode, cfg.ClerkJWKSURI, cfg.ClerkAudience, logger)
	if err != nil {
		log.Fatalf("failed to init identity resolver: %v", err)
	}

	gw := gateway.New(cfg.HTTPTimeout, gateway.RetryPolicy{
		MaxRetries: cfg.RetryCount,
		BaseDelay:  cfg.RetryBase,
	}, logger)

	// Cache backend; redis when configured, in-process otherwise
	var store cache.Store
	if cfg.CacheBackend == "redis" && cfg.RedisAddr != "" {
		rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer func() { _ = rdb.Close() }()
		container.SetRedis(rdb)
		store = cache.NewRedisStore(rdb, cfg.CacheTTL)
	} else {
		store = cache.NewMemoryStore(cfg.CacheTTL)
	}

	// Billing: stripe key + optional event fan-out queue
	stripe.Key = cfg.StripeSecretKey
	if cfg.RabbitMQURL != "" {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQBillingQueue)
		if err != nil {
			log.Fatalf("failed to init rabbitmq publisher: %v", err)
		}
		defer pub.Close()
		container.SetRabbitPub(pub)
	}
	billingBridge := billing.New(logger, cfg.StripeWebhookSecret, container.GetRabbitPub())

	// Report generation is optional; the endpoint fails closed without it
	if cfg.GeminiAPIKey != "" {
		gen, err := report.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("failed to init text generator: %v", err)
		}
		container.SetTextGen(gen)
	} else {
		logger.Warn("GEMINI_API_KEY not set; /bff/report disabled")
	}

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetCache(store)
	container.SetGateway(gw)
	container.SetResolver(resolver)
	container.SetBilling(billingBridge)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RealIP())
	r.Use(middleware.RequestID())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled || cfg.Env == "development" {
		r.Use(gin.Logger())
	}

	reg := router.NewRegistry(r)
	if rdb := container.GetRedis(); rdb != nil {
		reg.Use(middleware.RateLimit(rdb, cfg.RateLimitMax, cfg.RateLimitWindow, middleware.KeyByIP()))
	}
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Infof("financeai bff listening on :%s (mode=%s)", cfg.Port, mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}
