package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"grocery/config"
	"grocery/consumers"
	"grocery/database"
	"grocery/events"
	"grocery/logger"
	"grocery/middleware"
	"grocery/payment"
	"grocery/pricing"
	"grocery/rabbitmq"
	"grocery/realtime"
	"grocery/routes"
	"grocery/services"
	"grocery/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Development())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	policy := pricing.Policy{
		HandlingCharge:    cfg.HandlingCharge,
		DeliveryFee:       cfg.DeliveryFee,
		FreeDeliveryAbove: cfg.FreeDeliveryAbove,
	}
	hub := realtime.NewHub(cfg.CORSOrigins, zlog)

	carts := services.NewCartService(store.Carts, store.Products, policy, zlog)
	orderCfg := services.OrderServiceConfig{
		Orders:         store.Orders,
		Catalog:        store.Products,
		Addresses:      store.Addresses,
		Carts:          carts,
		Clearer:        carts,
		Gateway:        newGateway(cfg, zlog),
		Events:         hub,
		Policy:         policy,
		PaymentTimeout: cfg.PaymentTimeout,
		Logger:         zlog,
	}

	var mq *rabbitmq.RabbitMQ
	if cfg.MessagingEnabled() {
		mq, err = rabbitmq.NewRabbitMQ(cfg, zlog)
		if err != nil {
			zlog.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mq.Close()
		if err := mq.SetupQueues(); err != nil {
			zlog.Fatal("failed to set up queues", zap.Error(err))
		}
		orderCfg.Events = events.Multi{hub, mq}
		orderCfg.Clearer = mq
		if mq.DelayedChecks() {
			orderCfg.Scheduler = mq
		}
	} else {
		zlog.Info("RABBITMQ_URL not set, running without messaging")
	}
	orders := services.NewOrderService(orderCfg)

	if mq != nil {
		consumer := consumers.New(mq.Channel, cfg, carts, orders, zlog)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				zlog.Error("consumer stopped", zap.Error(err))
			}
		}()
	}

	tokens := utils.NewTokens(cfg.JWTSecret, cfg.JWTTTL, cfg.GuestTTL)
	auth := services.NewAuthService(store.Users, store.Tokens, tokens, carts, zlog)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			zlog.Fatal("failed to seed admin", zap.Error(err))
		}
	}

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(
		middleware.Recovery(zlog),
		middleware.RequestID(),
		middleware.RequestLogger(zlog),
		middleware.PrometheusMiddleware(),
		middleware.CORS(cfg.CORSOrigins),
	)
	routes.RegisterRoutes(r, routes.Deps{
		Auth:          auth,
		Carts:         carts,
		Orders:        orders,
		Products:      services.NewProductService(store.Products),
		Addresses:     services.NewAddressService(store.Addresses),
		Hub:           hub,
		WebhookSecret: cfg.PaymentWebhookSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (*database.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		zlog.Warn("using in-memory store, data is lost on restart")
		return database.NewMemory().Store(), func() {}, nil
	}

	m, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		return nil, nil, err
	}
	if err := m.EnsureIndexes(ctx); err != nil {
		_ = m.Close(context.Background())
		return nil, nil, err
	}
	closeFn := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Close(closeCtx); err != nil {
			zlog.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	return m.Store(), closeFn, nil
}

func newGateway(cfg *config.Config, zlog *zap.Logger) payment.Gateway {
	if cfg.PaymentGatewayURL == "" {
		zlog.Warn("PAYMENT_GATEWAY_URL not set, using sandbox payments")
		return payment.Sandbox{ReturnURL: cfg.PaymentReturnURL}
	}
	return payment.NewHostedCheckout(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey, cfg.PaymentReturnURL)
}
