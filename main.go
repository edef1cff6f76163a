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
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handlers"
	"storefront/internal/inventory"
	"storefront/internal/orders"
	"storefront/internal/paymob"
	"storefront/internal/redisx"
	"storefront/internal/webhook"
)

func main() {
	cfg := config.Load()
	config.ConfigureLogging(cfg)

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(cfg.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureOrderIndexes(db); err != nil {
		log.Warnf("order index warning: %v", err)
	}

	var claims webhook.Claims = redisx.NopClaims{}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warnf("redis unavailable, transaction claims disabled: %v", err)
			rdb.Close()
			rdb = nil
		} else {
			claims = redisx.NewClaims(rdb)
			log.Println("connected to redis:", cfg.RedisAddr)
		}
		cancel()
	}

	var publisher checkout.Publisher = events.Nop{}
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, events.DefaultTopic, cfg.ServiceName, 1024)
		producer.Start()
		publisher = producer
		log.Println("kafka producer started:", cfg.KafkaBrokers)
	}

	orderRepo := orders.NewRepository(db)
	ledger := inventory.NewLedger(db)

	gateway := paymob.NewClient(paymob.Config{
		BaseURL:       cfg.Paymob.BaseURL,
		APIKey:        cfg.Paymob.APIKey,
		IntegrationID: cfg.Paymob.IntegrationID,
		IframeID:      cfg.Paymob.IframeID,
		Currency:      cfg.Pricing.Currency,
		Timeout:       cfg.Paymob.Timeout,
		PaymentKeyTTL: cfg.Paymob.PaymentKeyTTL,
	})

	checkoutSvc := checkout.NewService(checkout.Deps{
		Gateway: gateway,
		Orders:  orderRepo,
		Ledger:  ledger,
		Prices:  catalog.New(db),
		Events:  publisher,
		Pricing: checkout.Pricing{
			Currency:    cfg.Pricing.Currency,
			ShippingFee: cfg.Pricing.ShippingFee,
			CODFee:      cfg.Pricing.CODFee,
		},
	})

	reconciler := webhook.NewReconciler(webhook.Deps{
		Orders:           orderRepo,
		Ledger:           ledger,
		Claims:           claims,
		Events:           publisher,
		Secret:           cfg.Paymob.HMACSecret,
		RequireSignature: cfg.WebhookRequireSignature,
	})

	ping := func(ctx context.Context) error { return database.Ping(ctx, db) }

	r := gin.Default()

	handlers.RegisterRoutes(r, cfg.JWTSecret, handlers.Services{
		Ping:     ping,
		Checkout: checkoutSvc,
		Orders:   orderRepo,
		Webhook:  reconciler,
		Stock:    ledger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
	log.Println("HTTP server stopped")

	if producer != nil {
		producer.Close()
		log.Println("kafka producer flushed")
	}
	if rdb != nil {
		rdb.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.Warnf("mongo disconnect: %v", err)
	}
	log.Println("connections closed")
}
