package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/coupons"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/payment"
	"github.com/joao-fontenele/storefront/internal/pricing"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := config.Require("POSTGRES_URL", "AUTH_SECRET"); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load("8081")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, cfg.DBSchema)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	cartRepo := cart.NewRepository(db)
	couponRepo := coupons.NewRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	productRepo := catalog.NewProductRepository(db)

	quoter, err := pricing.NewService(cartRepo, couponRepo)
	if err != nil {
		logger.Error("failed to create pricing service", "error", err)
		os.Exit(1)
	}

	httpClient := telemetry.NewHTTPClient(10 * time.Second)
	gatewayClient := payment.NewClient(cfg.Payment.APIURL, cfg.Payment.KeyID, cfg.Payment.KeySecret, httpClient)

	deps := checkout.Deps{
		Quoter:   quoter,
		Orders:   orderRepo,
		Cart:     cartRepo,
		Coupons:  couponRepo,
		Currency: cfg.Payment.Currency,
		Logger:   logger,
	}
	if gatewayClient.Configured() {
		deps.Verifier = gatewayClient
	} else {
		logger.Warn("payment gateway credentials not set, checkout signatures will not be verified")
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderSettled, domain.EventOrderSettled)
		defer func() { _ = producer.Close() }()
		deps.Publisher = producer
	}

	settler, err := checkout.NewService(deps)
	if err != nil {
		logger.Error("failed to create checkout service", "error", err)
		os.Exit(1)
	}

	var dedupe payment.Deduper
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		dedupe = payment.NewRedisDeduper(rdb)
	}

	paymentHandler, err := payment.NewHandler(quoter, gatewayClient, orderRepo, dedupe, payment.Config{
		KeyID:         cfg.Payment.KeyID,
		Currency:      cfg.Payment.Currency,
		WebhookSecret: cfg.Payment.WebhookSecret,
	}, logger)
	if err != nil {
		logger.Error("failed to create payment handler", "error", err)
		os.Exit(1)
	}

	catalogHandler := catalog.NewHandler(productRepo, catalog.NewMediaRepository(db), logger)
	cartHandler := cart.NewHandler(cartRepo, productRepo, logger)
	couponHandler := coupons.NewHandler(quoter, logger)
	checkoutHandler := checkout.NewHandler(settler, logger)
	orderHandler := orders.NewHandler(orderRepo, logger)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}
	shopper := auth.RequireShopper

	route("GET /products", catalogHandler.HandleListActive)
	route("GET /products/{id}", catalogHandler.HandleGet)

	route("GET /cart", shopper(cartHandler.HandleList))
	route("POST /cart/add", shopper(cartHandler.HandleAdd))
	route("POST /cart/update", shopper(cartHandler.HandleUpdate))
	route("POST /cart/remove", shopper(cartHandler.HandleRemove))
	route("POST /cart/clear", shopper(cartHandler.HandleClear))

	route("POST /coupons/apply", shopper(couponHandler.HandleApply))
	route("GET /coupons/eligible", shopper(couponHandler.HandleEligible))

	route("POST /payment/create-order", shopper(paymentHandler.HandleCreateOrder))
	route("POST /payment/webhook", paymentHandler.HandleWebhook)

	route("POST /checkout", shopper(checkoutHandler.HandleCheckout))

	route("GET /orders", shopper(orderHandler.HandleListOwn))
	route("GET /orders/{id}", shopper(orderHandler.HandleGet))

	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	authn := auth.NewAuthenticator(cfg.AuthSecret)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.NewServerHandler(authn.Middleware(mux), "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting storefront service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
