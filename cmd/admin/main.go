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

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/coupons"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := config.Require("POSTGRES_URL", "AUTH_SECRET"); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load("8082")
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "admin", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("admin", "0.1.0")
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

	catalogHandler := catalog.NewHandler(catalog.NewProductRepository(db), catalog.NewMediaRepository(db), logger)
	couponHandler := coupons.NewAdminHandler(coupons.NewRepository(db), logger)
	orderHandler := orders.NewHandler(orders.NewOrderRepository(db), logger)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(auth.RequireRole(auth.RoleAdmin, h)))
	}

	route("GET /admin/products", catalogHandler.HandleListAll)
	route("POST /admin/products/create", catalogHandler.HandleCreate)
	route("POST /admin/products/update", catalogHandler.HandleUpdate)
	route("POST /admin/products/delete", catalogHandler.HandleDelete)
	route("GET /admin/products/media", catalogHandler.HandleListMedia)
	route("POST /admin/products/media/commit", catalogHandler.HandleCommitMedia)
	route("POST /admin/products/media/delete", catalogHandler.HandleDeleteMedia)

	route("GET /admin/coupons", couponHandler.HandleList)
	route("POST /admin/coupons/upsert", couponHandler.HandleUpsert)
	route("POST /admin/coupons/delete", couponHandler.HandleDelete)

	route("GET /admin/orders", orderHandler.HandleList)
	route("GET /admin/orders/{id}", orderHandler.HandleGet)
	route("PATCH /admin/orders/{id}/status", orderHandler.HandleUpdateStatus)
	route("GET /admin/dashboard", orderHandler.HandleDashboard)

	mux.Handle("GET /metrics", metricsHandler)

	authn := auth.NewAuthenticator(cfg.AuthSecret)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.NewServerHandler(authn.Middleware(mux), "admin"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting admin service", "port", cfg.Port)
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
