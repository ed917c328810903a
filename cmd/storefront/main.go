package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/inventory"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/receipt"
	"github.com/joao-fontenele/storefront/internal/store"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceName = "storefront"

func main() {
	if err := run(); err != nil {
		slog.Error("storefront exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := cfg.Auth.Validate(); err != nil {
		return err
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.Telemetry.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	productRepo := inventory.NewProductRepository(db)
	var (
		products    inventory.ProductReader = productRepo
		invalidator checkout.ProductInvalidator
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer func() { _ = rdb.Close() }()
		cache := inventory.NewCache(productRepo, rdb, cfg.Redis.CacheTTL, logger)
		products, invalidator = cache, cache
		logger.Info("product cache enabled", "addr", cfg.Redis.Addr)
	}

	var publisher checkout.EventPublisher
	if cfg.Kafka.Enabled() {
		producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	users := auth.NewUserRepository(db)
	authHandler := auth.NewHandler(auth.NewService(users, auth.BcryptVerifier{Cost: cfg.Auth.BcryptCost}, tokens, logger), logger)

	engine, err := checkout.NewEngine(checkout.NewSQLStore(db), logger)
	if err != nil {
		return err
	}
	checkoutHandler := checkout.NewHandler(engine, publisher, invalidator, logger)

	cartHandler := cart.NewHandler(cart.NewService(cart.NewSQLStore(db), products, logger), logger)
	productHandler := inventory.NewHandler(products, productRepo, cfg.Auth.AdminKey, logger)
	ordersHandler := orders.NewHandler(orders.NewOrderRepository(db), users, receipt.PDFRenderer{StoreName: "Storefront"}, logger)

	route := telemetry.WithHTTPRoute
	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", route(checkoutHandler.HandleCheckout))
	mux.HandleFunc("GET /cart", route(cartHandler.HandleGet))
	mux.HandleFunc("POST /cart/items", route(cartHandler.HandleAddItem))
	mux.HandleFunc("PATCH /cart/items/{productId}", route(cartHandler.HandleUpdateQuantity))
	mux.HandleFunc("DELETE /cart/items/{productId}", route(cartHandler.HandleRemoveItem))
	mux.HandleFunc("DELETE /cart", route(cartHandler.HandleClear))
	mux.HandleFunc("GET /products/{id}", route(productHandler.HandleGet))
	mux.HandleFunc("POST /products", route(productHandler.HandleCreate))
	mux.HandleFunc("POST /auth/register", route(authHandler.HandleRegister))
	mux.HandleFunc("POST /auth/login", route(authHandler.HandleLogin))
	mux.HandleFunc("GET /orders", route(auth.RequireIdentity(logger, ordersHandler.HandleList)))
	mux.HandleFunc("GET /orders/{id}", route(ordersHandler.HandleGet))
	mux.HandleFunc("GET /orders/{id}/receipt", route(ordersHandler.HandleReceipt))
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr: ":" + cfg.HTTP.Port,
		Handler: otelhttp.NewHandler(auth.Middleware(tokens, logger)(mux), serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
			otelhttp.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/metrics" && r.URL.Path != "/healthz"
			}),
		),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting storefront service", "port", cfg.HTTP.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-stop:
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
