package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/joao-fontenele/shopsmart/internal/cart"
	"github.com/joao-fontenele/shopsmart/internal/catalog"
	"github.com/joao-fontenele/shopsmart/internal/customer"
	"github.com/joao-fontenele/shopsmart/internal/discount"
	"github.com/joao-fontenele/shopsmart/internal/messaging"
	"github.com/joao-fontenele/shopsmart/internal/order"
	"github.com/joao-fontenele/shopsmart/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime metrics", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var placedProducer, requestProducer *messaging.Producer
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		placedProducer = messaging.NewProducer(brokers, messaging.TopicOrderPlaced)
		defer func() { _ = placedProducer.Close() }()
		requestProducer = messaging.NewProducer(brokers, messaging.TopicOrderRequested)
		defer func() { _ = requestProducer.Close() }()
	}

	products := catalog.NewProductRepository(db)
	customers := customer.NewCustomerRepository(db)
	discounts := discount.NewDiscountRepository(db)
	carts := cart.NewCartRepository(db)
	orders := order.NewOrderRepository(db)

	cartService := cart.NewService(db, carts, products, discounts, customers, logger)
	orderService := order.NewService(db, orders, carts, products, discounts, customers, placedProducer, logger)

	catalogHandler := catalog.NewHandler(products, logger)
	customerHandler := customer.NewHandler(customers, logger)
	discountHandler := discount.NewHandler(discounts, logger)
	cartHandler := cart.NewHandler(cartService, logger)
	orderHandler := order.NewHandler(orderService, requestProducer, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /products", telemetry.WithHTTPRoute(catalogHandler.HandleCreate))
	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(catalogHandler.HandleList))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleGet))
	mux.HandleFunc("PUT /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleUpdate))
	mux.HandleFunc("DELETE /products/{id}", telemetry.WithHTTPRoute(catalogHandler.HandleDelete))
	mux.HandleFunc("POST /products/{id}/restock", telemetry.WithHTTPRoute(catalogHandler.HandleRestock))

	mux.HandleFunc("POST /customers", telemetry.WithHTTPRoute(customerHandler.HandleCreate))
	mux.HandleFunc("GET /customers/{id}", telemetry.WithHTTPRoute(customerHandler.HandleGet))

	mux.HandleFunc("POST /discounts", telemetry.WithHTTPRoute(discountHandler.HandleCreate))
	mux.HandleFunc("GET /discounts", telemetry.WithHTTPRoute(discountHandler.HandleList))
	mux.HandleFunc("GET /discounts/{code}", telemetry.WithHTTPRoute(discountHandler.HandleGet))
	mux.HandleFunc("PUT /discounts/{code}", telemetry.WithHTTPRoute(discountHandler.HandleUpdate))
	mux.HandleFunc("DELETE /discounts/{code}", telemetry.WithHTTPRoute(discountHandler.HandleDelete))

	mux.HandleFunc("GET /carts/{customerId}", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("POST /carts/{customerId}/items", telemetry.WithHTTPRoute(cartHandler.HandleAddItem))
	mux.HandleFunc("PUT /carts/{customerId}/items/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleUpdateQuantity))
	mux.HandleFunc("DELETE /carts/{customerId}/items/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleRemoveItem))
	mux.HandleFunc("DELETE /carts/{customerId}", telemetry.WithHTTPRoute(cartHandler.HandleClear))
	mux.HandleFunc("POST /carts/{customerId}/coupon", telemetry.WithHTTPRoute(cartHandler.HandleApplyCoupon))
	mux.HandleFunc("DELETE /carts/{customerId}/coupon", telemetry.WithHTTPRoute(cartHandler.HandleRemoveCoupon))

	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(orderHandler.HandlePlace))
	mux.HandleFunc("POST /orders/requests", telemetry.WithHTTPRoute(orderHandler.HandleRequest))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleUpdateStatus))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(orderHandler.HandleCancel))
	mux.HandleFunc("DELETE /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleDelete))
	mux.HandleFunc("POST /orders/{id}/payments", telemetry.WithHTTPRoute(orderHandler.HandlePayment))

	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", port)
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
