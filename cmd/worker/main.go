package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/shopsmart/internal/cart"
	"github.com/joao-fontenele/shopsmart/internal/catalog"
	"github.com/joao-fontenele/shopsmart/internal/customer"
	"github.com/joao-fontenele/shopsmart/internal/discount"
	"github.com/joao-fontenele/shopsmart/internal/messaging"
	"github.com/joao-fontenele/shopsmart/internal/order"
	"github.com/joao-fontenele/shopsmart/internal/telemetry"
	"github.com/joao-fontenele/shopsmart/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}
	brokers := strings.Split(kafkaBrokers, ",")

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

	placedProducer := messaging.NewProducer(brokers, messaging.TopicOrderPlaced)
	defer func() { _ = placedProducer.Close() }()

	products := catalog.NewProductRepository(db)
	customers := customer.NewCustomerRepository(db)
	discounts := discount.NewDiscountRepository(db)
	carts := cart.NewCartRepository(db)
	orders := order.NewOrderRepository(db)

	orderService := order.NewService(db, orders, carts, products, discounts, customers, placedProducer, logger)
	handler := worker.NewPlacementHandler(orderService, logger)

	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderRequested, messaging.GroupOrderWorker)
	defer func() { _ = consumer.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting order worker", "brokers", brokers)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
