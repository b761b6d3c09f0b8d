package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/avdeev/shop_orders/internal/config"
	"github.com/avdeev/shop_orders/internal/events"
	"github.com/avdeev/shop_orders/internal/httpserver"
	"github.com/avdeev/shop_orders/internal/logging"
	"github.com/avdeev/shop_orders/internal/middleware/loggingmw"
	"github.com/avdeev/shop_orders/internal/payment"
	"github.com/avdeev/shop_orders/internal/repo"
	"github.com/avdeev/shop_orders/internal/service"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")
	config.MustNonEmpty(cfg.PaymentURL, "PAYMENT_URL")
	config.MustNonEmpty(cfg.PaymentSecret, "PAYMENT_SECRET_KEY")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers)
	}

	gormRepo := &repo.GormRepo{DB: db}
	orderService := &service.OrderService{Repo: gormRepo, Catalog: gormRepo}
	checkoutService := &service.CheckoutService{
		Repo:           gormRepo,
		Catalog:        gormRepo,
		Gateway:        payment.NewClient(cfg.PaymentURL, cfg.PaymentSecret, cfg.GatewayTimeout),
		Currency:       cfg.Currency,
		GatewayTimeout: cfg.GatewayTimeout,
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), middleware.CORS())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler: &httpserver.OrderHTTP{
			Svc:      orderService,
			Checkout: checkoutService,
			Producer: producer,
		},
		JWTSecret: cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
