package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nvkumar/shopkart/internal/cart"
	svccfg "github.com/nvkumar/shopkart/internal/config"
	"github.com/nvkumar/shopkart/internal/coupon"
	"github.com/nvkumar/shopkart/internal/httpserver"
	"github.com/nvkumar/shopkart/internal/inventory"
	"github.com/nvkumar/shopkart/internal/lifecycle"
	"github.com/nvkumar/shopkart/internal/models"
	"github.com/nvkumar/shopkart/internal/notify"
	"github.com/nvkumar/shopkart/internal/payment"
	"github.com/nvkumar/shopkart/internal/repo"
	"github.com/nvkumar/shopkart/internal/service"
	pkgdb "github.com/nvkumar/shopkart/pkg/db"
	"github.com/nvkumar/shopkart/pkg/kafka"
	"github.com/nvkumar/shopkart/pkg/logging"
	"github.com/nvkumar/shopkart/pkg/metrics"
	loggingmw "github.com/nvkumar/shopkart/pkg/middleware/logging"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := svccfg.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	if err := db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}, &models.Coupon{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	orderEvents := kafka.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic)
	notifications := kafka.NewProducer(cfg.KafkaBrokers, cfg.NotificationsTopic)

	gormRepo := &repo.GormRepo{DB: db}
	ledger := &inventory.Ledger{DB: db}
	events := &notify.Events{Producer: orderEvents}
	life := &lifecycle.Lifecycle{Ledger: ledger, Events: events}
	coupons := &coupon.Service{Repo: gormRepo}
	gateway := payment.NewClient(cfg.PaymentBaseURL, cfg.PaymentKeyID, cfg.PaymentKeySecret)
	cartStore := cart.NewStore(cfg.RedisAddr)

	svc := &service.OrderService{
		Repo:          gormRepo,
		Coupons:       coupons,
		Ledger:        ledger,
		Life:          life,
		Gateway:       gateway,
		GatewaySecret: []byte(cfg.PaymentKeySecret),
		Cart:          cartStore,
		Sender:        &notify.KafkaSender{Producer: notifications},
		Events:        events,
	}

	srvMetrics := metrics.NewServerMetrics(cfg.ServiceName)

	e := echo.New()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(srvMetrics.Middleware())
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler:  &httpserver.OrderHTTP{Svc: svc},
		CouponHandler: &httpserver.CouponHTTP{Svc: coupons},
		JWTSecret:     cfg.JWTAccessSecret,
	})

	workerCtx, stopWorkers := context.WithCancel(logging.IntoContext(context.Background(), logger))
	go coupons.RunExpirySweep(workerCtx, cfg.CouponSweepInterval)
	go svc.RunReaper(workerCtx, cfg.ReaperInterval, cfg.StaleOrderWindow)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		log.Printf("%s listening on %s", cfg.ServiceName, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	stopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	_ = orderEvents.Close()
	_ = notifications.Close()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Printf("%s stopped", cfg.ServiceName)
}
