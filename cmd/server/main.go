package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"tzmart/internal/config"
	"tzmart/internal/database"
	"tzmart/internal/events"
	httpapi "tzmart/internal/http"
	"tzmart/internal/infrastructure/notify"
	"tzmart/internal/infrastructure/payment"
	"tzmart/internal/metrics"
	"tzmart/internal/obs"
	"tzmart/internal/repo"
	"tzmart/internal/service"
	"tzmart/internal/worker"
)

func main() {
	obs.InitLogger()
	log := obs.Logger
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres()
	if err != nil {
		log.Error("database open failed", slog.Any("error", err))
		return
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Error("migrate failed", slog.Any("error", err))
		return
	}

	m := metrics.NewLedgerMetrics()

	userRepo := repo.NewUserRepo(db)
	productRepo := repo.NewProductRepo(db)
	cartRepo := repo.NewCartRepo(db)
	orderRepo := repo.NewOrderRepo(db)
	paymentRepo := repo.NewPaymentRepo(db)
	couponRepo := repo.NewCouponRepo(db)
	auditRepo := repo.NewAuditRepo(db)

	gateway := payment.NewGateway()
	inventory := service.NewInventoryService(productRepo)

	handlers := &httpapi.Handlers{
		Pricing:  service.NewPricingService(cartRepo, productRepo, couponRepo, userRepo, cfg),
		Cart:     service.NewCartService(cartRepo, productRepo, userRepo),
		Coupons:  service.NewCouponService(db, couponRepo, userRepo, cfg, m),
		Orders:   service.NewOrderService(db, orderRepo, cartRepo, paymentRepo, userRepo, auditRepo, inventory, gateway, cfg, m),
		Payments: service.NewPaymentService(db, orderRepo, paymentRepo, userRepo, gateway, cfg, m),
	}

	outboxWorker := worker.NewOutboxWorker(
		db,
		notify.NewLogNotifier(log),
		events.NewClient(cfg.KafkaBrokers, cfg.EventsTopic),
		cfg.OutboxInterval,
		cfg.OutboxBatch,
		log,
	)
	go outboxWorker.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(handlers, database.NewService(db), m),
	}

	go func() {
		log.Info("server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", slog.Any("error", err))
	}
	log.Info("server stopped")
}
