package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restopos/internal/config"
	"restopos/internal/infra"
	"restopos/internal/repository"
	"restopos/internal/router"
	"restopos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	rates, err := cfg.Rates()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rates")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	kitchen := infra.NewKitchenPublisher(cfg.AMQPURL, cfg.KitchenExchange, infra.NewCircuitBreaker(infra.KitchenCBConfig()))
	defer kitchen.Close()

	store := repository.NewStore(db)
	menu := repository.NewCachedMenuRepository(repository.NewMenuRepository(db), rdb, cfg.MenuCacheTTL())
	dispatcher := worker.NewDispatcher(rdb)
	svcs := router.NewServices(store, menu, rates, dispatcher, kitchen)

	// Worker handlers are wired here (composition root) so the pool has
	// full access to the infrastructure.
	mailer := infra.NewMailer(cfg)
	defer mailer.Close()
	header := infra.ReceiptHeader{RestaurantName: cfg.RestaurantName, CurrencyCode: cfg.CurrencyCode}
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, worker.Handlers{
		worker.JobAudit:   worker.NewAuditWorker(repository.NewAuditRepository(db)),
		worker.JobReceipt: worker.NewReceiptWorker(store, mailer, header, cfg.ReceiptStoragePath),
	})
	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		Orders:     svcs.Orders,
		StaleAfter: cfg.StaleOrderAge(),
		Receipts:   store.Receipts(),
		Dispatcher: dispatcher,
	})

	r := router.New(cfg, db, rdb, kitchen.Breaker(), svcs)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("restopos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
