package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-jewelry-shop/internal/cachesync"
	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/ariefcatur/go-jewelry-shop/internal/config"
	kafkax "github.com/ariefcatur/go-jewelry-shop/internal/kafka"
	"github.com/ariefcatur/go-jewelry-shop/internal/logx"
	"github.com/ariefcatur/go-jewelry-shop/internal/orders"
	"github.com/ariefcatur/go-jewelry-shop/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	name := cfg.ServiceName + "-cachesync"
	log := logx.New(name, cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis ping", "err", err)
		os.Exit(1)
	}

	svc := &cachesync.Service{
		Redis:       rdb,
		Catalog:     catalog.NewInvalidator(redisx.NewCache(rdb, redisx.PrefixCatalog, cfg.CatalogCacheTTL)),
		Statuses:    &orders.RedisStatusCache{Redis: rdb},
		ServiceName: name,
		Log:         log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.SyncGroup, cachesync.Topics, cfg.SyncWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("consumer started", "group", cfg.SyncGroup, "topics", cachesync.Topics, "workers", cfg.SyncWorkers)
		if err := cons.Start(ctx, svc.Handle); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down consumer")
	case <-ctx.Done():
	}
	cancel()
	<-done
}
