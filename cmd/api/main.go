package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-jewelry-shop/internal/auth"
	"github.com/ariefcatur/go-jewelry-shop/internal/cart"
	"github.com/ariefcatur/go-jewelry-shop/internal/catalog"
	"github.com/ariefcatur/go-jewelry-shop/internal/config"
	"github.com/ariefcatur/go-jewelry-shop/internal/httpx"
	kafkax "github.com/ariefcatur/go-jewelry-shop/internal/kafka"
	"github.com/ariefcatur/go-jewelry-shop/internal/logx"
	"github.com/ariefcatur/go-jewelry-shop/internal/memstore"
	"github.com/ariefcatur/go-jewelry-shop/internal/orders"
	"github.com/ariefcatur/go-jewelry-shop/internal/postgres"
	"github.com/ariefcatur/go-jewelry-shop/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

type stores struct {
	catalog catalog.Store
	carts   cart.Store
	orders  orders.Store
	close   func()
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName, cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial, err := orders.ParseStatus(cfg.InitialOrderStatus)
	if err != nil {
		fatal(log, "ORDER_INITIAL_STATUS", err)
	}

	// Data source
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		fatal(log, "data source", err)
	}
	defer st.close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fatal(log, "redis ping", err)
	}
	products := catalog.NewCachedStore(st.catalog, redisx.NewCache(rdb, redisx.PrefixCatalog, cfg.CatalogCacheTTL), log)

	// Kafka producers, one per topic
	var events orders.Publishers
	var producers []*kafkax.Producer
	if cfg.EventsOn {
		newProducer := func(topic string) *kafkax.Producer {
			p := kafkax.NewProducer(cfg.KafkaBrokers, topic, 1024, log)
			p.Start(ctx)
			producers = append(producers, p)
			return p
		}
		events = orders.Publishers{
			OrderPlaced:   newProducer(orders.TopicOrderPlaced),
			StatusChanged: newProducer(orders.TopicOrderStatusChanged),
			StockChanged:  newProducer(orders.TopicStockChanged),
		}
	} else {
		log.Warn("event publishing disabled")
	}

	// Admin sessions
	am, err := newAuth(cfg, log, rdb)
	if err != nil {
		fatal(log, "admin auth", err)
	}

	svc := &orders.Service{
		Store:         st.orders,
		Events:        events,
		Statuses:      &orders.RedisStatusCache{Redis: rdb},
		Idempotency:   &orders.RedisIdempotency{Redis: rdb},
		Stock:         products,
		InitialStatus: initial,
		Producer:      cfg.ServiceName,
		Log:           log,
	}

	router := httpx.NewRouter(log)
	httpx.Handlers{
		Products: &httpx.ProductsHandler{Store: products, Source: st.catalog, Events: events, Producer: cfg.ServiceName, Log: log},
		Cart:     &httpx.CartHandler{Store: st.carts, CookieTTL: cfg.CartCookieTTL, CookieSecure: cfg.CookieSecure, Log: log},
		Orders:   &httpx.OrdersHandler{Service: svc, Log: log},
		Admin:    &httpx.AdminHandler{Auth: am, CookieSecure: cfg.CookieSecure, Log: log},
	}.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "data_source", cfg.DataSource, "initial_status", initial)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "listen", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("http shutdown", "err", err)
	}
	for _, p := range producers {
		p.Close() // stop accepting, flush queued messages
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, error) {
	switch cfg.DataSource {
	case "memory":
		mem := memstore.New()
		if cfg.SeedFile != "" {
			if err := mem.SeedFile(cfg.SeedFile); err != nil {
				return stores{}, err
			}
			log.Info("catalog seeded", "file", cfg.SeedFile)
		}
		return stores{catalog: mem.Catalog(), carts: mem.Carts(), orders: mem.Orders(), close: func() {}}, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return stores{}, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return stores{}, err
		}
		return stores{
			catalog: &catalog.Repo{DB: db},
			carts:   &cart.Repo{DB: db},
			orders:  &orders.Repo{DB: db},
			close:   db.Close,
		}, nil
	default:
		return stores{}, errors.New("DATA_SOURCE must be postgres or memory, got " + cfg.DataSource)
	}
}

// newAuth prefers ADMIN_PASSWORD_HASH and falls back to hashing ADMIN_PASSWORD.
func newAuth(cfg config.Config, log *slog.Logger, rdb *redis.Client) (*auth.Manager, error) {
	hash := cfg.AdminPasswordHash
	if hash == "" {
		if cfg.AdminPassword == "" {
			return nil, errors.New("set ADMIN_PASSWORD_HASH or ADMIN_PASSWORD")
		}
		h, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	secret := cfg.SessionSecret
	if secret == "" {
		log.Warn("SESSION_SECRET not set, admin sessions will not survive a restart")
		secret = randomSecret()
	}
	return auth.NewManager(cfg.AdminUser, hash, secret, cfg.SessionTTL, &auth.RedisRevocations{Redis: rdb})
}

func fatal(log *slog.Logger, what string, err error) {
	log.Error(what, "err", err)
	os.Exit(1)
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
