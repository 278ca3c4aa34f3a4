// Package cachesync keeps the Redis read caches in step with shop events.
// Every API instance already invalidates after its own writes; this worker
// catches what a failed or crashed in-process invalidation missed.
package cachesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-jewelry-shop/internal/kafka"
	"github.com/ariefcatur/go-jewelry-shop/internal/orders"
	"github.com/ariefcatur/go-jewelry-shop/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Topics the worker subscribes to.
var Topics = []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged, orders.TopicStockChanged}

type ProductInvalidator interface {
	InvalidateProducts(ctx context.Context, ids ...string) error
}

type Service struct {
	Redis       *redis.Client
	Catalog     ProductInvalidator
	Statuses    orders.StatusCache
	ServiceName string
	Log         *slog.Logger
}

// Handle is installed as the consumer handler. It returns an error only when
// the message should be retried.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("dropping undecodable event", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}
	if t := kafkax.HeaderValue(m.Headers, kafkax.HeaderEventType); t != "" && t != env.EventType {
		s.Log.Warn("event type header mismatch", "header", t, "envelope", env.EventType)
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, err := redisx.Exists(ctx, s.Redis, dkey); err == nil && seen {
		return nil
	}

	if err := s.apply(ctx, env); err != nil {
		return err
	}

	if _, err := redisx.MarkOnce(ctx, s.Redis, dkey, redisx.TTLDedup); err != nil {
		s.Log.Warn("dedup mark failed", "event_id", env.EventID, "err", err)
	}
	return nil
}

func (s *Service) apply(ctx context.Context, env orders.Envelope) error {
	log := s.Log.With("event_id", env.EventID, "event_type", env.EventType, "trace_id", env.TraceID)

	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			log.Warn("dropping event", "err", err)
			return nil
		}
		ids := make([]string, 0, len(p.Items))
		for _, it := range p.Items {
			ids = append(ids, it.ProductID)
		}
		if err := s.Catalog.InvalidateProducts(ctx, ids...); err != nil {
			return fmt.Errorf("invalidate products: %w", err)
		}
		log.Debug("catalog invalidated", "order_id", p.OrderID, "products", len(ids))

	case orders.EventStockChanged:
		p, err := kafkax.UnwrapPayload[orders.StockChangedPayload](env.Payload)
		if err != nil {
			log.Warn("dropping event", "err", err)
			return nil
		}
		if err := s.Catalog.InvalidateProducts(ctx, p.ProductID); err != nil {
			return fmt.Errorf("invalidate product: %w", err)
		}
		log.Debug("catalog invalidated", "product_id", p.ProductID, "reason", p.Reason)

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			log.Warn("dropping event", "err", err)
			return nil
		}
		// the next read repopulates from the database
		if err := s.Statuses.Forget(ctx, p.OrderID); err != nil {
			return fmt.Errorf("forget status: %w", err)
		}
		log.Debug("status cache cleared", "order_id", p.OrderID, "to", p.To)

	default:
		log.Debug("ignoring event")
	}
	return nil
}
