package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockInvalidator is told which products changed stock after a commit.
type StockInvalidator interface {
	InvalidateProducts(ctx context.Context, ids ...string) error
}

// Service places orders and moves them between statuses. Store is required;
// every other collaborator is optional.
type Service struct {
	Store         Store
	Events        Publishers
	Statuses      StatusCache
	Idempotency   Idempotency
	Stock         StockInvalidator
	InitialStatus Status
	Producer      string
	Log           *slog.Logger
}

func (s *Service) initialStatus() Status {
	if s.InitialStatus.Valid() {
		return s.InitialStatus
	}
	return StatusConfirmed
}

func (s *Service) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// PlaceOrder validates the request and, in one transaction, records the order,
// decrements stock for every line, and clears the originating cart.
// The bool result reports a replay of an earlier request with the same idempotency key.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (Order, bool, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return Order{}, false, err
	}

	if in.IdempotencyKey != "" && s.Idempotency != nil {
		existing, reserved, err := s.Idempotency.Reserve(ctx, in.IdempotencyKey)
		switch {
		case err != nil:
			s.logger().Warn("idempotency reserve failed, placing without it", "key", in.IdempotencyKey, "err", err)
		case !reserved && existing == "":
			return Order{}, false, ErrRequestInFlight
		case !reserved:
			o, err := s.Store.Get(ctx, existing)
			if err != nil {
				return Order{}, false, fmt.Errorf("load replayed order: %w", err)
			}
			return o, true, nil
		default:
			o, err := s.placeOrder(ctx, in)
			s.settleIdempotency(ctx, in.IdempotencyKey, o.ID, err)
			return o, false, err
		}
	}

	o, err := s.placeOrder(ctx, in)
	return o, false, err
}

func (s *Service) settleIdempotency(ctx context.Context, key, orderID string, placeErr error) {
	ctx = context.WithoutCancel(ctx)
	if placeErr != nil {
		if err := s.Idempotency.Release(ctx, key); err != nil {
			s.logger().Warn("idempotency release failed", "key", key, "err", err)
		}
		return
	}
	if err := s.Idempotency.Complete(ctx, key, orderID); err != nil {
		s.logger().Warn("idempotency complete failed", "key", key, "order_id", orderID, "err", err)
	}
}

func (s *Service) placeOrder(ctx context.Context, in PlaceOrderInput) (Order, error) {
	lines := mergeLines(in.Items)
	now := time.Now().UTC()
	o := Order{
		ID:              uuid.NewString(),
		Customer:        in.Customer,
		ShippingAddress: in.ShippingAddress,
		Notes:           in.Notes,
		Status:          s.initialStatus(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	remaining := make(map[string]int, len(lines))

	err := s.Store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		products, err := tx.LockProducts(ctx, sortedProductIDs(lines))
		if err != nil {
			return err
		}
		for _, l := range lines {
			if _, ok := products[l.ProductID]; !ok {
				return &ProductNotFoundError{ProductID: l.ProductID}
			}
		}
		for _, l := range lines {
			p := products[l.ProductID]
			if p.Stock < l.Quantity {
				return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: l.Quantity, Available: p.Stock}
			}
		}

		// Prices come from the locked rows, never from the client.
		total := decimal.Zero
		items := make([]Item, 0, len(lines))
		for _, l := range lines {
			p := products[l.ProductID]
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
			items = append(items, Item{ProductID: p.ID, ProductName: p.Name, Quantity: l.Quantity, UnitPrice: p.Price})
			remaining[p.ID] = p.Stock - l.Quantity
		}
		o.Items = items
		o.Total = total

		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		for _, it := range items {
			if err := tx.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		if in.CartToken != "" {
			if err := tx.ClearCart(ctx, in.CartToken); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if IsClientError(err) {
			return Order{}, err
		}
		return Order{}, fmt.Errorf("place order: %w", err)
	}

	s.afterPlaced(ctx, o, remaining, in.TraceID)
	return o, nil
}

// afterPlaced runs the best-effort side effects of a committed order.
func (s *Service) afterPlaced(ctx context.Context, o Order, remaining map[string]int, traceID string) {
	ctx = context.WithoutCancel(ctx)
	log := s.logger().With("order_id", o.ID)
	log.Info("order placed", "items", len(o.Items), "total", o.Total.StringFixed(2), "status", o.Status)

	publish(s.Events.OrderPlaced, o.ID, NewEnvelope(EventOrderPlaced, s.Producer, traceID, o.ID, orderPlacedPayload(o)))
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		s.Events.PublishStockChanged(s.Producer, traceID, it.ProductID, -it.Quantity, remaining[it.ProductID], "ORDER_PLACED")
		ids = append(ids, it.ProductID)
	}

	if s.Statuses != nil {
		if err := s.Statuses.Put(ctx, o.ID, o.Status); err != nil {
			log.Warn("status cache write failed", "err", err)
		}
	}
	if s.Stock != nil {
		if err := s.Stock.InvalidateProducts(ctx, ids...); err != nil {
			log.Warn("catalog cache invalidate failed", "err", err)
		}
	}
}

// SetStatus maps an admin label to a status and applies it. Transitions are not restricted.
func (s *Service) SetStatus(ctx context.Context, orderID, label, traceID string) (Order, error) {
	st, err := ParseStatus(label)
	if err != nil {
		return Order{}, err
	}
	o, prev, err := s.Store.UpdateStatus(ctx, orderID, st)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return Order{}, err
		}
		return Order{}, fmt.Errorf("set status: %w", err)
	}

	ctx = context.WithoutCancel(ctx)
	log := s.logger().With("order_id", o.ID)
	log.Info("order status changed", "from", prev, "to", st)
	publish(s.Events.StatusChanged, o.ID, NewEnvelope(EventOrderStatusChanged, s.Producer, traceID, o.ID,
		OrderStatusChangedPayload{OrderID: o.ID, From: prev, To: st}))
	if s.Statuses != nil {
		if err := s.Statuses.Put(ctx, o.ID, st); err != nil {
			log.Warn("status cache write failed", "err", err)
		}
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	return s.Store.Get(ctx, orderID)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	return s.Store.List(ctx, f.clamp())
}

// Status reads through the status cache.
func (s *Service) Status(ctx context.Context, orderID string) (Status, error) {
	if s.Statuses != nil {
		st, ok, err := s.Statuses.Lookup(ctx, orderID)
		if err != nil {
			s.logger().Warn("status cache read failed", "order_id", orderID, "err", err)
		} else if ok {
			return st, nil
		}
	}
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if s.Statuses != nil {
		if err := s.Statuses.Put(ctx, orderID, o.Status); err != nil {
			s.logger().Warn("status cache write failed", "order_id", orderID, "err", err)
		}
	}
	return o.Status, nil
}
