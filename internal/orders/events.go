package orders

import (
	"encoding/json"
	"time"

	kafkax "github.com/ariefcatur/go-jewelry-shop/internal/kafka"
	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockChanged       = "StockChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer, traceID, correlationID string, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
}

// Headers mirrors the envelope type and version so consumers can filter without decoding.
func (e Envelope) Headers() []kafkax.Header {
	return []kafkax.Header{
		{Key: kafkax.HeaderEventType, Value: []byte(e.EventType)},
		{Key: kafkax.HeaderEventVersion, Value: []byte("1")},
	}
}

type ItemPrice struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type OrderPlacedPayload struct {
	OrderID string      `json:"order_id"`
	Status  Status      `json:"status"`
	Email   string      `json:"email"`
	Items   []ItemPrice `json:"items"`
	Total   string      `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type StockChangedPayload struct {
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
	Stock     int    `json:"stock"`
	Reason    string `json:"reason"` // ORDER_PLACED | ADMIN_SET
}

func orderPlacedPayload(o Order) OrderPlacedPayload {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Qty: it.Quantity, UnitPrice: it.UnitPrice.StringFixed(2)})
	}
	return OrderPlacedPayload{
		OrderID: o.ID,
		Status:  o.Status,
		Email:   o.Customer.Email,
		Items:   items,
		Total:   o.Total.StringFixed(2),
	}
}
