package orders

import (
	kafkax "github.com/ariefcatur/go-jewelry-shop/internal/kafka"
)

type Publisher interface {
	Publish(key, value []byte, headers ...kafkax.Header)
}

// Publishers holds one publisher per topic. Nil publishers are skipped.
type Publishers struct {
	OrderPlaced   Publisher
	StatusChanged Publisher
	StockChanged  Publisher
}

func publish(p Publisher, key string, ev Envelope) {
	if p == nil {
		return
	}
	p.Publish(PartitionKey(key), kafkax.MustMarshal(ev), ev.Headers()...)
}

// PublishStockChanged announces a stock level change outside order placement.
func (p Publishers) PublishStockChanged(producer, traceID, productID string, delta, stock int, reason string) {
	ev := NewEnvelope(EventStockChanged, producer, traceID, productID, StockChangedPayload{
		ProductID: productID, Delta: delta, Stock: stock, Reason: reason,
	})
	publish(p.StockChanged, productID, ev)
}
