package orders

const (
	TopicOrderPlaced        = "shop.order.placed"
	TopicOrderStatusChanged = "shop.order.status_changed"
	TopicStockChanged       = "shop.catalog.stock_changed"
)

// Partition key = order or product id, so events of one entity stay ordered.
func PartitionKey(id string) []byte { return []byte(id) }
