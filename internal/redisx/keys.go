package redisx

import "time"

const (
	// Idempotent order placement: idem:order:place:{key} -> order_id | "pending"
	KeyIdemOrderPlace = "idem:order:place:%s"

	// Order status cache: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Revoked admin sessions: session:revoked:{jti}
	KeySessionRevoked = "session:revoked:%s"

	// Catalog cache prefix; entries are product:{id} and products:{category}:{featured}
	PrefixCatalog = "catalog:"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = 30 * time.Second
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
