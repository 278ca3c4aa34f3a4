package orders

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// statusLabels maps the lower-case labels admins send to the canonical status.
// Several storefront labels collapse onto one status.
var statusLabels = map[string]Status{
	"pending":   StatusPending,
	"confirmed": StatusConfirmed,
	"preparing": StatusShipped,
	"ready":     StatusShipped,
	"shipped":   StatusShipped,
	"delivered": StatusDelivered,
	"collected": StatusDelivered,
	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
}

// ParseStatus resolves an admin label. Any status may follow any other;
// only the label set is enforced.
func ParseStatus(label string) (Status, error) {
	s, ok := statusLabels[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedStatus, label)
	}
	return s, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}
