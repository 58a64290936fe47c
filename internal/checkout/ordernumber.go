package checkout

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewOrderNumber returns a human-facing order number. The ULID keeps numbers
// ordered by creation time while staying unique for orders created in the
// same millisecond.
func NewOrderNumber(now time.Time) string {
	return "ORD-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
