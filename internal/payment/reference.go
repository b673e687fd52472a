package payment

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ReferencePrefix namespaces the external references this shop generates.
const ReferencePrefix = "CCP"

var referencePattern = regexp.MustCompile(`^` + ReferencePrefix + `-(\d+)-\d+$`)

// NewReference builds the processor-visible order identifier for an order.
// The timestamp keeps retried checkouts distinguishable on the processor side.
func NewReference(orderID uint, now time.Time) string {
	return fmt.Sprintf("%s-%d-%d", ReferencePrefix, orderID, now.Unix())
}

// ParseReference recovers the embedded local order id from a reference.
// Degraded-mode lookup only: callers must confirm the result against the
// order's own stored reference before trusting it.
func ParseReference(ref string) (uint, bool) {
	m := referencePattern.FindStringSubmatch(ref)
	if m == nil {
		return 0, false
	}

	id, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
