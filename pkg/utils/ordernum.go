package utils

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// OrderNumberPrefix fixed order number prefix
const OrderNumberPrefix = "ORD-"

// NewOrderNumber generates a human-readable order number of the form
// ORD-XXXXXXXX where X is an uppercase hex character. Uniqueness is
// enforced by the database index; callers retry on collision.
func NewOrderNumber() string {
	id := uuid.New()
	return OrderNumberPrefix + strings.ToUpper(hex.EncodeToString(id[:4]))
}
