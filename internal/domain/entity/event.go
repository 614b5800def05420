package entity

import "time"

const (
	EventProductCreated    = "product.created"
	EventProductUpdated    = "product.updated"
	EventProductDeleted    = "product.deleted"
	EventProductReserved   = "product.reserved"
	EventProductUnreserved = "product.unreserved"
)

// ProductEvent is pushed to connected browsers after a confirmed change.
type ProductEvent struct {
	Type      string    `json:"type"`
	ProductID int64     `json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
