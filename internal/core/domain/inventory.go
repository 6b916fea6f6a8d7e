package domain

import "time"

// InventoryLevel is the per-product stock counter pair. Available is what a
// new order may reserve; Reserved is held for orders that have not yet
// shipped or been cancelled.
type InventoryLevel struct {
	ProductID string    `json:"product_id"`
	Available int       `json:"available"`
	Reserved  int       `json:"reserved"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reservation marks the stock held for one order. Released flips exactly
// once, which is what makes the expiry/decline release path idempotent.
type Reservation struct {
	OrderNumber string    `json:"order_number"`
	ProductID   string    `json:"product_id"`
	Quantity    int       `json:"quantity"`
	Released    bool      `json:"released"`
	CreatedAt   time.Time `json:"created_at"`
}
