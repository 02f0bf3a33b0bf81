// Package cart holds the in-memory session carts. Cart contents live on the
// server keyed by session ID and are only written to the order store at
// checkout time.
package cart

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrSessionRequired is returned when a cart operation lacks a session ID.
	ErrSessionRequired = errors.New("cart: session id is required")
	// ErrProductRequired is returned when a line item lacks a product ID.
	ErrProductRequired = errors.New("cart: product id is required")
	// ErrOutOfStock is returned when adding a product with no available inventory.
	ErrOutOfStock = errors.New("cart: product is out of stock")
)

// Item is a single cart line. Price and inventory are snapshots taken when
// the product was added; quantity never exceeds InventoryCeiling.
type Item struct {
	ProductID        string
	SellerID         string
	Name             string
	ImageURL         string
	Price            int64
	Quantity         int
	InventoryCeiling int
	AddedAt          time.Time
}

// Subtotal returns the line total in minor currency units.
func (i Item) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Cart is an immutable snapshot handed to callers. Mutation goes through the
// Registry so totals always derive from the item list.
type Cart struct {
	SessionID string
	Items     []Item
	UpdatedAt time.Time

	// Clamped reports that the last mutation reduced a requested quantity
	// to the inventory ceiling.
	Clamped bool
}

// TotalItems returns the summed quantity across all lines.
func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice returns the summed line subtotals in minor currency units.
func (c Cart) TotalPrice() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the line for the given product, if present.
func (c Cart) Find(productID string) (Item, bool) {
	productID = strings.TrimSpace(productID)
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}

// clampQuantity bounds a requested quantity to [1, ceiling]. A ceiling of
// zero or less means the product cannot be carted at all.
func clampQuantity(requested, ceiling int) (quantity int, clamped bool) {
	if requested < 1 {
		requested = 1
		clamped = true
	}
	if ceiling > 0 && requested > ceiling {
		return ceiling, true
	}
	return requested, clamped
}
