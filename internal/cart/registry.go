package cart

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultCartTTL = 30 * 24 * time.Hour

// RegistryDeps carries the dependencies for a cart registry.
type RegistryDeps struct {
	// TTL controls how long an untouched cart survives. Defaults to the
	// session cookie lifetime when zero.
	TTL   time.Duration
	Clock func() time.Time
}

// Registry owns every live session cart. All access is serialised through a
// single mutex; carts are pruned lazily when their session goes stale.
type Registry struct {
	mu    sync.Mutex
	carts map[string]*cartState
	ttl   time.Duration
	clock func() time.Time
}

type cartState struct {
	items     []Item
	updatedAt time.Time
}

// NewRegistry constructs an empty cart registry.
func NewRegistry(deps RegistryDeps) (*Registry, error) {
	if deps.TTL < 0 {
		return nil, errors.New("cart: ttl must not be negative")
	}
	ttl := deps.TTL
	if ttl == 0 {
		ttl = defaultCartTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		carts: make(map[string]*cartState),
		ttl:   ttl,
		clock: func() time.Time { return clock().UTC() },
	}, nil
}

// AddInput describes the product snapshot captured when a line is added.
type AddInput struct {
	ProductID        string
	SellerID         string
	Name             string
	ImageURL         string
	Price            int64
	Quantity         int
	InventoryCeiling int
}

// Get returns the current cart for the session, which may be empty.
func (r *Registry) Get(sessionID string) (Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Cart{}, ErrSessionRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.liveState(sessionID)
	if state == nil {
		return Cart{SessionID: sessionID}, nil
	}
	return r.snapshot(sessionID, state, false), nil
}

// Add merges a product into the cart. Quantities for an existing line
// accumulate and are clamped to the inventory ceiling.
func (r *Registry) Add(sessionID string, input AddInput) (Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Cart{}, ErrSessionRequired
	}
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return Cart{}, ErrProductRequired
	}
	if input.InventoryCeiling <= 0 {
		return Cart{}, ErrOutOfStock
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	state := r.liveState(sessionID)
	if state == nil {
		state = &cartState{}
		r.carts[sessionID] = state
	}

	requested := input.Quantity
	clamped := false
	found := false
	for i := range state.items {
		if state.items[i].ProductID != productID {
			continue
		}
		found = true
		total := state.items[i].Quantity + requested
		state.items[i].Quantity, clamped = clampQuantity(total, input.InventoryCeiling)
		state.items[i].Price = input.Price
		state.items[i].InventoryCeiling = input.InventoryCeiling
		break
	}
	if !found {
		quantity, wasClamped := clampQuantity(requested, input.InventoryCeiling)
		clamped = wasClamped
		state.items = append(state.items, Item{
			ProductID:        productID,
			SellerID:         strings.TrimSpace(input.SellerID),
			Name:             strings.TrimSpace(input.Name),
			ImageURL:         strings.TrimSpace(input.ImageURL),
			Price:            input.Price,
			Quantity:         quantity,
			InventoryCeiling: input.InventoryCeiling,
			AddedAt:          now,
		})
	}
	state.updatedAt = now

	return r.snapshot(sessionID, state, clamped), nil
}

// UpdateQuantity sets a line's quantity. Zero or negative removes the line;
// values above the inventory ceiling are clamped down. Updating a line that
// is not in the cart is a no-op returning the current snapshot.
func (r *Registry) UpdateQuantity(sessionID, productID string, quantity int) (Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Cart{}, ErrSessionRequired
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Cart{}, ErrProductRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.liveState(sessionID)
	if state == nil {
		return Cart{SessionID: sessionID}, nil
	}

	idx := -1
	for i := range state.items {
		if state.items[i].ProductID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return r.snapshot(sessionID, state, false), nil
	}

	now := r.clock()
	clamped := false
	if quantity < 1 {
		state.items = append(state.items[:idx], state.items[idx+1:]...)
	} else {
		state.items[idx].Quantity, clamped = clampQuantity(quantity, state.items[idx].InventoryCeiling)
	}
	state.updatedAt = now

	return r.snapshot(sessionID, state, clamped), nil
}

// Remove deletes a line from the cart. Removing an absent line is
// idempotent and returns the current snapshot.
func (r *Registry) Remove(sessionID, productID string) (Cart, error) {
	return r.UpdateQuantity(sessionID, productID, 0)
}

// Clear empties the session's cart.
func (r *Registry) Clear(sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrSessionRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, sessionID)
	return nil
}

// Len reports how many live carts the registry currently holds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	count := 0
	for _, state := range r.carts {
		if now.Sub(state.updatedAt) <= r.ttl {
			count++
		}
	}
	return count
}

// PruneExpired drops carts untouched for longer than the TTL and returns how
// many were removed. Intended to run on a background ticker.
func (r *Registry) PruneExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	removed := 0
	for id, state := range r.carts {
		if now.Sub(state.updatedAt) > r.ttl {
			delete(r.carts, id)
			removed++
		}
	}
	return removed
}

// liveState returns the session's state, dropping it first when expired.
// Callers must hold the mutex.
func (r *Registry) liveState(sessionID string) *cartState {
	state, ok := r.carts[sessionID]
	if !ok {
		return nil
	}
	if r.clock().Sub(state.updatedAt) > r.ttl {
		delete(r.carts, sessionID)
		return nil
	}
	return state
}

// snapshot copies the mutable state into an immutable Cart. Callers must
// hold the mutex.
func (r *Registry) snapshot(sessionID string, state *cartState, clamped bool) Cart {
	items := make([]Item, len(state.items))
	copy(items, state.items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].AddedAt.Before(items[j].AddedAt)
	})
	return Cart{
		SessionID: sessionID,
		Items:     items,
		UpdatedAt: state.updatedAt,
		Clamped:   clamped,
	}
}
