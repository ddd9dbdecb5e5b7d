package cart

import "sync"

// Store holds the current cart for one session. It is constructed per
// session and passed to whoever needs it; there is no package-level cart.
type Store struct {
	mu   sync.RWMutex
	cart Cart
}

// NewStore returns a store holding the empty cart.
func NewStore() *Store {
	return &Store{cart: Empty()}
}

// SetCart replaces the cart wholesale and recomputes totals from its items.
// A nil cart resets to the empty cart. The stored snapshot is returned.
func (s *Store) SetCart(c *Cart) Cart {
	next := Empty()
	if c != nil {
		next = c.Clone()
		if next.Items == nil {
			next.Items = []Item{}
		}
		if next.Currency == "" {
			next.Currency = Empty().Currency
		}
	}
	next.Totals = DeriveTotals(next.Items)

	s.mu.Lock()
	s.cart = next
	s.mu.Unlock()
	return next.Clone()
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// Totals returns the current derived totals.
func (s *Store) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Totals
}
