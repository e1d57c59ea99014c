package orders

import "encoding/json"

// Set is an insertion-ordered collection of orders keyed by OrderID.
// Merging a record whose key already exists overwrites it in place, so
// display order always equals first-seen order regardless of how many times
// the collector re-sends earlier pages.
type Set struct {
	index map[string]int
	items []Order
}

// NewSet creates an empty order set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// ReconstructSet rebuilds a set from a persisted slice, preserving order.
// Later duplicates overwrite earlier ones in place, matching merge semantics.
func ReconstructSet(items []Order) *Set {
	s := NewSet()
	s.Merge(items)
	return s
}

// Merge folds a batch of incoming records into the set. New keys append;
// existing keys are overwritten at their original position. Merging is
// idempotent with respect to duplicate delivery.
func (s *Set) Merge(incoming []Order) {
	for _, order := range incoming {
		if order.OrderID == "" {
			continue
		}
		if pos, ok := s.index[order.OrderID]; ok {
			s.items[pos] = order
			continue
		}
		s.index[order.OrderID] = len(s.items)
		s.items = append(s.items, order)
	}
}

// Len returns the number of unique orders in the set.
func (s *Set) Len() int { return len(s.items) }

// Get returns the order for the given ID, if present.
func (s *Set) Get(orderID string) (Order, bool) {
	pos, ok := s.index[orderID]
	if !ok {
		return Order{}, false
	}
	return s.items[pos], true
}

// Items returns the orders in first-seen order. The returned slice is a copy;
// mutating it does not affect the set.
func (s *Set) Items() []Order {
	out := make([]Order, len(s.items))
	copy(out, s.items)
	return out
}

// MarshalJSON serializes the set as a plain JSON array in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// UnmarshalJSON rebuilds the set from a JSON array.
func (s *Set) UnmarshalJSON(data []byte) error {
	var items []Order
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	s.index = make(map[string]int, len(items))
	s.items = nil
	s.Merge(items)
	return nil
}
