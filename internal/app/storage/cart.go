package storage

import "fmt"

// AddToLine computes a cart line amount after adding delta units. Stores call
// it while holding the cart lock. A positive limit caps the result.
func AddToLine(current, delta, limit int) (int, error) {
	next := current + delta
	if limit > 0 && next > limit {
		return 0, fmt.Errorf("line of %d would reach %d units, limit %d: %w", current, next, limit, ErrLineLimit)
	}
	return next, nil
}
