package port

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicateRequest is returned by AtomicApply when a sale with the same
	// request key was already committed.
	ErrDuplicateRequest = errors.New("duplicate request key")

	// ErrAlreadyExists reports a unique key collision (SKU, email).
	ErrAlreadyExists = errors.New("already exists")

	// ErrReferenced reports a delete refused because other records point at the row.
	ErrReferenced = errors.New("referenced by other records")
)

// StockConflictError fails a batch whose DecrementStock could not be applied.
type StockConflictError struct {
	ProductID string
	Requested int
	Available int
	Missing   bool
}

func (e *StockConflictError) Error() string {
	if e.Missing {
		return fmt.Sprintf("product %s no longer exists", e.ProductID)
	}
	return fmt.Sprintf("product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}
