package service

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindCustomerNotFound  ErrorKind = "customer_not_found"
	KindEmptyOrder        ErrorKind = "empty_order"
	KindInvalidQuantity   ErrorKind = "invalid_quantity"
	KindInvalidStatus     ErrorKind = "invalid_status"
	KindProductNotFound   ErrorKind = "product_not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindStorageAborted    ErrorKind = "storage_aborted"

	KindRequestKeyConflict ErrorKind = "request_key_conflict"
)

// SaleError is the failure of a CommitSale call. errors.Is matches on Kind
// only, so the package sentinels can be compared against any instance.
type SaleError struct {
	Kind      ErrorKind
	ProductID  string
	Requested  int
	Available  int
	RequestKey string
	Err        error
}

var (
	ErrCustomerNotFound  = &SaleError{Kind: KindCustomerNotFound}
	ErrEmptyOrder        = &SaleError{Kind: KindEmptyOrder}
	ErrInvalidQuantity   = &SaleError{Kind: KindInvalidQuantity}
	ErrInvalidStatus     = &SaleError{Kind: KindInvalidStatus}
	ErrProductNotFound   = &SaleError{Kind: KindProductNotFound}
	ErrInsufficientStock = &SaleError{Kind: KindInsufficientStock}
	ErrStorageAborted    = &SaleError{Kind: KindStorageAborted}

	ErrRequestKeyConflict = &SaleError{Kind: KindRequestKeyConflict}
)

func (e *SaleError) Error() string {
	switch e.Kind {
	case KindCustomerNotFound:
		return "customer not found"
	case KindEmptyOrder:
		return "order has no items"
	case KindInvalidQuantity:
		return fmt.Sprintf("invalid quantity for product %s", e.ProductID)
	case KindInvalidStatus:
		return "invalid sale status"
	case KindProductNotFound:
		return fmt.Sprintf("product %s not found", e.ProductID)
	case KindInsufficientStock:
		return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
			e.ProductID, e.Requested, e.Available)
	case KindStorageAborted:
		if e.Err != nil {
			return fmt.Sprintf("storage aborted: %v", e.Err)
		}
		return "storage aborted"
	case KindRequestKeyConflict:
		return fmt.Sprintf("request key %q was already used for a different sale", e.RequestKey)
	}
	return string(e.Kind)
}

func (e *SaleError) Is(target error) bool {
	t, ok := target.(*SaleError)
	return ok && t.Kind == e.Kind
}

func (e *SaleError) Unwrap() error {
	return e.Err
}

func customerNotFound() error { return &SaleError{Kind: KindCustomerNotFound} }

func productNotFound(productID string) error {
	return &SaleError{Kind: KindProductNotFound, ProductID: productID}
}

func invalidQuantity(productID string) error {
	return &SaleError{Kind: KindInvalidQuantity, ProductID: productID}
}

func insufficientStock(productID string, requested, available int) error {
	return &SaleError{Kind: KindInsufficientStock, ProductID: productID, Requested: requested, Available: available}
}

func requestKeyConflict(key string) error {
	return &SaleError{Kind: KindRequestKeyConflict, RequestKey: key}
}

func storageAborted(err error) error {
	return &SaleError{Kind: KindStorageAborted, Err: err}
}

// KindOf reports the kind of a sale failure, or "" for other errors.
func KindOf(err error) ErrorKind {
	var se *SaleError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Catalog errors.
var (
	ErrSaleNotFound      = errors.New("sale not found")
	ErrDuplicateSKU      = errors.New("sku already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrSKUImmutable      = errors.New("sku cannot be changed")
	ErrProductInUse      = errors.New("cannot delete product that has been sold")
	ErrCustomerInUse     = errors.New("cannot delete customer with recorded sales")
	ErrInvalidTransition = errors.New("invalid sale status transition")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
