package service

import (
	"sort"

	"github.com/rl1809/shop-sales/internal/core/domain"
)

type LineRequest struct {
	ProductID string
	Quantity  int
}

type ReservedLine struct {
	ProductID string
	Quantity  int
	PreStock  int
}

// Reservation pairs each product with its stock before the decrement.
type Reservation struct {
	Lines []ReservedLine
}

// Writes returns one conditional decrement per line, ordered by product id so
// that row-locking stores always lock in the same order.
func (r Reservation) Writes() []domain.Write {
	lines := make([]ReservedLine, len(r.Lines))
	copy(lines, r.Lines)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	writes := make([]domain.Write, 0, len(lines))
	for _, l := range lines {
		writes = append(writes, domain.DecrementStock{
			ProductID:       l.ProductID,
			Amount:          l.Quantity,
			ExpectedMinimum: l.Quantity,
		})
	}
	return writes
}

type StockGuard struct{}

func NewStockGuard() *StockGuard {
	return &StockGuard{}
}

// Reserve checks every line against the snapshot. It fails on the first line
// that asks for more than is available and touches nothing.
func (g *StockGuard) Reserve(items []LineRequest, snapshots map[string]ProductSnapshot) (Reservation, error) {
	if len(items) == 0 {
		return Reservation{}, ErrEmptyOrder
	}

	res := Reservation{Lines: make([]ReservedLine, 0, len(items))}
	for _, item := range items {
		if item.Quantity <= 0 {
			return Reservation{}, invalidQuantity(item.ProductID)
		}
		snap, ok := snapshots[item.ProductID]
		if !ok {
			return Reservation{}, productNotFound(item.ProductID)
		}
		if item.Quantity > snap.Stock {
			return Reservation{}, insufficientStock(item.ProductID, item.Quantity, snap.Stock)
		}
		res.Lines = append(res.Lines, ReservedLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			PreStock:  snap.Stock,
		})
	}
	return res, nil
}
