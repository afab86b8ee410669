package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotal(t *testing.T) {
	items := []SaleItem{
		{ProductID: "p1", Quantity: 3, Price: decimal.RequireFromString("10.00")},
		{ProductID: "p2", Quantity: 2, Price: decimal.RequireFromString("29.99")},
	}

	assert.True(t, ComputeTotal(items).Equal(decimal.RequireFromString("89.98")))
	assert.True(t, ComputeTotal(nil).IsZero())
}

func TestBatch_SaleCollectsItems(t *testing.T) {
	batch := Batch{
		InsertSaleItem{Item: SaleItem{ID: "i0", SaleID: "s1", ProductID: "p0", Quantity: 1}},
		InsertSale{Sale: Sale{ID: "s1", CustomerID: "c1"}},
		InsertSaleItem{Item: SaleItem{ID: "i1", SaleID: "s1", ProductID: "p1", Quantity: 2}},
		InsertSaleItem{Item: SaleItem{ID: "ix", SaleID: "other", ProductID: "p2", Quantity: 1}},
		DecrementStock{ProductID: "p1", Amount: 2, ExpectedMinimum: 2},
	}

	sale, ok := batch.Sale()
	assert.True(t, ok)
	assert.Equal(t, "s1", sale.ID)
	assert.Len(t, sale.Items, 2)
	assert.Equal(t, []DecrementStock{{ProductID: "p1", Amount: 2, ExpectedMinimum: 2}}, batch.Decrements())
}

func TestBatch_NoSale(t *testing.T) {
	_, ok := Batch{DecrementStock{ProductID: "p1", Amount: 1}}.Sale()
	assert.False(t, ok)
}

func TestSaleStatus_Valid(t *testing.T) {
	assert.True(t, SaleStatusPending.Valid())
	assert.True(t, SaleStatusCompleted.Valid())
	assert.True(t, SaleStatusCancelled.Valid())
	assert.False(t, SaleStatus("shipped").Valid())
}
