package domain

// Write is one effect inside an atomic batch. The set of implementations is
// closed: InsertSale, InsertSaleItem and DecrementStock.
type Write interface {
	isWrite()
}

type InsertSale struct {
	Sale Sale
}

// InsertSaleItem stores one line of a sale. Position is the line's index
// within the sale and fixes the order items are read back in.
type InsertSaleItem struct {
	Item     SaleItem
	Position int
}

// DecrementStock lowers a product's stock by Amount. The store must fail the
// whole batch if the stock is below ExpectedMinimum when applied.
type DecrementStock struct {
	ProductID       string
	Amount          int
	ExpectedMinimum int
}

func (InsertSale) isWrite()     {}
func (InsertSaleItem) isWrite() {}
func (DecrementStock) isWrite() {}

// Batch is applied all-or-nothing by an EntityStore.
type Batch []Write

// Sale returns the header of the batch and the items attached to it.
// ok is false when the batch holds no InsertSale.
func (b Batch) Sale() (sale Sale, ok bool) {
	var items []SaleItem
	for _, w := range b {
		switch w := w.(type) {
		case InsertSale:
			sale, ok = w.Sale, true
		case InsertSaleItem:
			items = append(items, w.Item)
		}
	}
	if !ok {
		return Sale{}, false
	}
	sale.Items = nil
	for _, item := range items {
		if item.SaleID == sale.ID {
			sale.Items = append(sale.Items, item)
		}
	}
	return sale, true
}

func (b Batch) Decrements() []DecrementStock {
	var out []DecrementStock
	for _, w := range b {
		if d, ok := w.(DecrementStock); ok {
			out = append(out, d)
		}
	}
	return out
}
