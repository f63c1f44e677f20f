package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// BasketEntry is one line item in the basket.
type BasketEntry struct {
	Product

	// BasketID is the product id when present, otherwise a synthesized token.
	BasketID string
	Quantity int
}

// NewBasketEntry builds a basket entry for p with quantity 1.
func NewBasketEntry(p Product, basketID string) BasketEntry {
	return BasketEntry{Product: p, BasketID: basketID, Quantity: 1}
}

// SameItem reports whether p collapses into this entry. Two additions are the
// same item when both id and name are equal, regardless of other fields.
func (e BasketEntry) SameItem(p Product) bool {
	return e.ID == p.ID && e.Name == p.Name
}

// MatchesKey reports whether key names this entry by product id or basket id.
func (e BasketEntry) MatchesKey(key string) bool {
	if key == "" {
		return false
	}
	return string(e.ID) == key || e.BasketID == key
}

// LineTotal returns price * quantity.
func (e BasketEntry) LineTotal() decimal.Decimal {
	return e.Price.Decimal.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// MarshalJSON encodes the entry as its product fields plus basketId and
// quantity, with discount_percent when the product is discounted.
func (e BasketEntry) MarshalJSON() ([]byte, error) {
	out := e.Product.displayFields()
	out["basketId"] = e.BasketID
	out["quantity"] = e.Quantity
	return json.Marshal(out)
}

// FavoriteEntry is a product marked as favorite. Membership is keyed by ID,
// which is always set once the entry is committed.
type FavoriteEntry struct {
	Product
}

// MarshalJSON encodes the favorite as its product fields, with
// discount_percent when the product is discounted.
func (e FavoriteEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Product.displayFields())
}
