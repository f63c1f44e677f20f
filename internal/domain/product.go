package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ProductID is the upstream identity of a product. The catalog API emits ids
// either as JSON numbers or as strings; both decode to the same textual form.
// The empty ProductID means "no id".
type ProductID string

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *ProductID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("product id: %w", err)
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("product id must be a string or a number: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

// Product is a catalog record as delivered by the upstream REST API. Only the
// fields the storefront reads are typed; everything else is carried in Extra
// and written back unchanged.
type Product struct {
	ID        ProductID
	Name      string
	Price     decimal.NullDecimal
	HighPrice decimal.NullDecimal
	Image     string
	ImageURL  string
	Extra     map[string]json.RawMessage
}

var knownProductFields = []string{"id", "name", "price", "high_price", "image", "image_url"}

// discountField is derived from the prices on output and never kept as an
// extra field, so a stored record cannot carry a stale value.
const discountField = "discount_percent"

// UnmarshalJSON decodes a product, keeping unknown fields in Extra.
func (p *Product) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var out Product
	decode := func(field string, dst any) error {
		v, ok := raw[field]
		if !ok {
			return nil
		}
		delete(raw, field)
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
		return nil
	}

	var name, image, imageURL *string
	if err := decode("id", &out.ID); err != nil {
		return err
	}
	if err := decode("name", &name); err != nil {
		return err
	}
	if err := decode("price", &out.Price); err != nil {
		return err
	}
	if err := decode("high_price", &out.HighPrice); err != nil {
		return err
	}
	if err := decode("image", &image); err != nil {
		return err
	}
	if err := decode("image_url", &imageURL); err != nil {
		return err
	}
	if name != nil {
		out.Name = *name
	}
	if image != nil {
		out.Image = *image
	}
	if imageURL != nil {
		out.ImageURL = *imageURL
	}
	delete(raw, discountField)
	if len(raw) > 0 {
		out.Extra = raw
	}

	*p = out
	return nil
}

// MarshalJSON encodes the product including its extra fields. Prices are
// written as JSON numbers.
func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.fields())
}

func (p Product) fields() map[string]any {
	out := make(map[string]any, len(p.Extra)+len(knownProductFields)+2)
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.ID != "" {
		out["id"] = string(p.ID)
	}
	out["name"] = p.Name
	if p.Price.Valid {
		out["price"] = json.Number(p.Price.Decimal.String())
	}
	if p.HighPrice.Valid {
		out["high_price"] = json.Number(p.HighPrice.Decimal.String())
	}
	if p.Image != "" {
		out["image"] = p.Image
	}
	if p.ImageURL != "" {
		out["image_url"] = p.ImageURL
	}
	return out
}

// displayFields is fields plus the derived discount shown on product cards.
func (p Product) displayFields() map[string]any {
	out := p.fields()
	if pct, ok := p.DiscountPercent(); ok {
		out[discountField] = pct
	}
	return out
}

// Clone returns a deep copy of the product.
func (p Product) Clone() Product {
	c := p
	if p.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

// Normalize defaults a missing price to zero so that basket aggregates stay
// numeric. It reports whether the price was defaulted.
func (p *Product) Normalize() bool {
	if p.Price.Valid {
		return false
	}
	p.Price = decimal.NewNullDecimal(decimal.Zero)
	return true
}

// DisplayImage returns the image to render, preferring image over image_url.
func (p Product) DisplayImage() string {
	if p.Image != "" {
		return p.Image
	}
	return p.ImageURL
}

// DiscountPercent returns the rounded discount against the high price. It is
// only defined when both prices are present and the price is below the high
// price.
func (p Product) DiscountPercent() (int64, bool) {
	if !p.Price.Valid || !p.HighPrice.Valid {
		return 0, false
	}
	high := p.HighPrice.Decimal
	if !high.IsPositive() || !p.Price.Decimal.LessThan(high) {
		return 0, false
	}
	pct := high.Sub(p.Price.Decimal).Div(high).Mul(decimal.NewFromInt(100)).Round(0)
	return pct.IntPart(), true
}
