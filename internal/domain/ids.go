package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefixes of synthesized identity tokens.
const (
	BasketIDPrefix   = "temp-id"
	FavoriteIDPrefix = "product"
)

// IDGenerator synthesizes an identity token for a product that has no id.
type IDGenerator func(prefix string) string

// NewTempID returns a time+random token of the form
// "<prefix>-<unix millis>-<9 base36 chars>".
func NewTempID(prefix string) string {
	u := uuid.New()
	r := new(big.Int).SetBytes(u[:]).Text(36)
	if len(r) < 9 {
		r = strings.Repeat("0", 9-len(r)) + r
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), r[len(r)-9:])
}

// productNamespace scopes name-based ids of products without an upstream id.
var productNamespace = uuid.MustParse("5d0c6f2e-8a57-4b63-9a0e-3f1c2b7d9e41")

// StableID derives a deterministic id from the product's name, price and
// image, so the same id-less product always maps to the same favorite.
func StableID(p Product) ProductID {
	price := ""
	if p.Price.Valid {
		price = p.Price.Decimal.String()
	}
	name := strings.Join([]string{p.Name, price, p.DisplayImage()}, "\x00")
	return ProductID(FavoriteIDPrefix + "-" + uuid.NewSHA1(productNamespace, []byte(name)).String())
}
