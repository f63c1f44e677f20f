package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dyagdi/PriceLess/internal/domain"
	"github.com/dyagdi/PriceLess/pkg/validator"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// --- Request DTOs ---

// RemoveRequest is the body of POST /basket/remove. Identifier is a JSON
// number or string.
type RemoveRequest struct {
	Identifier json.RawMessage `json:"identifier" validate:"required"`
}

// UpdateQuantityRequest is the body of PUT /basket/items/{key}/quantity.
// Any integer is accepted, including zero and negatives.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// --- Response DTOs ---

// FavoritesResponse is the body of GET /favorites.
type FavoritesResponse struct {
	Entries []domain.FavoriteEntry `json:"entries"`
	Count   int                    `json:"count"`
}

// CheckResponse is the body of POST /favorites/check.
type CheckResponse struct {
	Favorite bool `json:"favorite"`
}

// SessionResetResponse is the body of DELETE /session.
type SessionResetResponse struct {
	Existed bool `json:"existed"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// decodeProduct reads a product body. A JSON null yields a nil product;
// an empty body is an error.
func decodeProduct(w http.ResponseWriter, r *http.Request) (*domain.Product, error) {
	var p *domain.Product
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, validator.ErrEmptyBody
		}
		return nil, fmt.Errorf("decode product: %w", err)
	}
	return p, nil
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return validator.DecodeAndValidate(r, dst)
}
