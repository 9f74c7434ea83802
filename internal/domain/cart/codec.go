// internal/domain/cart/codec.go
package cart

import (
	"encoding/json"
	"fmt"
)

// LocalCartKey is the fixed local storage key for the anonymous cart.
const LocalCartKey = "rioAnonymousCart_v1"

// EncodeItems serializes items as a plain JSON array of {id,title,price,quantity}.
func EncodeItems(items []CartItem) (string, error) {
	if items == nil {
		items = []CartItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("cart: encode items: %w", err)
	}
	return string(b), nil
}

// DecodeItems parses a stored anonymous cart and passes it through Sanitize, so whatever
// it returns can be synced to the remote store as is.
func DecodeItems(raw string) ([]CartItem, error) {
	var items []CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("cart: decode items: %w", err)
	}
	return Sanitize(items), nil
}
