// internal/domain/cart/entity.go
package cart

import (
	"errors"
	"math"
	"strings"
	"time"
)

var (
	ErrInvalidCart = errors.New("cart: invalid")
	ErrInvalidItem = errors.New("cart: invalid item")
)

// DefaultCartTTL is the inactivity window after which a remote cart doc becomes eligible
// for auto deletion (Firestore TTL should be configured on expiresAt).
const DefaultCartTTL = 7 * 24 * time.Hour

// CartItem is one line in a cart.
// Identity is ID only: two items with the same ID are the same line and are never
// combined by quantity.
type CartItem struct {
	ID       string  `json:"id" firestore:"id"`
	Title    string  `json:"title" firestore:"title"`
	Price    float64 `json:"price" firestore:"price"`
	Quantity int     `json:"quantity" firestore:"quantity"`
}

// Validate checks a single line item.
func (it CartItem) Validate() error {
	if strings.TrimSpace(it.ID) == "" {
		return ErrInvalidItem
	}
	if math.IsNaN(it.Price) || math.IsInf(it.Price, 0) || it.Price < 0 {
		return ErrInvalidItem
	}
	if it.Quantity < 1 {
		return ErrInvalidItem
	}
	return nil
}

// Subtotal is price × quantity.
func (it CartItem) Subtotal() float64 {
	return it.Price * float64(it.Quantity)
}

// Cart is the remote cart document.
//   - docId = user id (Firebase uid)
//   - Items keeps insertion order (not semantically meaningful, but preserved)
//   - ExpiresAt is refreshed on every write for Firestore TTL
type Cart struct {
	// ID is the Firestore docId (= user id).
	ID string `json:"id" firestore:"-"`

	Items []CartItem `json:"items" firestore:"items"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt" firestore:"expiresAt"`
}

// NewCart creates a new cart doc for userID.
// items can be nil (treated as empty). Duplicate ids are dropped (first wins).
func NewCart(userID string, items []CartItem, now time.Time) (*Cart, error) {
	c := &Cart{
		ID:        strings.TrimSpace(userID),
		Items:     Dedupe(items),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(DefaultCartTTL),
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace overwrites the item list (upsert semantics) and refreshes timestamps.
// CreatedAt is kept. On error c is left untouched.
func (c *Cart) Replace(items []CartItem, now time.Time) error {
	if c == nil {
		return ErrInvalidCart
	}
	next := *c
	next.Items = Dedupe(items)
	next.touch(now)
	if err := next.validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Cart) touch(now time.Time) {
	// legacy docs may lack createdAt or carry one from a skewed clock
	if c.CreatedAt.IsZero() || c.CreatedAt.After(now) {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(DefaultCartTTL)
}

func (c *Cart) validate() error {
	if c == nil {
		return ErrInvalidCart
	}
	if strings.TrimSpace(c.ID) == "" {
		return ErrInvalidCart
	}
	if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() || c.ExpiresAt.IsZero() {
		return ErrInvalidCart
	}
	if c.UpdatedAt.Before(c.CreatedAt) || c.ExpiresAt.Before(c.UpdatedAt) {
		return ErrInvalidCart
	}
	for _, it := range c.Items {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ----------------------------
// List helpers
// ----------------------------

// IndexOf returns the position of id in items, or -1.
func IndexOf(items []CartItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether an item with id exists.
func Contains(items []CartItem, id string) bool {
	return IndexOf(items, id) >= 0
}

// Total sums price × quantity over all items.
func Total(items []CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}

// Merge is the union of two lists by id with remote-first precedence:
// remote items keep their position and content, local items whose id is not already
// present are appended in their local order. novel counts the appended local items.
func Merge(remote, local []CartItem) (merged []CartItem, novel int) {
	merged = Clone(remote)
	for _, it := range local {
		if Contains(merged, it.ID) {
			continue
		}
		merged = append(merged, it)
		novel++
	}
	return merged, novel
}

// Dedupe drops items without an id and later duplicates of an id (first wins).
// Order is preserved.
func Dedupe(src []CartItem) []CartItem {
	out := make([]CartItem, 0, len(src))
	seen := make(map[string]struct{}, len(src))
	for _, it := range src {
		if strings.TrimSpace(it.ID) == "" {
			continue
		}
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Sanitize turns a list read from storage into one that can be kept and written back:
// ids are trimmed, a missing quantity becomes 1, items that still fail Validate
// (no id, unusable price) are dropped, then duplicates are removed.
func Sanitize(src []CartItem) []CartItem {
	out := make([]CartItem, 0, len(src))
	for _, it := range src {
		it.ID = strings.TrimSpace(it.ID)
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		if it.Validate() != nil {
			continue
		}
		out = append(out, it)
	}
	return Dedupe(out)
}

// Clone returns a copy that never aliases src.
func Clone(src []CartItem) []CartItem {
	out := make([]CartItem, len(src))
	copy(out, src)
	return out
}
