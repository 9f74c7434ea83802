// internal/domain/cart/repository_port.go
package cart

import "context"

// RemoteStore is the persistence port for a user's cart document.
//
// Storage (Firestore):
// - collection: carts
// - docId: user id (Firebase uid)
// - fields: items[], createdAt, updatedAt, expiresAt
//
// Not-found policy: GetByUserID returns (nil, nil) when the doc does not exist.
// Any non-nil error means the read itself failed and must not be treated as "no cart".
type RemoteStore interface {
	GetByUserID(ctx context.Context, userID string) (*Cart, error)

	// Upsert replaces the whole document for c.ID.
	Upsert(ctx context.Context, c *Cart) error

	// DeleteByUserID deletes the document. Failures must be returned.
	DeleteByUserID(ctx context.Context, userID string) error
}

// LocalStore is a device-local string key/value store (browser localStorage semantics).
// Get returns ok=false when the key is absent.
type LocalStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
