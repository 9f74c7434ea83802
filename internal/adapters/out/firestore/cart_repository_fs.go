// internal/adapters/out/firestore/cart_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	cartdom "storefront/internal/domain/cart"
)

const defaultCartsCollection = "carts"

// CartRepositoryFS implements cart.RemoteStore using Firestore.
//
// Collection design:
// - collection: carts
// - docId: Firebase uid (docId is the source of truth)
// - fields: items[] {id,title,price,quantity}, createdAt, updatedAt, expiresAt
//
// TTL:
// - Configure Firestore TTL on "expiresAt".
type CartRepositoryFS struct {
	Client     *firestore.Client
	Collection string

	tracer trace.Tracer
}

func NewCartRepositoryFS(client *firestore.Client, collection string) *CartRepositoryFS {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = defaultCartsCollection
	}
	return &CartRepositoryFS{
		Client:     client,
		Collection: collection,
		tracer:     otel.Tracer("storefront/cart_repository_fs"),
	}
}

func (r *CartRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection(r.Collection)
}

func (r *CartRepositoryFS) check(userID string) (string, error) {
	if r == nil || r.Client == nil {
		return "", errors.New("cart_repository_fs: firestore client is nil")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return "", errors.New("cart_repository_fs: userID is empty")
	}
	return uid, nil
}

func (r *CartRepositoryFS) span(ctx context.Context, op, uid string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "cart_repository_fs."+op, trace.WithAttributes(
		attribute.String("db.system", "firestore"),
		attribute.String("db.collection", r.Collection),
		attribute.String("cart.user_id", uid),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

// GetByUserID returns (nil, nil) if not found (nil policy).
func (r *CartRepositoryFS) GetByUserID(ctx context.Context, userID string) (_ *cartdom.Cart, err error) {
	uid, err := r.check(userID)
	if err != nil {
		return nil, err
	}
	ctx, span := r.span(ctx, "GetByUserID", uid)
	defer func() { endSpan(span, err) }()

	snap, err := r.col().Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			span.SetAttributes(attribute.Bool("cart.found", false))
			return nil, nil
		}
		return nil, err
	}

	doc, err := cartDocFromSnapshot(snap)
	if err != nil {
		return nil, err
	}
	c := doc.toDomain()
	// docId が source of truth
	c.ID = uid
	span.SetAttributes(attribute.Bool("cart.found", true), attribute.Int("cart.items", len(c.Items)))
	return c, nil
}

// Upsert overwrites the full doc for c.ID (simple & predictable).
func (r *CartRepositoryFS) Upsert(ctx context.Context, c *cartdom.Cart) (err error) {
	if c == nil {
		return errors.New("cart_repository_fs: cart is nil")
	}
	uid, err := r.check(c.ID)
	if err != nil {
		return err
	}
	ctx, span := r.span(ctx, "Upsert", uid)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("cart.items", len(c.Items)))

	_, err = r.col().Doc(uid).Set(ctx, cartDocFromDomain(c))
	return err
}

// DeleteByUserID deletes the doc. Deleting a missing doc succeeds (Firestore semantics).
func (r *CartRepositoryFS) DeleteByUserID(ctx context.Context, userID string) (err error) {
	uid, err := r.check(userID)
	if err != nil {
		return err
	}
	ctx, span := r.span(ctx, "DeleteByUserID", uid)
	defer func() { endSpan(span, err) }()

	_, err = r.col().Doc(uid).Delete(ctx)
	return err
}

// -----------------------------------------
// Firestore DTO
// -----------------------------------------

// NOTE: domain struct を直接 firestore DTO にしない（後方互換 & 柔軟にするため）
type cartDoc struct {
	Items     []cartItemDoc `firestore:"items"`
	CreatedAt time.Time     `firestore:"createdAt"`
	UpdatedAt time.Time     `firestore:"updatedAt"`
	ExpiresAt time.Time     `firestore:"expiresAt"`
}

type cartItemDoc struct {
	ID       string  `firestore:"id"`
	Title    string  `firestore:"title"`
	Price    float64 `firestore:"price"`
	Quantity int     `firestore:"quantity"`
}

// cartDocFromSnapshot parses document data by hand so that a doc written by an older
// client (numbers stored as int64 or float64, missing fields) never fails the whole read.
// Entries without an id are skipped; toDomain sanitizes the rest.
func cartDocFromSnapshot(snap *firestore.DocumentSnapshot) (cartDoc, error) {
	if snap == nil {
		return cartDoc{}, errors.New("cart_repository_fs: snapshot is nil")
	}

	out := cartDoc{Items: []cartItemDoc{}}
	raw := snap.Data()
	if raw == nil {
		return out, nil
	}

	if t, ok := raw["createdAt"].(time.Time); ok {
		out.CreatedAt = t
	}
	if t, ok := raw["updatedAt"].(time.Time); ok {
		out.UpdatedAt = t
	}
	if t, ok := raw["expiresAt"].(time.Time); ok {
		out.ExpiresAt = t
	}

	list, _ := raw["items"].([]any)
	for _, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		id := strings.TrimSpace(asString(m["id"]))
		if id == "" {
			continue
		}
		out.Items = append(out.Items, cartItemDoc{
			ID:       id,
			Title:    asString(m["title"]),
			Price:    asFloat(m["price"]),
			Quantity: asInt(m["quantity"]),
		})
	}
	return out, nil
}

func cartDocFromDomain(c *cartdom.Cart) cartDoc {
	items := make([]cartItemDoc, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartItemDoc{
			ID:       it.ID,
			Title:    it.Title,
			Price:    it.Price,
			Quantity: it.Quantity,
		})
	}
	return cartDoc{
		Items:     items,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		ExpiresAt: c.ExpiresAt,
	}
}

func (d cartDoc) toDomain() *cartdom.Cart {
	items := make([]cartdom.CartItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, cartdom.CartItem{
			ID:       it.ID,
			Title:    it.Title,
			Price:    it.Price,
			Quantity: it.Quantity,
		})
	}
	return &cartdom.Cart{
		// ID は呼び出し元（docId）で必ず埋める
		Items:     cartdom.Sanitize(items),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		ExpiresAt: d.ExpiresAt,
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
