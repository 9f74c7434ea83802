// internal/application/usecase/fakes_test.go
package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	cartdom "storefront/internal/domain/cart"
)

var errRemoteDown = errors.New("remote down")

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// stepClock advances by step on every call.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// fakeRemote is an in-memory RemoteStore with failure injection.
type fakeRemote struct {
	mu    sync.Mutex
	carts   map[string][]cartdom.CartItem
	created map[string]time.Time

	getFails  int   // number of GetByUserID calls that fail before succeeding (-1 = always)
	deleteErr error // returned by DeleteByUserID
	upsertErr error

	gets    int
	upserts []cartdom.Cart
	deletes []string

	// when set, GetByUserID for that user blocks until release is closed
	blockUser string
	release   chan struct{}
	returned  chan struct{}

	// when set, Upsert blocks until upsertGate is closed or ctx is done
	upsertGate    chan struct{}
	upsertCalls   int
	upsertAborted int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{carts: map[string][]cartdom.CartItem{}, created: map[string]time.Time{}}
}

func (f *fakeRemote) put(userID string, items ...cartdom.CartItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[userID] = items
}

func (f *fakeRemote) GetByUserID(ctx context.Context, userID string) (*cartdom.Cart, error) {
	f.mu.Lock()
	f.gets++
	block := f.blockUser == userID && f.release != nil
	release, returned := f.release, f.returned
	f.mu.Unlock()

	if block {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		defer close(returned)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getFails != 0 {
		if f.getFails > 0 {
			f.getFails--
		}
		return nil, errRemoteDown
	}
	items, ok := f.carts[userID]
	if !ok {
		return nil, nil
	}
	return &cartdom.Cart{ID: userID, Items: cartdom.Clone(items), CreatedAt: f.created[userID]}, nil
}

func (f *fakeRemote) Upsert(ctx context.Context, c *cartdom.Cart) error {
	f.mu.Lock()
	f.upsertCalls++
	gate := f.upsertGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			f.mu.Lock()
			f.upsertAborted++
			f.mu.Unlock()
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, *c)
	f.carts[c.ID] = cartdom.Clone(c.Items)
	f.created[c.ID] = c.CreatedAt
	return nil
}

func (f *fakeRemote) DeleteByUserID(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, userID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.carts, userID)
	delete(f.created, userID)
	return nil
}

func (f *fakeRemote) stored(userID string) ([]cartdom.CartItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.carts[userID]
	return cartdom.Clone(items), ok
}

func (f *fakeRemote) lastUpsert() (cartdom.Cart, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.upserts) == 0 {
		return cartdom.Cart{}, false
	}
	return f.upserts[len(f.upserts)-1], true
}

// waitUpsertCalls waits until Upsert has been entered at least n times.
func (f *fakeRemote) waitUpsertCalls(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		got := f.upsertCalls
		f.mu.Unlock()
		if got >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("upsert calls = %d, want >= %d", got, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeRemote) counts() (gets, upserts, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, len(f.upserts), len(f.deletes)
}

// recorder collects notifications in delivery order.
type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

func (r *recorder) titles() []string {
	var out []string
	for _, n := range r.all() {
		out = append(out, n.Title)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}

// ------------------------------------------------------------
// helpers
// ------------------------------------------------------------

func testConfig() CartStateConfig {
	return CartStateConfig{
		RemoteTimeout: time.Second,
		LoadRetries:   2,
		RetryMin:      time.Millisecond,
		RetryMax:      2 * time.Millisecond,
		CloseGrace:    50 * time.Millisecond,
		Clock:         fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func newTestManager(t *testing.T, remote cartdom.RemoteStore, local cartdom.LocalStore) (*CartStateManager, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := NewCartStateManager(remote, local, rec, testConfig())
	t.Cleanup(func() { _ = m.Close() })
	return m, rec
}

// barrier waits until every event posted so far has committed and flushed.
func barrier(t *testing.T, m *CartStateManager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.do(ctx, func() {}); err != nil {
		t.Fatalf("barrier: %v", err)
	}
}

func waitStatus(t *testing.T, m *CartStateManager, want CartStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.Status() != want {
		if time.Now().After(deadline) {
			t.Fatalf("status = %s, want %s", m.Status(), want)
		}
		time.Sleep(2 * time.Millisecond)
	}
	barrier(t, m)
}

func setIdentity(t *testing.T, m *CartStateManager, id cartdom.Identity) {
	t.Helper()
	if err := m.OnIdentityChange(context.Background(), id); err != nil {
		t.Fatalf("OnIdentityChange(%s): %v", id, err)
	}
}

func settle(t *testing.T, m *CartStateManager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Settle(ctx); err != nil {
		t.Fatalf("Settle: %v", err)
	}
}

func mustAdd(t *testing.T, m *CartStateManager, it cartdom.CartItem) {
	t.Helper()
	if err := m.AddToCart(context.Background(), it); err != nil {
		t.Fatalf("AddToCart(%s): %v", it.ID, err)
	}
}

func seedLocal(t *testing.T, local cartdom.LocalStore, items ...cartdom.CartItem) {
	t.Helper()
	raw, err := cartdom.EncodeItems(items)
	if err != nil {
		t.Fatalf("EncodeItems: %v", err)
	}
	if err := local.Set(context.Background(), cartdom.LocalCartKey, raw); err != nil {
		t.Fatalf("seed local: %v", err)
	}
}

func readLocalItems(t *testing.T, local cartdom.LocalStore) ([]cartdom.CartItem, bool) {
	t.Helper()
	raw, ok, err := local.Get(context.Background(), cartdom.LocalCartKey)
	if err != nil {
		t.Fatalf("local get: %v", err)
	}
	if !ok {
		return nil, false
	}
	items, err := cartdom.DecodeItems(raw)
	if err != nil {
		t.Fatalf("local decode: %v", err)
	}
	return items, true
}

func it(id string, price float64, qty int) cartdom.CartItem {
	return cartdom.CartItem{ID: id, Title: "Item " + id, Price: price, Quantity: qty}
}
