// internal/application/usecase/cart_state_manager.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	cartdom "storefront/internal/domain/cart"
)

var (
	ErrManagerClosed = errors.New("cart_state: manager is closed")
)

// CartStatus is the load gate of the state machine.
type CartStatus int

const (
	// StatusIdle: no identity has been observed yet.
	StatusIdle CartStatus = iota
	// StatusLoading: identity is resolving or the load routine is in flight. Sync is suppressed.
	StatusLoading
	// StatusReady: state was loaded for the current identity. Sync follows the identity.
	StatusReady
	// StatusDegraded: the remote cart could not be read. Sync goes to the local store
	// so the next successful load can merge it back.
	StatusDegraded
)

func (s CartStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("CartStatus(%d)", int(s))
	}
}

// CartStateConfig tunes remote I/O. Zero values fall back to defaults.
type CartStateConfig struct {
	// RemoteTimeout bounds each remote call (0 = no timeout).
	RemoteTimeout time.Duration
	// LoadRetries is the number of extra attempts when the remote read fails.
	LoadRetries int
	RetryMin    time.Duration
	RetryMax    time.Duration
	// CloseGrace is how long Close waits for queued remote writes before cancelling them.
	CloseGrace time.Duration

	Clock Clock
}

const (
	defaultRetryMin = 200 * time.Millisecond
	defaultRetryMax = 5 * time.Second
)

// CartSnapshot is a consistent view of the state after the last committed event.
type CartSnapshot struct {
	Items    []cartdom.CartItem
	Status   CartStatus
	Identity cartdom.Identity
}

type cartEvent struct {
	fn    func()
	reply chan struct{}
}

// CartStateManager owns the cart of one client session.
//
// All state is owned by a single dispatcher goroutine. Public calls are posted as events
// and run one at a time; notifications raised by an event are delivered only after the
// event has committed. Remote reads run on a load goroutine whose result is applied only
// if no newer identity arrived meanwhile; remote writes go through one serialized writer.
type CartStateManager struct {
	local    cartdom.LocalStore
	remote   cartdom.RemoteStore
	notifier Notifier
	cfg      CartStateConfig

	writer *remoteWriter

	events  chan cartEvent
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	// ctx is cancelled on Close; load goroutines run under it.
	ctx    context.Context
	cancel context.CancelFunc

	snap       atomic.Pointer[CartSnapshot]
	generation atomic.Uint64

	// dispatcher-owned
	items       []cartdom.CartItem
	status      CartStatus
	identity    cartdom.Identity
	hasIdentity bool
	pending     []Notification
}

// NewCartStateManager starts the dispatcher. remote may be nil for anonymous-only sessions.
// The caller owns the manager and must Close it when the session ends.
func NewCartStateManager(
	remote cartdom.RemoteStore,
	local cartdom.LocalStore,
	notifier Notifier,
	cfg CartStateConfig,
) *CartStateManager {
	if remote == nil {
		remote = nilRemote{}
	}
	if local == nil {
		local = nilLocal{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.LoadRetries < 0 {
		cfg.LoadRetries = 0
	}
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = defaultRetryMin
	}
	if cfg.RetryMax < cfg.RetryMin {
		cfg.RetryMax = defaultRetryMax
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &CartStateManager{
		local:    local,
		remote:   remote,
		notifier: notifier,
		cfg:      cfg,
		writer:   newRemoteWriter(remote, cfg.Clock, cfg.RemoteTimeout, cfg.CloseGrace),
		events:   make(chan cartEvent),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		items:    []cartdom.CartItem{},
		status:   StatusIdle,
	}
	m.publish()
	go m.run()
	return m
}

// Close stops the dispatcher, drains queued remote writes and releases the session.
func (m *CartStateManager) Close() error {
	m.once.Do(func() {
		m.cancel()
		close(m.done)
		<-m.stopped
		m.writer.Close()
	})
	return nil
}

func (m *CartStateManager) run() {
	defer close(m.stopped)
	for {
		select {
		case ev := <-m.events:
			ev.fn()
			m.publish()
			m.flush()
			if ev.reply != nil {
				close(ev.reply)
			}
		case <-m.done:
			return
		}
	}
}

// do runs fn on the dispatcher and waits until it has committed and flushed.
func (m *CartStateManager) do(ctx context.Context, fn func()) error {
	ev := cartEvent{fn: fn, reply: make(chan struct{})}
	select {
	case m.events <- ev:
	case <-m.done:
		return ErrManagerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ev.reply:
		return nil
	case <-m.stopped:
		return ErrManagerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post runs fn on the dispatcher without waiting. Dropped after Close.
func (m *CartStateManager) post(fn func()) {
	select {
	case m.events <- cartEvent{fn: fn}:
	case <-m.done:
	}
}

func (m *CartStateManager) publish() {
	m.snap.Store(&CartSnapshot{
		Items:    cartdom.Clone(m.items),
		Status:   m.status,
		Identity: m.identity,
	})
}

// queue defers n until the current event has committed.
func (m *CartStateManager) queue(n Notification) {
	m.pending = append(m.pending, n)
}

func (m *CartStateManager) flush() {
	for _, n := range m.pending {
		m.notifier.Notify(n)
	}
	m.pending = m.pending[:0]
}

// ------------------------------------------------------------
// Reads (served from the last committed snapshot)
// ------------------------------------------------------------

// Snapshot returns the state as of the last committed event.
func (m *CartStateManager) Snapshot() CartSnapshot {
	s := m.snap.Load()
	return CartSnapshot{Items: cartdom.Clone(s.Items), Status: s.Status, Identity: s.Identity}
}

// Items returns a copy of the current list in insertion order.
func (m *CartStateManager) Items() []cartdom.CartItem {
	return cartdom.Clone(m.snap.Load().Items)
}

// Loading is true until the load for the current identity has completed.
func (m *CartStateManager) Loading() bool {
	s := m.snap.Load().Status
	return s == StatusIdle || s == StatusLoading
}

// Status returns the state machine status.
func (m *CartStateManager) Status() CartStatus {
	return m.snap.Load().Status
}

// Identity returns the identity the state currently belongs to.
func (m *CartStateManager) Identity() cartdom.Identity {
	return m.snap.Load().Identity
}

// GetCartTotal is Σ price × quantity.
func (m *CartStateManager) GetCartTotal() float64 {
	return cartdom.Total(m.snap.Load().Items)
}

// IsItemInCart reports whether an item with id is in the cart.
func (m *CartStateManager) IsItemInCart(id string) bool {
	return cartdom.Contains(m.snap.Load().Items, strings.TrimSpace(id))
}

// ------------------------------------------------------------
// Mutations
// ------------------------------------------------------------

// AddToCart appends item unless its id is already present.
// Existence is checked on the dispatcher against the latest state.
func (m *CartStateManager) AddToCart(ctx context.Context, item cartdom.CartItem) error {
	item.ID = strings.TrimSpace(item.ID)
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: id=%q price=%v quantity=%d", err, item.ID, item.Price, item.Quantity)
	}
	return m.do(ctx, func() {
		if cartdom.Contains(m.items, item.ID) {
			m.queue(noteAlreadyInCart(item.Title))
			return
		}
		next := make([]cartdom.CartItem, 0, len(m.items)+1)
		next = append(next, m.items...)
		m.items = append(next, item)
		m.queue(noteAdded(item.Title))
		m.onCartChange()
	})
}

// RemoveFromCart removes the item with id. Absent ids are a silent no-op.
func (m *CartStateManager) RemoveFromCart(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return m.do(ctx, func() {
		idx := cartdom.IndexOf(m.items, id)
		if idx < 0 {
			return
		}
		removed := m.items[idx]
		next := make([]cartdom.CartItem, 0, len(m.items)-1)
		next = append(next, m.items[:idx]...)
		m.items = append(next, m.items[idx+1:]...)
		m.queue(noteRemoved(removed.Title))
		m.onCartChange()
	})
}

// ClearCart empties the cart immediately and, for a signed-in user, deletes the remote
// document. The in-memory state is never re-populated: if the delete fails, the empty-list
// sync that the clear already queued is the fallback. The remote outcome is reported
// through the notifier; the returned error only covers closed managers and ctx.
func (m *CartStateManager) ClearCart(ctx context.Context) error {
	var (
		count int
		id    cartdom.Identity
	)
	err := m.do(ctx, func() {
		count = len(m.items)
		id = m.identity
		m.items = []cartdom.CartItem{}
		m.onCartChange()
		if !id.Resolving && id.UserID == "" && count > 0 {
			m.queue(noteClearedLocal)
		}
	})
	if err != nil {
		return err
	}
	if !id.Authenticated() {
		return nil
	}

	derr := m.writer.Delete(ctx, id.UserID)
	if derr != nil {
		log.Printf("[cart_state] WARN: remote delete failed userId=%q err=%v", id.UserID, derr)
		if errors.Is(derr, ErrManagerClosed) {
			return derr
		}
	}
	if count == 0 {
		return nil
	}
	note := noteClearedServer
	if derr != nil {
		note = noteClearIssue
	}
	return m.do(ctx, func() { m.queue(note) })
}

// Settle waits until every remote write queued so far has been attempted.
func (m *CartStateManager) Settle(ctx context.Context) error {
	return m.writer.Settle(ctx)
}

// onCartChange persists the committed list. Suppressed while loading.
func (m *CartStateManager) onCartChange() {
	switch m.status {
	case StatusReady:
		if m.identity.Authenticated() {
			m.writer.Put(m.identity.UserID, m.items)
			return
		}
		m.writeLocal(m.items)
	case StatusDegraded:
		m.writeLocal(m.items)
	default:
		// idle / loading: never write a transient state over good data
	}
}

func (m *CartStateManager) writeLocal(items []cartdom.CartItem) {
	raw, err := cartdom.EncodeItems(items)
	if err != nil {
		log.Printf("[cart_state] WARN: encode local cart failed: %v", err)
		return
	}
	if err := m.local.Set(m.ctx, cartdom.LocalCartKey, raw); err != nil {
		log.Printf("[cart_state] WARN: local store write failed: %v", err)
	}
}

func (m *CartStateManager) removeLocal() {
	if err := m.local.Remove(m.ctx, cartdom.LocalCartKey); err != nil {
		log.Printf("[cart_state] WARN: local store remove failed: %v", err)
	}
}

// ------------------------------------------------------------
// Identity resolution & load
// ------------------------------------------------------------

// Watch feeds identity changes into OnIdentityChange until ctx is done, ch is closed,
// or the manager is closed.
func (m *CartStateManager) Watch(ctx context.Context, ch <-chan cartdom.Identity) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return ErrManagerClosed
		case id, ok := <-ch:
			if !ok {
				return nil
			}
			if err := m.OnIdentityChange(ctx, id); err != nil {
				return err
			}
		}
	}
}

// OnIdentityChange starts the load for a new identity.
// Delivering the identity the state already belongs to is a no-op, so the load runs
// exactly once per transition.
func (m *CartStateManager) OnIdentityChange(ctx context.Context, id cartdom.Identity) error {
	id.UserID = strings.TrimSpace(id.UserID)
	return m.do(ctx, func() {
		if m.hasIdentity && id == m.identity {
			return
		}
		m.hasIdentity = true
		m.beginLoad(id)
	})
}

// Reload re-runs the load for the current identity (e.g. to leave degraded mode).
func (m *CartStateManager) Reload(ctx context.Context) error {
	return m.do(ctx, func() {
		if !m.hasIdentity {
			return
		}
		m.beginLoad(m.identity)
	})
}

func (m *CartStateManager) beginLoad(id cartdom.Identity) {
	m.identity = id
	m.status = StatusLoading
	gen := m.generation.Add(1)

	if id.Resolving {
		log.Printf("[cart_state] identity resolving gen=%d (load deferred)", gen)
		return
	}
	log.Printf("[cart_state] load start gen=%d identity=%s", gen, id)
	go func() {
		plan := m.buildLoadPlan(gen, id)
		m.post(func() { m.applyLoad(gen, id, plan) })
	}()
}

type loadPlan struct {
	items         []cartdom.CartItem
	doc           *cartdom.Cart
	persistRemote bool
	clearLocal    bool
	degraded      bool
	note          *Notification
}

// buildLoadPlan reads both stores and decides the outcome. It has no side effects:
// writes happen in applyLoad once the generation has been checked.
func (m *CartStateManager) buildLoadPlan(gen uint64, id cartdom.Identity) loadPlan {
	local, corrupt := m.readLocal()
	plan := loadPlan{clearLocal: corrupt}

	if !id.Authenticated() {
		plan.items = local
		return plan
	}

	remote, err := m.fetchRemote(gen, id.UserID)
	if err != nil {
		log.Printf("[cart_state] WARN: remote cart unavailable userId=%q err=%v (degraded, keeping local)", id.UserID, err)
		plan.items = local
		plan.degraded = true
		n := noteRemoteUnavailable
		plan.note = &n
		return plan
	}

	var remoteItems []cartdom.CartItem
	if remote != nil {
		remoteItems = cartdom.Sanitize(remote.Items)
		plan.doc = remote
	}

	switch {
	case remote != nil && len(local) > 0:
		merged, novel := cartdom.Merge(remoteItems, local)
		plan.items = merged
		plan.persistRemote = true
		plan.clearLocal = true
		if novel > 0 {
			n := noteMerged
			plan.note = &n
		}
	case remote != nil:
		plan.items = remoteItems
	case len(local) > 0:
		plan.items = local
		plan.persistRemote = true
		plan.clearLocal = true
		n := noteSavedToAccount
		plan.note = &n
	default:
		plan.items = []cartdom.CartItem{}
	}
	return plan
}

func (m *CartStateManager) applyLoad(gen uint64, id cartdom.Identity, plan loadPlan) {
	if gen != m.generation.Load() {
		log.Printf("[cart_state] drop stale load gen=%d current=%d identity=%s", gen, m.generation.Load(), id)
		return
	}

	items := plan.items
	if items == nil {
		items = []cartdom.CartItem{}
	}
	m.items = cartdom.Clone(items)

	if plan.doc != nil {
		m.writer.Seed(id.UserID, plan.doc)
	}
	if plan.persistRemote {
		m.writer.Put(id.UserID, m.items)
	}
	if plan.clearLocal {
		m.removeLocal()
	}
	if plan.degraded {
		m.status = StatusDegraded
	} else {
		m.status = StatusReady
	}
	if plan.note != nil {
		m.queue(*plan.note)
	}
	log.Printf("[cart_state] load done gen=%d identity=%s status=%s items=%d", gen, id, m.status, len(m.items))
}

// readLocal returns the anonymous cart. corrupt=true means the stored value could not be
// parsed and should be discarded.
func (m *CartStateManager) readLocal() (items []cartdom.CartItem, corrupt bool) {
	raw, ok, err := m.local.Get(m.ctx, cartdom.LocalCartKey)
	if err != nil {
		log.Printf("[cart_state] WARN: local store read failed: %v (treating as empty)", err)
		return []cartdom.CartItem{}, false
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []cartdom.CartItem{}, false
	}
	items, err = cartdom.DecodeItems(raw)
	if err != nil {
		log.Printf("[cart_state] failed to parse anonymous cart, discarding: %v", err)
		return []cartdom.CartItem{}, true
	}
	return items, false
}

// fetchRemote reads the remote cart, retrying read failures with backoff.
// (nil, nil) means the user has no cart.
func (m *CartStateManager) fetchRemote(gen uint64, userID string) (*cartdom.Cart, error) {
	b := &backoff.Backoff{
		Min:    m.cfg.RetryMin,
		Max:    m.cfg.RetryMax,
		Factor: 2,
		Jitter: true,
	}
	for attempt := 0; ; attempt++ {
		c, err := m.getRemote(userID)
		if err == nil {
			return c, nil
		}
		if attempt >= m.cfg.LoadRetries {
			return nil, err
		}
		if gen != m.generation.Load() {
			return nil, fmt.Errorf("superseded by gen=%d: %w", m.generation.Load(), err)
		}
		d := b.Duration()
		log.Printf("[cart_state] remote read failed userId=%q attempt=%d retryIn=%s err=%v", userID, attempt+1, d, err)
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-m.ctx.Done():
			t.Stop()
			return nil, err
		}
	}
}

func (m *CartStateManager) getRemote(userID string) (*cartdom.Cart, error) {
	ctx := m.ctx
	if m.cfg.RemoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.RemoteTimeout)
		defer cancel()
	}
	return m.remote.GetByUserID(ctx, userID)
}
