// internal/adapters/in/http/mall/handler/cart_sessions.go
package mallHandler

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	identity "storefront/internal/adapters/in/identity"
	notify "storefront/internal/adapters/out/notify"
	usecase "storefront/internal/application/usecase"
	cartdom "storefront/internal/domain/cart"
)

const defaultSessionIdleTTL = 30 * time.Minute

// LocalStoreFactory opens the device-local store for deviceID.
type LocalStoreFactory func(ctx context.Context, deviceID string) (cartdom.LocalStore, error)

// SessionDeps are shared by every session.
type SessionDeps struct {
	Remote      cartdom.RemoteStore
	LocalStores LocalStoreFactory
	Verifier    identity.TokenVerifier
	StateConfig usecase.CartStateConfig
	IdleTTL     time.Duration
}

// CartSession is one device's cart: a manager, its identity source and its notification feed.
type CartSession struct {
	DeviceID string
	Manager  *usecase.CartStateManager
	Identity *identity.FirebaseSource
	Feed     *notify.FeedNotifier

	stop      context.CancelFunc
	watchDone chan struct{}
	closeOnce sync.Once
}

func (s *CartSession) close() {
	s.closeOnce.Do(func() {
		s.stop()
		s.Identity.Close()
		<-s.watchDone
		_ = s.Manager.Close()
		log.Printf("[cart_sessions] closed device=%s", s.DeviceID)
	})
}

// CartSessions keeps live sessions in a TTL cache; an idle session is evicted and closed.
type CartSessions struct {
	deps  SessionDeps
	cache *ttlcache.Cache[string, *CartSession]
	mu    sync.Mutex
}

func NewCartSessions(deps SessionDeps) (*CartSessions, error) {
	if deps.LocalStores == nil {
		return nil, errors.New("cart_sessions: LocalStores factory is nil")
	}
	ttl := deps.IdleTTL
	if ttl <= 0 {
		ttl = defaultSessionIdleTTL
	}
	cache := ttlcache.New[string, *CartSession](
		ttlcache.WithTTL[string, *CartSession](ttl),
	)
	cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *CartSession]) {
		log.Printf("[cart_sessions] evict device=%s reason=%d", item.Key(), reason)
		item.Value().close()
	})
	go cache.Start()

	return &CartSessions{deps: deps, cache: cache}, nil
}

// Get returns the session for deviceID, creating it on first use.
// A new session starts anonymous and loads the device-local cart.
func (s *CartSessions) Get(ctx context.Context, deviceID string) (*CartSession, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, errors.New("cart_sessions: deviceID is empty")
	}

	if item := s.cache.Get(deviceID); item != nil {
		return item.Value(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if item := s.cache.Get(deviceID); item != nil {
		return item.Value(), nil
	}

	local, err := s.deps.LocalStores(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	feed := notify.NewFeedNotifier(0)
	mgr := usecase.NewCartStateManager(
		s.deps.Remote,
		local,
		notify.Fanout{feed, notify.LogNotifier{Prefix: " device=" + deviceID}},
		s.deps.StateConfig,
	)
	src := identity.NewFirebaseSource(s.deps.Verifier)

	watchCtx, stop := context.WithCancel(context.Background())
	sess := &CartSession{
		DeviceID:  deviceID,
		Manager:   mgr,
		Identity:  src,
		Feed:      feed,
		stop:      stop,
		watchDone: make(chan struct{}),
	}
	go func() {
		defer close(sess.watchDone)
		if err := mgr.Watch(watchCtx, src.Changes()); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[cart_sessions] watch ended device=%s err=%v", deviceID, err)
		}
	}()
	if err := src.SignOut(); err != nil {
		sess.close()
		return nil, err
	}

	// an expired entry that was not swept yet is closed here
	s.cache.Delete(deviceID)
	s.cache.Set(deviceID, sess, ttlcache.DefaultTTL)
	log.Printf("[cart_sessions] open device=%s", deviceID)
	return sess, nil
}

// Len is the number of live sessions.
func (s *CartSessions) Len() int {
	return s.cache.Len()
}

// Close evicts and closes every session. It returns once their queued remote writes
// have drained.
func (s *CartSessions) Close() error {
	s.cache.Stop()
	items := s.cache.Items()
	s.cache.DeleteAll()
	for _, item := range items {
		item.Value().close()
	}
	return nil
}
