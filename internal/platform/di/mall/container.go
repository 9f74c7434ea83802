// internal/platform/di/mall/container.go
package mall

import (
	"context"
	"errors"
	"log"

	identity "storefront/internal/adapters/in/identity"
	mallhandler "storefront/internal/adapters/in/http/mall/handler"
	outfs "storefront/internal/adapters/out/firestore"
	usecase "storefront/internal/application/usecase"
	shared "storefront/internal/platform/di/shared"
)

// Container wires the storefront cart: remote repository, per-device local stores and
// the session registry the handlers serve from.
type Container struct {
	Infra *shared.Infra

	CartRepo *outfs.CartRepositoryFS
	Sessions *mallhandler.CartSessions
}

// NewContainer builds the container on top of already-initialized infra.
func NewContainer(ctx context.Context, infra *shared.Infra) (*Container, error) {
	if infra == nil || infra.Config == nil {
		return nil, errors.New("mall.container: infra is nil")
	}
	if infra.Firestore == nil {
		return nil, errors.New("mall.container: firestore client is nil")
	}
	cfg := infra.Config

	repo := outfs.NewCartRepositoryFS(infra.Firestore, cfg.CartsCollection)
	log.Printf("[mall.container] cart repository collection=%s", repo.Collection)

	locals, err := newLocalStoreFactory(cfg, infra.Redis)
	if err != nil {
		return nil, err
	}

	var verifier identity.TokenVerifier
	if infra.FirebaseAuth != nil {
		verifier = infra.FirebaseAuth
	} else {
		log.Printf("[mall.container] WARN: FirebaseAuth is nil (every session stays anonymous)")
	}

	sessions, err := mallhandler.NewCartSessions(mallhandler.SessionDeps{
		Remote:      repo,
		LocalStores: locals,
		Verifier:    verifier,
		StateConfig: usecase.CartStateConfig{
			RemoteTimeout: cfg.RemoteTimeout,
			LoadRetries:   cfg.RemoteLoadRetries,
		},
		IdleTTL: cfg.SessionIdleTTL,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		Infra:    infra,
		CartRepo: repo,
		Sessions: sessions,
	}, nil
}

// Close closes every live session (draining their queued remote writes).
// Infra is owned by the caller.
func (c *Container) Close() error {
	if c == nil || c.Sessions == nil {
		return nil
	}
	return c.Sessions.Close()
}
