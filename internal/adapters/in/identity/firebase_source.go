// internal/adapters/in/identity/firebase_source.go
package identity

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	fbauth "firebase.google.com/go/v4/auth"

	cartdom "storefront/internal/domain/cart"
)

// TokenVerifier is the part of *auth.Client the source needs.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

var ErrSourceClosed = errors.New("identity: source is closed")

// FirebaseSource publishes the identity of one session.
//
// Resolve publishes Resolving first, then the verified uid (or anonymous when the token
// does not verify). Consumers read Changes(); only the latest value matters, so a slow
// consumer sees the newest identity rather than every intermediate one.
type FirebaseSource struct {
	verifier TokenVerifier

	mu      sync.Mutex
	current cartdom.Identity
	closed  bool
	ch      chan cartdom.Identity
}

func NewFirebaseSource(verifier TokenVerifier) *FirebaseSource {
	return &FirebaseSource{
		verifier: verifier,
		current:  cartdom.ResolvingIdentity,
		ch:       make(chan cartdom.Identity, 1),
	}
}

// Changes is closed by Close.
func (s *FirebaseSource) Changes() <-chan cartdom.Identity { return s.ch }

// Current returns the last published identity.
func (s *FirebaseSource) Current() cartdom.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *FirebaseSource) publish(id cartdom.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	s.current = id
	// keep only the newest value in the buffer
	select {
	case <-s.ch:
	default:
	}
	s.ch <- id
	return nil
}

// Resolve verifies idToken and publishes the result. An empty token means anonymous.
// It returns the settled identity and the verification error, if any.
func (s *FirebaseSource) Resolve(ctx context.Context, idToken string) (cartdom.Identity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return cartdom.Anonymous, s.publish(cartdom.Anonymous)
	}
	if s.verifier == nil {
		_ = s.publish(cartdom.Anonymous)
		return cartdom.Anonymous, errors.New("identity: firebase auth is not configured")
	}
	if err := s.publish(cartdom.ResolvingIdentity); err != nil {
		return cartdom.Identity{}, err
	}

	token, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		log.Printf("[identity] token verification failed (len=%d): %v", len(idToken), err)
		_ = s.publish(cartdom.Anonymous)
		return cartdom.Anonymous, err
	}
	uid := strings.TrimSpace(token.UID)
	if uid == "" {
		_ = s.publish(cartdom.Anonymous)
		return cartdom.Anonymous, errors.New("identity: invalid uid in token")
	}

	id := cartdom.Identity{UserID: uid}
	return id, s.publish(id)
}

// SignOut publishes anonymous.
func (s *FirebaseSource) SignOut() error {
	return s.publish(cartdom.Anonymous)
}

func (s *FirebaseSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
