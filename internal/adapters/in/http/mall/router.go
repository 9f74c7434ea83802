// internal/adapters/in/http/mall/router.go
package mall

import (
	"log"
	"net/http"
)

// Deps is the storefront handler set.
type Deps struct {
	Cart          http.Handler
	Session       http.Handler
	Notifications http.Handler
}

// handleSafe registers pattern with h.
// If h is nil, it logs and registers NotFoundHandler instead (so Cloud Run won't crash).
func handleSafe(mux *http.ServeMux, pattern string, h http.Handler, name string) {
	if h == nil {
		log.Printf("[mall.router] WARN: nil handler: %s pattern=%s (registering NotFoundHandler)", name, pattern)
		h = http.NotFoundHandler()
	}
	mux.Handle(pattern, h)
}

// Register registers storefront routes onto mux.
func Register(mux *http.ServeMux, deps Deps) {
	if mux == nil {
		return
	}

	// cart
	handleSafe(mux, "/cart", deps.Cart, "Cart")
	handleSafe(mux, "/cart/", deps.Cart, "Cart")

	// session identity
	handleSafe(mux, "/session/identity", deps.Session, "Session")

	// notification feed
	handleSafe(mux, "/notifications", deps.Notifications, "Notifications")
}
