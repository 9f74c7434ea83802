// internal/adapters/in/http/mall/handler/cart_handler.go
package mallHandler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"storefront/internal/adapters/in/http/middleware"
	usecase "storefront/internal/application/usecase"
	cartdom "storefront/internal/domain/cart"
)

// SessionResolver returns the live session of a device.
type SessionResolver interface {
	Get(ctx context.Context, deviceID string) (*CartSession, error)
}

// CartHandler serves the cart of the calling device.
//
//	GET    /cart
//	DELETE /cart
//	POST   /cart/reload
//	POST   /cart/items
//	GET    /cart/items/{id}
//	DELETE /cart/items/{id}
type CartHandler struct {
	sessions SessionResolver
}

func NewCartHandler(sessions SessionResolver) http.Handler {
	return &CartHandler{sessions: sessions}
}

type cartResponse struct {
	Items    []cartdom.CartItem `json:"items"`
	Count    int                `json:"count"`
	Total    float64            `json:"total"`
	Status   string             `json:"status"`
	Loading  bool               `json:"loading"`
	Identity identityResponse   `json:"identity"`
}

type identityResponse struct {
	State  string `json:"state"` // anonymous | resolving | authenticated
	UserID string `json:"userId,omitempty"`
}

type addItemRequest struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (h *CartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	path := strings.TrimRight(r.URL.Path, "/")

	if h.sessions == nil {
		log.Printf("[mall_cart_handler] exit status=500 reason=sessions is nil elapsed=%s", time.Since(start))
		internalError(w, "cart handler is not configured")
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	switch {
	case path == "/cart" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, toCartResponse(sess.Manager.Snapshot()))

	case path == "/cart" && r.Method == http.MethodDelete:
		h.handleClear(w, r, sess)

	case path == "/cart/reload" && r.Method == http.MethodPost:
		if err := sess.Manager.Reload(r.Context()); err != nil {
			writeManagerErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, toCartResponse(sess.Manager.Snapshot()))

	case path == "/cart/items" && r.Method == http.MethodPost:
		h.handleAdd(w, r, sess)

	case strings.HasPrefix(path, "/cart/items/"):
		id := strings.TrimSpace(strings.TrimPrefix(path, "/cart/items/"))
		if id == "" || strings.Contains(id, "/") {
			writeErr(w, http.StatusNotFound, "not found")
			break
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"id": id, "inCart": sess.Manager.IsItemInCart(id)})
		case http.MethodDelete:
			if err := sess.Manager.RemoveFromCart(r.Context(), id); err != nil {
				writeManagerErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toCartResponse(sess.Manager.Snapshot()))
		default:
			writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		}

	default:
		writeErr(w, http.StatusNotFound, "not found")
	}

	log.Printf("[mall_cart_handler] %s %s device=%s elapsed=%s", r.Method, path, sess.DeviceID, time.Since(start))
}

func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) (*CartSession, bool) {
	return resolveSession(w, r, h.sessions, "mall_cart_handler")
}

func (h *CartHandler) handleAdd(w http.ResponseWriter, r *http.Request, sess *CartSession) {
	var req addItemRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	item := cartdom.CartItem{
		ID:       strings.TrimSpace(req.ID),
		Title:    strings.TrimSpace(req.Title),
		Price:    req.Price,
		Quantity: req.Quantity,
	}
	if err := sess.Manager.AddToCart(r.Context(), item); err != nil {
		if errors.Is(err, cartdom.ErrInvalidItem) {
			badRequest(w, err.Error())
			return
		}
		writeManagerErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(sess.Manager.Snapshot()))
}

func (h *CartHandler) handleClear(w http.ResponseWriter, r *http.Request, sess *CartSession) {
	if err := sess.Manager.ClearCart(r.Context()); err != nil {
		writeManagerErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(sess.Manager.Snapshot()))
}

// -------------------------
// helpers
// -------------------------

func resolveSession(w http.ResponseWriter, r *http.Request, sessions SessionResolver, tag string) (*CartSession, bool) {
	deviceID, ok := middleware.DeviceID(r)
	if !ok {
		log.Printf("[%s] exit status=400 reason=no device id path=%q", tag, r.URL.Path)
		badRequest(w, "device id is missing")
		return nil, false
	}
	sess, err := sessions.Get(r.Context(), deviceID)
	if err != nil {
		log.Printf("[%s] exit status=500 reason=session open failed device=%s err=%v", tag, deviceID, err)
		internalError(w, "session unavailable")
		return nil, false
	}
	return sess, true
}

func writeManagerErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrManagerClosed):
		writeErr(w, http.StatusServiceUnavailable, "session closed, retry")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeErr(w, http.StatusRequestTimeout, err.Error())
	default:
		internalError(w, err.Error())
	}
}

func toIdentityResponse(id cartdom.Identity) identityResponse {
	switch {
	case id.Resolving:
		return identityResponse{State: "resolving"}
	case id.UserID == "":
		return identityResponse{State: "anonymous"}
	default:
		return identityResponse{State: "authenticated", UserID: maskUID(id.UserID)}
	}
}

func toCartResponse(s usecase.CartSnapshot) cartResponse {
	items := s.Items
	if items == nil {
		items = []cartdom.CartItem{}
	}
	return cartResponse{
		Items:    items,
		Count:    len(items),
		Total:    cartdom.Total(items),
		Status:   s.Status.String(),
		Loading:  s.Status == usecase.StatusIdle || s.Status == usecase.StatusLoading,
		Identity: toIdentityResponse(s.Identity),
	}
}
