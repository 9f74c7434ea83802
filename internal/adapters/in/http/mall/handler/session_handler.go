// internal/adapters/in/http/mall/handler/session_handler.go
package mallHandler

import (
	"log"
	"net/http"
	"strings"

	"storefront/internal/adapters/in/http/middleware"
)

// SessionHandler binds an identity to the calling device.
//
//	POST   /session/identity  (Authorization: Bearer <Firebase ID token>; none = anonymous)
//	DELETE /session/identity  (sign out)
//
// The cart load runs asynchronously; clients poll GET /cart until loading is false.
type SessionHandler struct {
	sessions SessionResolver
}

func NewSessionHandler(sessions SessionResolver) http.Handler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimRight(r.URL.Path, "/")
	if path != "/session/identity" {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}
	if h.sessions == nil {
		internalError(w, "session handler is not configured")
		return
	}

	sess, ok := resolveSession(w, r, h.sessions, "mall_session_handler")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		id, err := sess.Identity.Resolve(r.Context(), middleware.BearerToken(r))
		if err != nil {
			log.Printf("[mall_session_handler] sign-in rejected device=%s err=%v", sess.DeviceID, err)
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":    "invalid token",
				"identity": toIdentityResponse(id),
			})
			return
		}
		log.Printf("[mall_session_handler] identity device=%s uid=%s", sess.DeviceID, maskUID(id.UserID))
		writeJSON(w, http.StatusAccepted, map[string]any{"identity": toIdentityResponse(id)})

	case http.MethodDelete:
		if err := sess.Identity.SignOut(); err != nil {
			writeManagerErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"identity": toIdentityResponse(sess.Identity.Current())})

	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
