// internal/adapters/in/http/mall/handler/notification_handler.go
package mallHandler

import (
	"net/http"
)

// NotificationHandler drains the device's notification feed.
//
//	GET /notifications
type NotificationHandler struct {
	sessions SessionResolver
}

func NewNotificationHandler(sessions SessionResolver) http.Handler {
	return &NotificationHandler{sessions: sessions}
}

func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.sessions == nil {
		internalError(w, "notification handler is not configured")
		return
	}
	sess, ok := resolveSession(w, r, h.sessions, "mall_notification_handler")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": sess.Feed.Drain()})
}
