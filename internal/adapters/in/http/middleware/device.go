// internal/adapters/in/http/middleware/device.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeviceCookieName identifies the browser/device that owns an anonymous cart.
const DeviceCookieName = "rio_device"

const deviceCookieMaxAge = 365 * 24 * time.Hour

type ctxKeyDeviceIDType struct{}

var ctxKeyDeviceID = ctxKeyDeviceIDType{}

// Device ensures every request carries a device id: the cookie value when it parses as a
// UUID, otherwise a fresh one that is set on the response.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		id := ""
		if c, err := r.Cookie(DeviceCookieName); err == nil {
			if u, perr := uuid.Parse(strings.TrimSpace(c.Value)); perr == nil {
				id = u.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     DeviceCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(deviceCookieMaxAge / time.Second),
				HttpOnly: true,
				Secure:   r.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), ctxKeyDeviceID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceID returns the id stored by Device.
func DeviceID(r *http.Request) (string, bool) {
	v, ok := r.Context().Value(ctxKeyDeviceID).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// BearerToken extracts "Authorization: Bearer <token>". Empty when absent.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
