// internal/platform/di/mall/register.go
package mall

import (
	"net/http"

	mallhttp "storefront/internal/adapters/in/http/mall"
	mallhandler "storefront/internal/adapters/in/http/mall/handler"
	"storefront/internal/adapters/in/http/middleware"
)

// Register registers storefront routes onto mux.
// Pure DI: construct handlers and pass into mall router.Register.
// Every route runs behind Device so a session can be resolved from the cookie.
func Register(mux *http.ServeMux, cont *Container) {
	if mux == nil || cont == nil {
		return
	}

	mallhttp.Register(mux, mallhttp.Deps{
		Cart:          middleware.Device(mallhandler.NewCartHandler(cont.Sessions)),
		Session:       middleware.Device(mallhandler.NewSessionHandler(cont.Sessions)),
		Notifications: middleware.Device(mallhandler.NewNotificationHandler(cont.Sessions)),
	})
}
