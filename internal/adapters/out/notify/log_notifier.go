// internal/adapters/out/notify/log_notifier.go
package notify

import (
	"log"

	usecase "storefront/internal/application/usecase"
)

// LogNotifier writes notifications to the process log.
type LogNotifier struct {
	Prefix string
}

func (l LogNotifier) Notify(n usecase.Notification) {
	log.Printf("[notify]%s severity=%s title=%q description=%q", l.Prefix, n.Severity, n.Title, n.Description)
}

// Fanout delivers each notification to every target in order.
type Fanout []usecase.Notifier

func (f Fanout) Notify(n usecase.Notification) {
	for _, t := range f {
		if t != nil {
			t.Notify(n)
		}
	}
}
