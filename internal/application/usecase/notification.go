// internal/application/usecase/notification.go
package usecase

import "fmt"

// Severity mirrors the toast variants of the storefront UI.
type Severity string

const (
	SeverityDefault     Severity = "default"
	SeverityDestructive Severity = "destructive"
)

// Notification is a user-facing, fire-and-forget message.
type Notification struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Notifier delivers notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

// ----------------------------
// cart messages
// ----------------------------

func noteAlreadyInCart(title string) Notification {
	return Notification{
		Title:       "Already in Cart",
		Description: fmt.Sprintf("\"%s\" is already in your cart.", title),
		Severity:    SeverityDefault,
	}
}

func noteAdded(title string) Notification {
	return Notification{
		Title:       "Added to Cart",
		Description: fmt.Sprintf("\"%s\" has been added to your cart.", title),
		Severity:    SeverityDefault,
	}
}

func noteRemoved(title string) Notification {
	return Notification{
		Title:       "Removed from Cart",
		Description: fmt.Sprintf("\"%s\" has been removed from your cart.", title),
		Severity:    SeverityDestructive,
	}
}

var (
	noteClearedServer = Notification{
		Title:       "Cart Cleared",
		Description: "Your shopping cart has been successfully emptied from the server.",
		Severity:    SeverityDefault,
	}
	noteClearIssue = Notification{
		Title: "Cart Clearing Issue",
		Description: "Your cart is cleared on this device. There was an issue confirming immediate " +
			"removal from the server, but it should sync to an empty state shortly.",
		Severity: SeverityDestructive,
	}
	noteClearedLocal = Notification{
		Title:       "Cart Cleared",
		Description: "Your local shopping cart has been emptied.",
		Severity:    SeverityDefault,
	}
	noteMerged = Notification{
		Title:       "Cart Synced",
		Description: "Your anonymous cart items have been merged.",
		Severity:    SeverityDefault,
	}
	noteSavedToAccount = Notification{
		Title:       "Cart Synced",
		Description: "Your previous cart items have been saved to your account.",
		Severity:    SeverityDefault,
	}
	noteRemoteUnavailable = Notification{
		Title: "Cart Unavailable",
		Description: "We couldn't load the cart saved to your account. Items you add now are kept " +
			"on this device and will be merged once the connection recovers.",
		Severity: SeverityDestructive,
	}
)
