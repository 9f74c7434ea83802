// internal/domain/cart/identity.go
package cart

// Identity is what the identity provider currently knows about the session.
// UserID == "" means anonymous. Resolving is true while the provider has not settled yet;
// UserID must not be trusted in that case.
type Identity struct {
	UserID    string
	Resolving bool
}

// Anonymous is the settled, unauthenticated identity.
var Anonymous = Identity{}

// ResolvingIdentity is published while sign-in is in flight.
var ResolvingIdentity = Identity{Resolving: true}

// Authenticated reports whether a settled user is present.
func (i Identity) Authenticated() bool {
	return !i.Resolving && i.UserID != ""
}

func (i Identity) String() string {
	switch {
	case i.Resolving:
		return "resolving"
	case i.UserID == "":
		return "anonymous"
	default:
		return "user:" + i.UserID
	}
}
