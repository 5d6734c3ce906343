package ledgerdomain

// Actor is the authenticated caller of a control operation.
type Actor struct {
	ID    string
	Admin bool
}

// IsAdmin reports whether the actor holds the admin capability.
func (a Actor) IsAdmin() bool { return a.Admin }
