package domain

// Identity is the authenticated caller as reported by the account directory.
// The engine never sees credentials; the gateway authenticates and forwards
// the username, and the directory attaches claims.
type Identity struct {
	Username string
	Admin    bool
}
