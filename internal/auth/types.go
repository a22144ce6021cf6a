package auth

// Identity is the resolved principal of an authenticated connection.
type Identity struct {
	UserID   string
	Username string
}
