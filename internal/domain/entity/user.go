package entity

// User is the guest (or admin) held in the session. IsAdmin is decided once
// at login and never re-derived from the name or email afterwards.
type User struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}
