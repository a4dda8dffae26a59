package users

import "time"

// User is an account holder. PasswordHash is empty for accounts created via
// Google sign-in that never set a password.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	AvatarRef    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public is the externally visible shape of a user. AvatarURL is the
// resolved public URL, not the stored ref.
type Public struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
