package auth

// RoleAdmin is the only role in use: every account manages the whole
// dorm installation.
const RoleAdmin = "admin"

// User is a stored account. The reset fields hold an active password
// reset code, hashed like a password, and its expiry.
type User struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	PasswordHash   string `json:"-"`
	Role           string `json:"role"`
	ResetCodeHash  string `json:"-"`
	ResetExpiresAt int64  `json:"-"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}
