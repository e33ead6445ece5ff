package types

// User is an admin account allowed to log in.
type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"-"`
	Role     string `json:"role"`
}

// UserSpec is one entry of ADMIN_USERS: {"alice": {"password": "...", "role": "admin"}}.
// The password may be plain text or a bcrypt hash.
type UserSpec struct {
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RoleAdmin may purge the cache.
const RoleAdmin = "admin"
