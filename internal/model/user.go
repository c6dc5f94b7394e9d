package model

// Role is a user's authorization level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is an account record. Password and SecurityAnswer hold bcrypt hashes;
// both are empty until the user completes registration.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Password         string `json:"password,omitempty"`
	Role             Role   `json:"role"`
	SecurityQuestion string `json:"securityQuestion,omitempty"`
	SecurityAnswer   string `json:"securityAnswer,omitempty"`
	Name             string `json:"name,omitempty"`
	Company          string `json:"company,omitempty"`
	Bio              string `json:"bio,omitempty"`
	AvatarURL        string `json:"avatarUrl,omitempty"`
}

// Sanitized returns a copy with credential hashes stripped, safe for API
// responses.
func (u User) Sanitized() User {
	u.Password = ""
	u.SecurityAnswer = ""
	return u
}

// Registered reports whether the user has completed registration.
func (u *User) Registered() bool {
	return u.Password != ""
}
