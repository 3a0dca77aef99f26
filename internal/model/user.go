package model

// User is the identity returned by a successful login.
type User struct {
	ID    int    `json:"id,omitempty"`
	Email string `json:"email"`
	Name  string `json:"full_name"`
	Role  string `json:"role"`
}

// DisplayName returns the name to show in the header, falling back to the
// email address.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
