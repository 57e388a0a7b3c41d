package auth

import "crypto/subtle"

// AdminUser holds the credentials for an admin user.
type AdminUser struct {
	Username string
	Password string
}

// configured reports whether both fields are set.
func (u AdminUser) configured() bool {
	return u.Username != "" && u.Password != ""
}

// matches compares in constant time.
func (u AdminUser) matches(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(u.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(u.Password)) == 1
	return userOK && passOK
}
