package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoginPayload defines the expected JSON structure for login requests.
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

const sessionCookieName = "admin_session_token"

// LoginHandler checks the admin credentials and, on success, sets a
// session cookie and returns the same token for bearer use.
func (a *Authenticator) LoginHandler(c *gin.Context) {
	var payload LoginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if !a.admin.configured() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Admin credentials not configured on server"})
		return
	}

	if !a.admin.matches(payload.Username, payload.Password) {
		a.logger.Info("login rejected", zap.String("username", payload.Username), zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, maxAge := a.newSession()
	c.SetCookie(sessionCookieName, token, maxAge, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
	})
}

// LogoutHandler ends the caller's session and clears the cookie.
func (a *Authenticator) LogoutHandler(c *gin.Context) {
	if token, ok := requestToken(c); ok {
		a.endSession(token)
	}
	c.SetCookie(sessionCookieName, "", -1, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}
