package auth

import (
	"crypto/subtle"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSessionTTL = 24 * time.Hour

// Credentials configures an Authenticator.
type Credentials struct {
	Admin AdminUser
	// APIToken, when set, is accepted as "Authorization: Bearer <token>".
	APIToken   string
	SessionTTL time.Duration
}

// Authenticator checks admin logins and issues session tokens.
type Authenticator struct {
	admin    AdminUser
	apiToken string
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time
}

// NewAuthenticator builds an Authenticator. It logs a warning for every
// credential that is not set.
func NewAuthenticator(creds Credentials, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if creds.Admin.Username == "" {
		logger.Warn("admin username not set; login disabled")
	}
	if creds.Admin.Password == "" {
		logger.Warn("admin password not set; login disabled")
	}
	ttl := creds.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Authenticator{
		admin:    creds.Admin,
		apiToken: creds.APIToken,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: map[string]time.Time{},
	}
}

func (a *Authenticator) validAPIToken(token string) bool {
	return a.apiToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.apiToken)) == 1
}
