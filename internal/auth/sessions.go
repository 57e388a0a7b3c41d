package auth

import (
	"github.com/google/uuid"
)

func (a *Authenticator) newSession() (string, int) {
	token := uuid.NewString()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked()
	a.sessions[token] = a.now().Add(a.ttl)
	return token, int(a.ttl.Seconds())
}

func (a *Authenticator) validSession(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	expiry, ok := a.sessions[token]
	if !ok {
		return false
	}
	if !a.now().Before(expiry) {
		delete(a.sessions, token)
		return false
	}
	return true
}

func (a *Authenticator) endSession(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, token)
}

func (a *Authenticator) pruneLocked() {
	now := a.now()
	for token, expiry := range a.sessions {
		if !now.Before(expiry) {
			delete(a.sessions, token)
		}
	}
}
