package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T, creds Credentials) (*Authenticator, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a := NewAuthenticator(creds, nil)
	router := gin.New()
	router.POST("/auth/login", a.LoginHandler)
	router.POST("/auth/logout", a.LogoutHandler)
	protected := router.Group("/api", a.AuthMiddleware())
	protected.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return a, router
}

func request(router http.Handler, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var admin = Credentials{Admin: AdminUser{Username: "root", Password: "hunter2"}, APIToken: "ci-token"}

func login(t *testing.T, router http.Handler) (string, *http.Cookie) {
	t.Helper()
	w := request(router, http.MethodPost, "/auth/login", `{"username":"root","password":"hunter2"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.Equal(t, body.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	return body.Token, cookies[0]
}

func TestLoginSessionCookie(t *testing.T) {
	_, router := newTestAuth(t, admin)
	_, cookie := login(t, router)

	w := request(router, http.MethodGet, "/api/ping", "", func(r *http.Request) { r.AddCookie(cookie) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestLoginSessionBearer(t *testing.T) {
	_, router := newTestAuth(t, admin)
	token, _ := login(t, router)

	w := request(router, http.MethodGet, "/api/ping", "", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) })
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutEndsSession(t *testing.T) {
	_, router := newTestAuth(t, admin)
	_, cookie := login(t, router)

	w := request(router, http.MethodPost, "/auth/logout", "", func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, w.Code)

	w = request(router, http.MethodGet, "/api/ping", "", func(r *http.Request) { r.AddCookie(cookie) })
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIToken(t *testing.T) {
	_, router := newTestAuth(t, admin)

	w := request(router, http.MethodGet, "/api/ping", "", func(r *http.Request) { r.Header.Set("Authorization", "bearer ci-token") })
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(router, http.MethodGet, "/api/ping", "", func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(router, http.MethodGet, "/api/ping", "", func(r *http.Request) { r.Header.Set("Authorization", "Basic Y2k6dG9rZW4=") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEmptyAPITokenNeverMatches(t *testing.T) {
	_, router := newTestAuth(t, Credentials{Admin: admin.Admin})
	w := request(router, http.MethodGet, "/api/ping", "", func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") })
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginFailures(t *testing.T) {
	_, router := newTestAuth(t, admin)
	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodPost, "/auth/login", `{"username":"root","password":"nope"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, request(router, http.MethodPost, "/auth/login", `{`, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodGet, "/api/ping", "", nil).Code)

	_, unconfigured := newTestAuth(t, Credentials{})
	assert.Equal(t, http.StatusInternalServerError, request(unconfigured, http.MethodPost, "/auth/login", `{"username":"","password":""}`, nil).Code)
}

func TestSessionExpiry(t *testing.T) {
	a := NewAuthenticator(Credentials{Admin: admin.Admin, SessionTTL: time.Hour}, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return clock }

	token, maxAge := a.newSession()
	assert.Equal(t, 3600, maxAge)
	assert.True(t, a.validSession(token))

	clock = clock.Add(time.Hour)
	assert.False(t, a.validSession(token))
	assert.Empty(t, a.sessions)
}
