package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labeladmin/src/session"
)

type unavailableVerifier struct{}

func (unavailableVerifier) Verify(context.Context, string, string) error {
	return errors.New("identity provider unreachable")
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		body    any
		status  int
		success bool
		message string
	}{
		{"valid credentials", map[string]string{"username": "admin", "password": "P@ssw0rd"}, http.StatusOK, true, "Login successful"},
		{"wrong password", map[string]string{"username": "admin", "password": "wrong"}, http.StatusUnauthorized, false, "Invalid username or password"},
		{"wrong username", map[string]string{"username": "root", "password": "P@ssw0rd"}, http.StatusUnauthorized, false, "Invalid username or password"},
		{"missing password", map[string]string{"username": "admin"}, http.StatusBadRequest, false, "Username and password are required"},
		{"empty username", map[string]string{"username": "", "password": "P@ssw0rd"}, http.StatusBadRequest, false, "Username and password are required"},
		{"invalid json", "{", http.StatusBadRequest, false, "Invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.json(http.MethodPost, "/api/auth/login", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			got := decode(t, w)
			assert.Equal(t, tt.success, got["success"])
			if tt.success {
				assert.Equal(t, tt.message, got["message"])
			} else {
				assert.Equal(t, tt.message, got["error"])
			}
		})
	}
}

func TestLoginEndpointVerifierFailure(t *testing.T) {
	env := newTestEnv(t, withVerifier(unavailableVerifier{}))
	w := env.json(http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "P@ssw0rd"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Server error. Please try again.", decode(t, w)["error"])
}

func TestLoginEndpointSetsBrowserFlag(t *testing.T) {
	env := newTestEnv(t)
	cookie := browser()

	resp := env.json(http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "P@ssw0rd"})
	require.Equal(t, http.StatusOK, resp.Code)

	// A request without a client cookie is issued one.
	var issued *http.Cookie
	for _, c := range resp.Result().Cookies() {
		if c.Name == testCookie {
			issued = c
		}
	}
	require.NotNil(t, issued)
	assert.True(t, issued.HttpOnly)

	w := env.do(getPage("/artists", issued))
	assert.Equal(t, http.StatusOK, w.Code)

	// Another browser is still signed out.
	w = env.do(getPage("/artists", cookie))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestGateRedirects(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(getPage("/artists", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, session.LoginRoute, w.Header().Get("Location"))

	w = env.do(getPage("/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="password"`)

	cookie := env.login(t)
	w = env.do(getPage("/login", cookie))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, session.HomeRoute, w.Header().Get("Location"))

	for _, page := range []string{"/", "/artists", "/store", "/tour", "/updates", "/orders", "/contact-us", "/join-us", "/submit-music"} {
		w = env.do(getPage(page, cookie))
		assert.Equal(t, http.StatusOK, w.Code, page)
	}
}

func TestLoginFormAndLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie := browser()

	w := env.do(formRequest("/login", url.Values{"username": {"admin"}, "password": {"nope"}}, cookie))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password")

	w = env.do(formRequest("/login", url.Values{"username": {"admin"}}, cookie))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Username and password are required")

	w = env.do(formRequest("/login", url.Values{"username": {"admin"}, "password": {"P@ssw0rd"}}, cookie))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	value, ok, err := env.sessions.Get(context.Background(), cookie.Value+":"+session.FlagKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", value)

	w = env.do(formRequest("/logout", nil, cookie))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	for _, page := range []string{"/", "/artists", "/orders"} {
		w = env.do(getPage(page, cookie))
		assert.Equal(t, http.StatusSeeOther, w.Code, page)
		assert.Equal(t, "/login", w.Header().Get("Location"), page)
	}
}
