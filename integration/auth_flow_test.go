package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullAuthLifecycle(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	username := UniqueID("auth")
	password := "testpass1234"

	// 1. First login → auto-registers, returns token.
	token1, accountID := ts.Login(t, username, password)
	require.NotEmpty(t, token1)
	require.Greater(t, accountID, int64(0))

	// 2. Empty wardrobe.
	resp := ts.Get(t, "/api/garments", token1)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Garments []map[string]any `json:"garments"`
	}
	ReadJSON(t, resp, &list)
	assert.Empty(t, list.Garments)

	// 3. Opening the outfit creates a session.
	resp = ts.Get(t, "/api/outfit", token1)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.NotNil(t, ts.Outfits.Lookup(accountID))

	// 4. Login again with same credentials → same account, new token.
	// JWT timestamps have second granularity.
	time.Sleep(1100 * time.Millisecond)
	token2, accountID2 := ts.Login(t, username, password)
	assert.Equal(t, accountID, accountID2)
	assert.NotEqual(t, token1, token2)

	resp = ts.Get(t, "/api/garments", token2)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 5. Logout invalidates token2 and drops the outfit session.
	resp = ts.PostJSON(t, "/api/auth/logout", nil, token2)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Nil(t, ts.Outfits.Lookup(accountID))

	resp = ts.Get(t, "/api/garments", token2)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// token1 is a separate session.
	resp = ts.Get(t, "/api/garments", token1)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestLoginWrongPassword(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	username := UniqueID("wrongpw")
	ts.Login(t, username, "correctpass")

	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": "wrongpassword",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	for _, path := range []string{"/api/garments", "/api/outfit", "/api/outfits", "/api/laundry"} {
		resp := ts.Get(t, path, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		resp.Body.Close()
	}
	resp := ts.PostJSON(t, "/api/outfit/generate", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestTokenRefresh(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	token, _ := ts.Login(t, UniqueID("refresh"), "pass1234")

	// JWT timestamps have second granularity.
	time.Sleep(1100 * time.Millisecond)

	resp := ts.PostJSON(t, "/api/auth/refresh", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]any
	ReadJSON(t, resp, &result)
	newToken := result["token"].(string)
	assert.NotEqual(t, token, newToken)

	resp = ts.Get(t, "/api/garments", token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = ts.Get(t, "/api/garments", newToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthEndpoint(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()

	resp := ts.Get(t, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]any
	ReadJSON(t, resp, &result)
	assert.Equal(t, "ok", result["status"])
}
