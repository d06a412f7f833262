package rest_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAuth(t *testing.T) {
	e := newEnv(t)

	w := getReq(e.r, "/api/admin/metrics")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = getReq(e.r, "/api/admin/metrics", "X-Admin-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = getReq(e.r, "/api/admin/metrics", "X-Admin-Key", testAdminKey)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminMetrics(t *testing.T) {
	e := newEnv(t)
	tokenA, _ := e.login(t, "metricuser")
	tokenB, idB := e.login(t, "metricfriend")
	e.befriend(t, tokenA, tokenB, idB)

	w := getReq(e.r, "/api/admin/metrics", "X-Admin-Key", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var m struct {
		Accounts        int64 `json:"accounts"`
		FriendshipEdges int64 `json:"friendship_edges"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, int64(2), m.Accounts)
	assert.Equal(t, int64(2), m.FriendshipEdges)
}

func TestBanAccount(t *testing.T) {
	e := newEnv(t)
	_, id := e.login(t, "banme")

	w := postJSON(e.r, fmtPath("/api/admin/accounts/%d/ban", id), nil,
		"X-Admin-Key", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)

	// The banned account can no longer log in.
	w = postJSON(e.r, "/api/auth/login", map[string]string{
		"username": "banme", "password": "pass1234",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postJSON(e.r, "/api/admin/accounts/99999/ban", nil,
		"X-Admin-Key", testAdminKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
