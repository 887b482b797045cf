package server

import (
	"fmt"
	"net/http"
	"testing"

	"peloton/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRoutes_NonAdminForbidden(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.createUser(t)

	for _, path := range []string{
		"/api/admin/users",
		"/api/admin/feature-flags",
	} {
		resp := ts.request(t, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "path %s", path)
	}
}

func TestAdminListUsers(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.createUser(t, func(u *models.User) { u.IsAdmin = true })
	ts.createUser(t)

	resp := ts.request(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []models.User
	decodeData(t, resp, &users)
	assert.Len(t, users, 2)
}

func TestBanAndUnbanUser(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.createUser(t, func(u *models.User) { u.IsAdmin = true })
	target, targetToken := ts.createUser(t)

	resp := ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/admin/users/%d/ban", target.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Valid token, but the account is suspended.
	resp = ts.request(t, http.MethodGet, "/api/users/me", targetToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    target.Email,
		"password": "Str0ngPassw0rd!!",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/admin/users/%d/unban", target.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, "/api/users/me", targetToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBanUser_SelfBanRejected(t *testing.T) {
	ts := newTestServer(t)
	admin, adminToken := ts.createUser(t, func(u *models.User) { u.IsAdmin = true })

	resp := ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/admin/users/%d/ban", admin.ID), adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminDeletePost(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.createUser(t, func(u *models.User) { u.IsAdmin = true })
	_, authorToken := ts.createUser(t)

	post := ts.createPost(t, authorToken, fiber.Map{
		"title": "Rule breaking post", "content": "moderate me",
	})

	resp := ts.request(t, http.MethodDelete,
		fmt.Sprintf("/api/admin/posts/%d", post.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodGet,
		fmt.Sprintf("/api/posts/%d", post.ID), authorToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminDeleteGroup(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.createUser(t, func(u *models.User) { u.IsAdmin = true })
	_, ownerToken := ts.createUser(t)

	group := ts.createGroup(t, ownerToken, fiber.Map{"name": "Off The Back"})

	resp := ts.request(t, http.MethodDelete,
		fmt.Sprintf("/api/admin/groups/%d", group.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodGet,
		fmt.Sprintf("/api/groups/%d", group.ID), ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetFeatureFlags(t *testing.T) {
	ts := newTestServer(t)
	_, adminToken := ts.createUser(t, func(u *models.User) { u.IsAdmin = true })

	resp := ts.request(t, http.MethodGet, "/api/admin/feature-flags", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}
	decodeData(t, resp, &out)
	assert.NotNil(t, out.Evaluated)
}
