package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", defaultPaginationLimit, 0},
		{"explicit", "limit=10&offset=30", 10, 30},
		{"capped at max", "limit=500", maxPaginationLimit, 0},
		{"zero limit falls back", "limit=0", defaultPaginationLimit, 0},
		{"negative values fall back", "limit=-5&offset=-10", defaultPaginationLimit, 0},
		{"garbage falls back", "limit=abc&offset=xyz", defaultPaginationLimit, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			var limit, offset int
			app.Get("/", func(c *fiber.Ctx) error {
				limit, offset = parsePagination(c)
				return nil
			})
			req := httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
			_, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.wantLimit, limit)
			assert.Equal(t, tc.wantOffset, offset)
		})
	}
}

func TestHumanizeParam(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"requestId", "request ID"},
		{"messageId", "message ID"},
		{"replyId", "reply ID"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, humanizeParam(tc.in), "param %q", tc.in)
	}
}

func TestParseID_BadValuesRejected(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.createUser(t)

	for _, path := range []string{
		"/api/users/abc",
		"/api/users/0",
		"/api/users/-3",
	} {
		resp := ts.request(t, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "path %s", path)
	}
}
