package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"peloton/internal/config"
	"peloton/internal/database"
	"peloton/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testUserSeq uint64

// testServer bundles a Server with its fiber app and backing fakes.
type testServer struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	rdb *redis.Client
	mr  *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		Env:                "test",
		Port:               "0",
		JWTSecret:          "test-secret-test-secret-test-secret!",
		PresenceTTLSeconds: 90,
		PushTTLSeconds:     60,
	}

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)

	srv.notificationService.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.notificationService.Shutdown(ctx)
		_ = srv.hub.Shutdown(ctx)
	})

	app := fiber.New()
	srv.SetupRoutes(app)

	return &testServer{srv: srv, app: app, db: db, rdb: rdb, mr: mr}
}

// createUser inserts a user directly and returns it with a valid token.
func (ts *testServer) createUser(t *testing.T, opts ...func(*models.User)) (*models.User, string) {
	t.Helper()
	n := atomic.AddUint64(&testUserSeq, 1)
	hashed, err := bcrypt.GenerateFromPassword([]byte("Str0ngPassw0rd!!"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username: fmt.Sprintf("rider_%d", n),
		Email:    fmt.Sprintf("rider_%d@peloton.test", n),
		Password: string(hashed),
		City:     "Portland",
	}
	for _, opt := range opts {
		opt(user)
	}
	require.NoError(t, ts.db.Create(user).Error)

	token, err := ts.srv.generateToken(user)
	require.NoError(t, err)
	return user, token
}

func (ts *testServer) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

// decodeData unmarshals the "data" field of the response envelope into out.
func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
}
