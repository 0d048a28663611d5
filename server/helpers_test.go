package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"instapurr/config"
	"instapurr/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, database.EnsureSchema(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// newTestApp wires a server with routes onto a fresh Fiber app. Redis
// is absent so caching and per-route rate limits are fail-open.
func newTestApp(t *testing.T) (*fiber.App, *Server) {
	t.Helper()
	app, srv := buildTestApp(t, nil)
	return app, srv
}

// newTestAppWithRedis backs the server with a miniredis instance so the
// cache-hit, revocation and rate-limit paths are exercised.
func newTestAppWithRedis(t *testing.T) (*fiber.App, *Server, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	app, srv := buildTestApp(t, client)
	return app, srv, mr
}

func buildTestApp(t *testing.T, redisClient *redis.Client) (*fiber.App, *Server) {
	t.Helper()

	cfg := &config.Config{
		Env:       "test",
		JWTSecret: "test-secret-key",
		UploadDir: t.TempDir(),
	}

	srv := newServer(cfg, setupTestDB(t), redisClient)

	// BodyLimit mirrors the production entrypoint so the 5MB upload cap
	// is enforced by the handler, not the framework.
	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	srv.SetupRoutes(app)

	return app, srv
}

// doJSON issues a JSON request against the test app and decodes the
// response body into a generic map.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)

	return resp.StatusCode, decoded
}

// registerUser creates an account through the API and returns its id
// and token.
func registerUser(t *testing.T, app *fiber.App, username, password string) (uint, string) {
	t.Helper()

	status, body := doJSON(t, app, "POST", "/api/users/register", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, fiber.StatusCreated, status)
	require.NotEmpty(t, body["token"])

	return uint(body["id"].(float64)), body["token"].(string)
}

// createPost inserts a post through the API for the given user.
func createPost(t *testing.T, app *fiber.App, token, imagePath, caption string) uint {
	t.Helper()

	status, body := doJSON(t, app, "POST", "/api/posts", token, map[string]string{
		"imagePath": imagePath,
		"caption":   caption,
	})
	require.Equal(t, fiber.StatusCreated, status)

	return uint(body["id"].(float64))
}
