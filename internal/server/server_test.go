package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/config"
)

var (
	testAppOnce sync.Once
	testApp     *fiber.App
)

// testServer builds one shared app for the whole package. The Prometheus
// collectors register with the default registry, so the server must be
// constructed exactly once.
func testServer(t *testing.T) *fiber.App {
	t.Helper()
	testAppOnce.Do(func() {
		cfg := &config.Config{
			BindAddr:       "127.0.0.1",
			Port:           "18080",
			AllowedOrigins: "*",
			Env:            "test",
			MaxConnections: 100,
			IdleAfter:      time.Minute,
			IdleSweep:      5 * time.Second,
			DisconnectTTL:  5 * time.Minute,
			ReapInterval:   time.Minute,
		}
		srv, err := NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err != nil {
			t.Fatalf("NewServer: %v", err)
		}
		app := fiber.New()
		srv.SetupMiddleware(app)
		srv.SetupRoutes(app)
		testApp = app
	})
	return testApp
}

func TestLivenessCheck(t *testing.T) {
	app := testServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "up", body["status"])
}

func TestReadinessCheck(t *testing.T) {
	app := testServer(t)

	for _, path := range []string{"/health/ready", "/health"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body["status"])
		assert.Contains(t, body, "connections")
		assert.Contains(t, body, "known_users")
		_ = resp.Body.Close()
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := testServer(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpgradeGate_RequiresUpgrade(t *testing.T) {
	app := testServer(t)

	// A plain GET with no upgrade headers never reaches the chat handler.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws?name=alice", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestUpgradeGate_RejectsBadNames(t *testing.T) {
	app := testServer(t)

	for _, target := range []string{"/ws", "/ws?name=", "/ws?name=%7E"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Connection", "Upgrade")
		req.Header.Set("Upgrade", "websocket")
		req.Header.Set("Sec-WebSocket-Version", "13")
		req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "target %s", target)
		_ = resp.Body.Close()
	}
}
