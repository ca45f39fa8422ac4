package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-gateway/middleware/security/logging"
)

func testConfig(t *testing.T) config {
	return config{
		Server:   serverConfig{ListenAddr: ":0", MaxInFlight: 10},
		Log:      logConfig{Level: "error"},
		Store:    storeConfig{Type: "memory"},
		Database: databaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "gw.db")},
		Auth:     authConfig{JWTSecret: "secret"},
		RateLimit: rateLimitConfig{
			InlineCleanup:    false,
			SweepEvery:       time.Minute,
			StoreMaxInFlight: 2,
			Headers:          true,
		},
		Burst: burstConfig{Enabled: true, RPS: 100, Burst: 100},
		Stats: statsConfig{Type: "prometheus"},
	}
}

func TestRouter_ServesHealthMetricsAndProjects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, testConfig(t), logging.Nop())
	require.NoError(t, err)
	defer func() { _ = a.close() }()

	h, err := a.router()
	require.NoError(t, err)

	get := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	assert.Equal(t, http.StatusOK, get(http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(http.MethodOptions, "/secure-project-crud").Code)
	assert.Equal(t, http.StatusUnauthorized, get(http.MethodGet, "/secure-project-crud").Code)

	m := get(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, m.Code)
	body, _ := io.ReadAll(m.Body)
	assert.Contains(t, string(body), "security_gateway_decisions_total")
	assert.Contains(t, string(body), `security_gateway_pool_capacity{pool="store"} 2`)
	assert.Contains(t, string(body), `security_gateway_pool_capacity{pool="http"} 10`)
}

func TestRouter_MemoryStatsEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stats.Type = "memory"

	a, err := newApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer func() { _ = a.close() }()
	h, err := a.router()
	require.NoError(t, err)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/secure-project-crud", nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unauthenticated":1`)
}

func TestRouter_RedisStatsEndpoint(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Store = storeConfig{Type: "redis", Redis: redisConfig{Addr: mr.Addr(), Prefix: "rl"}}
	cfg.Stats = statsConfig{Type: "redis", Prefix: "st", TTL: time.Hour, Bucket: "minute", TrackKeys: true}

	a, err := newApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer func() { _ = a.close() }()
	h, err := a.router()
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/secure-project-crud", nil)
	r.RemoteAddr = "10.1.1.1:999"
	h.ServeHTTP(httptest.NewRecorder(), r)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unauthenticated":1`)
	assert.Contains(t, w.Body.String(), `"10.1.1.1"`)
	assert.Len(t, w.Header().Values("Access-Control-Allow-Origin"), 1)
}
