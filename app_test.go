package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/librosapp/libros/backend/go-services/internal/config"
	"github.com/librosapp/libros/backend/go-services/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			Host:            "127.0.0.1",
			ShutdownTimeout: 2 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Uploads: storage.Config{Backend: storage.BackendLocal, Dir: t.TempDir(), MaxBytes: 1 << 20},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Clean)
	return app
}

func serve(app *App, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(w, req)
	return w
}

type readyBody struct {
	Status string          `json:"status"`
	Deps   map[string]bool `json:"deps"`
}

func ready(t *testing.T, app *App) (int, readyBody) {
	t.Helper()
	w := serve(app, httptest.NewRequest(http.MethodGet, "/ready", nil))
	var body readyBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestNewAppInMemory(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	require.Equal(t, "127.0.0.1:0", app.server.Addr)

	code, body := ready(t, app)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ready", body.Status)
	require.Equal(t, map[string]bool{"store": true}, body.Deps)
}

func TestNewAppRejectsBadUploads(t *testing.T) {
	cfg := testConfig(t)
	cfg.Uploads.Backend = storage.BackendMinIO
	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestNewAppWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis = config.RedisConfig{Host: mr.Host(), Port: mr.Port(), CacheTTL: time.Minute}
	app := newTestApp(t, cfg)

	code, body := ready(t, app)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, map[string]bool{"store": true, "redis": true}, body.Deps)

	mr.Close()
	code, body = ready(t, app)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "not_ready", body.Status)
	require.False(t, body.Deps["redis"])
}

func TestNewAppRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	cfg := testConfig(t)
	cfg.Redis = config.RedisConfig{Host: host, Port: port, CacheTTL: time.Minute}
	app := newTestApp(t, cfg)

	code, body := ready(t, app)
	require.Equal(t, http.StatusOK, code)
	require.NotContains(t, body.Deps, "redis")
}

func TestRouterServesBooks(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"isbn": "978-0307474728", "title": "Cien años de soledad", "author": "Gabriel García Márquez",
		"publisher": "Sudamericana", "pageCount": "471",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/libros", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(app, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var created struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = serve(app, httptest.NewRequest(http.MethodGet, "/api/libros/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Cien años de soledad")

	w = serve(app, httptest.NewRequest(http.MethodGet, "/api/libros/recientes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), created.ID)
}

func TestRouterAmbientRoutes(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	w := serve(app, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", w.Body.String())

	w = serve(app, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "/api/libros")

	w = serve(app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(app, httptest.NewRequest(http.MethodOptions, "/api/libros", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = serve(app, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestStopWithoutServe(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, app.Stop(ctx, ctx)())
}
