package middleware

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/recordstore/internal/logging"
)

func TestCORSAllowList(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://shop.example.com", ".cdn.example.com"}).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set("Origin", "https://img.cdn.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://img.cdn.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler := NewCORSMiddleware([]string{"*"}).Handler(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/cart/items", nil)
	req.Header.Set("Origin", "https://any.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	handler := rl.Handler(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/records", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000"), "other clients keep their own bucket")
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.getLimiter("a")
	now = now.Add(time.Minute)
	rl.getLimiter("b")

	assert.Equal(t, 1, rl.Cleanup(30*time.Second))
	assert.Len(t, rl.visitors, 1)
}

func TestLoggingMiddlewareSetsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithOutput("test", "info", "json", &buf)

	var seen string
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetTraceID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Trace-ID"))
	assert.Contains(t, buf.String(), `"status":201`)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("X-Trace-ID", "given")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "given", rec.Header().Get("X-Trace-ID"))
}

func TestMetricsMiddlewarePassesThrough(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MetricsMiddleware())
	router.Handle("/records/{id}", okHandler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0}

func multipartRequest(t *testing.T, field string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "upload.bin")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/records/1/cover", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadMiddlewareStoresImage(t *testing.T) {
	dir := t.TempDir()
	up, err := NewUploadMiddleware(dir, 1024, nil, nil)
	require.NoError(t, err)

	var stored string
	handler := up.Handler("file")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stored = UploadedFile(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t, "file", pngHeader))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, stored)
	assert.Equal(t, ".png", filepath.Ext(stored))
	_, err = os.Stat(filepath.Join(dir, stored))
	assert.NoError(t, err)
}

func TestUploadMiddlewareRejects(t *testing.T) {
	dir := t.TempDir()
	up, err := NewUploadMiddleware(dir, 64, nil, nil)
	require.NoError(t, err)
	handler := up.Handler("file")(okHandler())

	cases := map[string]*http.Request{
		"wrong type": multipartRequest(t, "file", []byte("just some text, not an image")),
		"too large":  multipartRequest(t, "file", append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 128)...)),
		"no field":   multipartRequest(t, "other", pngHeader),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadMiddlewareRemovesFileOnHandlerError(t *testing.T) {
	dir := t.TempDir()
	up, err := NewUploadMiddleware(dir, 1024, nil, nil)
	require.NoError(t, err)

	handler := up.Handler("file")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t, "file", pngHeader))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
