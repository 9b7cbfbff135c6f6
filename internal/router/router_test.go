package router_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptcsv/internal/config"
	"receiptcsv/internal/csvexport"
	"receiptcsv/internal/extractor/sample"
	"receiptcsv/internal/handler"
	"receiptcsv/internal/middleware"
	"receiptcsv/internal/port"
	"receiptcsv/internal/router"
	"receiptcsv/internal/service"
	"receiptcsv/internal/session"
	"receiptcsv/internal/web"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(provider string) *config.Config {
	return &config.Config{
		Extractor: config.ExtractorConfig{Provider: provider},
		Session: config.SessionConfig{
			Secret:      "test-secret",
			TTL:         time.Hour,
			CacheSizeMB: 16,
			CookieName:  "receipts_session",
		},
		Upload: config.UploadConfig{MaxFileSizeMB: 5},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:8501"}},
	}
}

func newEngine(t *testing.T, cfg *config.Config, ext port.ReceiptExtractor) *gin.Engine {
	t.Helper()
	svc := service.NewReceiptService(service.ReceiptServiceDeps{
		Extractor:       ext,
		Sessions:        session.NewMemoryStore(cfg.Session.CacheSizeMB*1024*1024, cfg.Session.TTL),
		ExtractorConfig: &cfg.Extractor,
		UploadConfig:    &cfg.Upload,
		ArchiveConfig:   &cfg.Archive,
		S3Config:        &cfg.S3,
	})
	maxUpload := cfg.Upload.MaxBytes()
	return router.Setup(
		cfg,
		session.NewTokenManager(cfg.Session.Secret, cfg.Session.TTL),
		web.MustTemplates(),
		handler.NewReceiptHandler(svc, maxUpload),
		handler.NewUIHandler(svc, maxUpload),
		handler.NewHealthHandler(svc),
	)
}

func receiptBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "receipt.png")
	require.NoError(t, err)
	_, _ = part.Write(append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0}, 64)...))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestRouter_HealthEndpointsSkipSession(t *testing.T) {
	r := newEngine(t, testConfig("sample"), sample.NewExtractor(nil))

	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Header().Get(middleware.SessionTokenHeader), path)
	}
}

func TestRouter_ExtractAndExport(t *testing.T) {
	r := newEngine(t, testConfig("sample"), sample.NewExtractor(nil))

	// First request starts a session.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	token := w.Header().Get(middleware.SessionTokenHeader)
	require.NotEmpty(t, token)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "receipts_session=")

	var status handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	data := status.Data.(map[string]interface{})
	assert.Equal(t, true, data["ready"])
	assert.Equal(t, true, data["maintenance"])

	body, contentType := receiptBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/receipts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Empty(t, w.Header().Get(middleware.SessionTokenHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/export/csv", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), csvexport.BOM))
	assert.Contains(t, w.Body.String(), "Date,Merchant,Item,Price,Total\n")
	assert.Contains(t, w.Body.String(), "Sample Store")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")

	// A different session sees no results.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/results", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var results handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	assert.Empty(t, results.Data.(map[string]interface{})["results"])
}

func TestRouter_MissingCredentials(t *testing.T) {
	r := newEngine(t, testConfig("azure"), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	body, contentType := receiptBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/receipts", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CONFIGURATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "AZURE_FORM_RECOGNIZER_ENDPOINT")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `id="config-error"`)
}

func TestRouter_PageRoundTrip(t *testing.T) {
	r := newEngine(t, testConfig("sample"), sample.NewExtractor(nil))

	body, contentType := receiptBody(t)
	req := httptest.NewRequest(http.MethodPost, "/receipts", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sample Store")
	assert.Contains(t, w.Body.String(), `id="maintenance"`)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sample Store")
	assert.NotContains(t, w.Body.String(), `id="config-error"`)
}
