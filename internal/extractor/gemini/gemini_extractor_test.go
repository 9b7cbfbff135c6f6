package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptcsv/internal/config"
	"receiptcsv/internal/domain"
	"receiptcsv/internal/extractor/gemini"
	"receiptcsv/internal/port"
)

func newTestExtractor(serverURL string) *gemini.Extractor {
	return gemini.NewExtractorWithEndpoint(&config.ExtractorConfig{
		Provider:    "gemini",
		APIKey:      "test-gemini-key",
		TimeoutSecs: 30,
	}, serverURL)
}

func candidateResponse(text, finishReason string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]interface{}{{"text": text}},
				},
				"finishReason": finishReason,
			},
		},
	}
}

func TestGeminiExtractor_Extract_Success(t *testing.T) {
	llmJSON := `{"receipt_type":"receipt","data":{"merchant_name":"Farm Stand","currency":"EUR","subtotal":10,"tax":0.8,"total":10.8},"confidence_scores":{"total":0.99,"tip":0.5}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-gemini-key", r.Header.Get("x-goog-api-key"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		genCfg := reqBody["generationConfig"].(map[string]interface{})
		assert.Equal(t, "application/json", genCfg["responseMimeType"])

		_ = json.NewEncoder(w).Encode(candidateResponse(llmJSON, "STOP"))
	}))
	defer server.Close()

	res, err := newTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{
		Image:       []byte("png"),
		ContentType: "image/png",
	})

	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", res.ModelUsed)
	assert.Equal(t, "Farm Stand", res.Fields[domain.FieldMerchant])
	assert.Equal(t, "EUR", res.Fields[domain.FieldCurrency])
	assert.Equal(t, "10.00", res.Fields[domain.FieldSubtotal])
	assert.Equal(t, "0.80", res.Fields[domain.FieldTax])
	assert.Equal(t, "10.80", res.Fields[domain.FieldTotal])
	assert.InDelta(t, 0.99, res.Confidence[domain.FieldTotal], 1e-9)
	assert.NotContains(t, res.Confidence, domain.FieldTip)
}

func TestGeminiExtractor_Extract_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := newTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{
		Image:       []byte("jpeg"),
		ContentType: "image/jpeg",
	})

	var extErr *domain.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, domain.ExtractionRateLimited, extErr.Kind)
	assert.Equal(t, 12, int(extErr.RetryAfter.Seconds()))
}

func TestGeminiExtractor_Extract_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := newTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{
		Image:       []byte("jpeg"),
		ContentType: "image/jpeg",
	})

	var extErr *domain.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, domain.ExtractionResponse, extErr.Kind)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestGeminiExtractor_Extract_UnsupportedContentType(t *testing.T) {
	_, err := newTestExtractor("http://unused.invalid").Extract(context.Background(), port.ExtractInput{
		Image:       []byte("II*"),
		ContentType: "image/tiff",
	})

	assert.ErrorIs(t, err, domain.ErrUnsupportedFile)
	var extErr *domain.ExtractionError
	assert.False(t, errors.As(err, &extErr))
}
