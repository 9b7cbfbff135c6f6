package claude_test

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
	"receiptcsv/internal/extractor/claude"
	"receiptcsv/internal/port"
)

func newTestExtractor(serverURL string) *claude.Extractor {
	return claude.NewExtractorWithEndpoint(&config.ExtractorConfig{
		Provider:    "claude",
		APIKey:      "test-anthropic-key",
		TimeoutSecs: 30,
	}, serverURL)
}

func messagesResponse(text, stopReason string) map[string]interface{} {
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
		"stop_reason": stopReason,
	}
}

func TestClaudeExtractor_Extract_Success(t *testing.T) {
	llmJSON := "```json\n" + `{"receipt_type":"receipt","data":{"merchant_name":"Corner Deli","transaction_date":"2024-03-02","items":[{"description":"Bagel","quantity":1,"price":2.25}],"total":2.25},"confidence_scores":{"merchant_name":0.8}}` + "\n```"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-anthropic-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])
		content := reqBody["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		require.Len(t, content, 2)
		assert.Equal(t, "image", content[0].(map[string]interface{})["type"])

		_ = json.NewEncoder(w).Encode(messagesResponse(llmJSON, "end_turn"))
	}))
	defer server.Close()

	res, err := newTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{
		Image:       []byte("jpeg"),
		ContentType: "image/jpeg",
	})

	require.NoError(t, err)
	assert.Equal(t, "Corner Deli", res.Fields[domain.FieldMerchant])
	assert.Equal(t, "2.25", res.Fields[domain.FieldTotal])
	assert.Equal(t, "Bagel", res.Fields[domain.FieldItem])
	assert.Equal(t, "2.25", res.Fields[domain.FieldPrice])
	assert.InDelta(t, 0.8, res.Confidence[domain.FieldMerchant], 1e-9)
}

func TestClaudeExtractor_Extract_PDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		content := reqBody["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		assert.Equal(t, "document", content[0].(map[string]interface{})["type"])
		_ = json.NewEncoder(w).Encode(messagesResponse(`{"data":{}}`, "end_turn"))
	}))
	defer server.Close()

	res, err := newTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{
		Image:       []byte("%PDF-1.4"),
		ContentType: "application/pdf",
	})

	require.NoError(t, err)
	assert.True(t, res.IsEmpty())
}

func TestClaudeExtractor_Extract_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    interface{}
		kind    domain.ExtractionErrorKind
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]string{"type": "error"}, domain.ExtractionAuth, "status 401"},
		{"overloaded", 529, map[string]string{"type": "overloaded_error"}, domain.ExtractionVendor, "status 529"},
		{"truncated", http.StatusOK, messagesResponse(`{"data":`, "max_tokens"), domain.ExtractionResponse, "truncated"},
		{"empty", http.StatusOK, map[string]interface{}{"content": []interface{}{}}, domain.ExtractionResponse, "empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			_, err := newTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{
				Image:       []byte("png"),
				ContentType: "image/png",
			})

			var extErr *domain.ExtractionError
			require.True(t, errors.As(err, &extErr))
			assert.Equal(t, tt.kind, extErr.Kind)
			assert.Equal(t, "claude", extErr.Provider)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestClaudeExtractor_Extract_UnsupportedContentType(t *testing.T) {
	_, err := newTestExtractor("http://unused.invalid").Extract(context.Background(), port.ExtractInput{
		Image:       []byte("BM"),
		ContentType: "image/bmp",
	})

	assert.ErrorIs(t, err, domain.ErrUnsupportedFile)
	var extErr *domain.ExtractionError
	assert.False(t, errors.As(err, &extErr))
}
