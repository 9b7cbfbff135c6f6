package extractor_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptcsv/internal/config"
	"receiptcsv/internal/domain"
	"receiptcsv/internal/extractor"
	"receiptcsv/internal/port"
)

func TestStatusError_RateLimited(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"30"}}}
	err := extractor.StatusError("azure", resp, []byte("slow down"))

	assert.Equal(t, domain.ExtractionRateLimited, err.Kind)
	assert.Equal(t, 30*time.Second, err.RetryAfter)
	assert.Contains(t, err.Error(), "slow down")
	assert.True(t, errors.Is(err, domain.ErrExtraction))
}

func TestStatusError_AuthAndVendor(t *testing.T) {
	auth := extractor.StatusError("azure", &http.Response{StatusCode: http.StatusUnauthorized, Header: http.Header{}}, nil)
	assert.Equal(t, domain.ExtractionAuth, auth.Kind)
	assert.Zero(t, auth.RetryAfter)

	vendor := extractor.StatusError("azure", &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}, nil)
	assert.Equal(t, domain.ExtractionVendor, vendor.Kind)
	assert.Equal(t, http.StatusBadGateway, vendor.StatusCode)
}

func TestTransportError_KeepsContextErrors(t *testing.T) {
	err := extractor.TransportError("azure", fmt.Errorf("get: %w", context.DeadlineExceeded))

	assert.Equal(t, domain.ExtractionNetwork, err.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, errors.Is(err, domain.ErrExtraction))
}

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 0, extractor.ParseRetryAfterHeader(""))
	assert.Equal(t, 30, extractor.ParseRetryAfterHeader("30"))
	assert.Equal(t, 0, extractor.ParseRetryAfterHeader("invalid"))
	assert.Equal(t, 0, extractor.ParseRetryAfterHeader("-5"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", extractor.Truncate("abc", 5))
	assert.Equal(t, "ab...", extractor.Truncate("abcdef", 2))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "14.70", extractor.FormatMoney(14.7))
	assert.Equal(t, "2", extractor.FormatQuantity(2))
	assert.Equal(t, "1.5", extractor.FormatQuantity(1.5))
	assert.Equal(t, "a; c", extractor.JoinNonEmpty([]string{"a", "", "c"}))
}

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, port.ExtractInput) (*domain.ExtractionResult, error) {
	return &domain.ExtractionResult{}, nil
}

func TestNewExtractor_Registry(t *testing.T) {
	extractor.RegisterProvider("stub-test", func(*config.ExtractorConfig) (port.ReceiptExtractor, error) {
		return stubExtractor{}, nil
	})

	ext, err := extractor.NewExtractor(&config.ExtractorConfig{Provider: "stub-test"})
	require.NoError(t, err)
	assert.IsType(t, stubExtractor{}, ext)

	_, err = extractor.NewExtractor(&config.ExtractorConfig{Provider: "nope"})
	assert.Error(t, err)
}
