package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"receiptcsv/internal/domain"
)

// StatusError classifies a non-2xx vendor response as a *domain.ExtractionError.
func StatusError(provider string, resp *http.Response, body []byte) *domain.ExtractionError {
	baseErr := fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, Truncate(string(body), 500))

	kind := domain.ExtractionVendor
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.ExtractionAuth
	case http.StatusTooManyRequests:
		kind = domain.ExtractionRateLimited
	}

	e := domain.NewExtractionError(provider, kind, baseErr)
	e.StatusCode = resp.StatusCode
	if kind == domain.ExtractionRateLimited {
		e.RetryAfter = time.Duration(ParseRetryAfterHeader(resp.Header.Get("Retry-After"))) * time.Second
	}
	return e
}

// TransportError wraps a failed HTTP round trip. Context cancellation and
// deadline errors are kept in the chain so callers can match them.
func TransportError(provider string, err error) *domain.ExtractionError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewExtractionError(provider, domain.ExtractionNetwork, fmt.Errorf("request aborted: %w", err))
	}
	return domain.NewExtractionError(provider, domain.ExtractionNetwork, fmt.Errorf("calling %s API: %w", provider, err))
}

// ResponseError reports a response body that could not be understood.
func ResponseError(provider string, err error) *domain.ExtractionError {
	return domain.NewExtractionError(provider, domain.ExtractionResponse, err)
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}

// Truncate shortens s to maxLen bytes, appending an ellipsis when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
