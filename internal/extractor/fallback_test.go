package extractor_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"receiptcsv/internal/domain"
	"receiptcsv/internal/extractor"
	"receiptcsv/internal/port"
	"receiptcsv/mocks"
)

func rateLimited(provider string, retry time.Duration) error {
	e := domain.NewExtractionError(provider, domain.ExtractionRateLimited, errors.New("429"))
	e.RetryAfter = retry
	return e
}

func TestFallbackExtractor_PrimarySucceeds(t *testing.T) {
	primary := new(mocks.MockReceiptExtractor)
	secondary := new(mocks.MockReceiptExtractor)
	want := &domain.ExtractionResult{Fields: map[string]string{domain.FieldTotal: "1.00"}}
	primary.On("Extract", mock.Anything, mock.Anything).Return(want, nil)

	f := extractor.NewFallbackExtractor([]port.ReceiptExtractor{primary, secondary}, []string{"azure", "openai"})
	got, err := f.Extract(context.Background(), port.ExtractInput{})

	require.NoError(t, err)
	assert.Same(t, want, got)
	secondary.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestFallbackExtractor_RateLimitOpensCircuit(t *testing.T) {
	primary := new(mocks.MockReceiptExtractor)
	secondary := new(mocks.MockReceiptExtractor)
	want := &domain.ExtractionResult{}
	primary.On("Extract", mock.Anything, mock.Anything).Return(nil, rateLimited("azure", time.Minute)).Once()
	secondary.On("Extract", mock.Anything, mock.Anything).Return(want, nil)

	f := extractor.NewFallbackExtractor([]port.ReceiptExtractor{primary, secondary}, []string{"azure", "openai"})

	_, err := f.Extract(context.Background(), port.ExtractInput{})
	require.NoError(t, err)
	_, err = f.Extract(context.Background(), port.ExtractInput{})
	require.NoError(t, err)

	primary.AssertNumberOfCalls(t, "Extract", 1)
	secondary.AssertNumberOfCalls(t, "Extract", 2)
}

func TestFallbackExtractor_AllRateLimited(t *testing.T) {
	primary := new(mocks.MockReceiptExtractor)
	secondary := new(mocks.MockReceiptExtractor)
	primary.On("Extract", mock.Anything, mock.Anything).Return(nil, rateLimited("azure", 20*time.Second))
	secondary.On("Extract", mock.Anything, mock.Anything).Return(nil, rateLimited("openai", 0))

	f := extractor.NewFallbackExtractor([]port.ReceiptExtractor{primary, secondary}, []string{"azure", "openai"})
	_, err := f.Extract(context.Background(), port.ExtractInput{})

	var extErr *domain.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, domain.ExtractionRateLimited, extErr.Kind)
	assert.Equal(t, 20*time.Second, extErr.RetryAfter)

	// Both circuits are open now, so nothing is called.
	_, err = f.Extract(context.Background(), port.ExtractInput{})
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, domain.ExtractionRateLimited, extErr.Kind)
	primary.AssertNumberOfCalls(t, "Extract", 1)
	secondary.AssertNumberOfCalls(t, "Extract", 1)
}

func TestFallbackExtractor_VendorFailureFallsThrough(t *testing.T) {
	primary := new(mocks.MockReceiptExtractor)
	secondary := new(mocks.MockReceiptExtractor)
	vendorErr := domain.NewExtractionError("azure", domain.ExtractionVendor, errors.New("500"))
	networkErr := domain.NewExtractionError("openai", domain.ExtractionNetwork, errors.New("dial"))
	primary.On("Extract", mock.Anything, mock.Anything).Return(nil, vendorErr)
	secondary.On("Extract", mock.Anything, mock.Anything).Return(nil, networkErr)

	f := extractor.NewFallbackExtractor([]port.ReceiptExtractor{primary, secondary}, []string{"azure", "openai"})
	_, err := f.Extract(context.Background(), port.ExtractInput{})

	assert.Same(t, networkErr, err)
}

func TestFallbackExtractor_AuthFailureStops(t *testing.T) {
	primary := new(mocks.MockReceiptExtractor)
	secondary := new(mocks.MockReceiptExtractor)
	authErr := domain.NewExtractionError("azure", domain.ExtractionAuth, errors.New("401"))
	primary.On("Extract", mock.Anything, mock.Anything).Return(nil, authErr)

	f := extractor.NewFallbackExtractor([]port.ReceiptExtractor{primary, secondary}, []string{"azure", "openai"})
	_, err := f.Extract(context.Background(), port.ExtractInput{})

	assert.Same(t, authErr, err)
	secondary.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestFallbackExtractor_UnsupportedTypeKeepsPrimaryError(t *testing.T) {
	primary := new(mocks.MockReceiptExtractor)
	secondary := new(mocks.MockReceiptExtractor)
	vendorErr := domain.NewExtractionError("azure", domain.ExtractionVendor, errors.New("503"))
	primary.On("Extract", mock.Anything, mock.Anything).Return(nil, vendorErr)
	secondary.On("Extract", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: openai does not accept application/pdf", domain.ErrUnsupportedFile))

	f := extractor.NewFallbackExtractor([]port.ReceiptExtractor{primary, secondary}, []string{"azure", "openai"})
	_, err := f.Extract(context.Background(), port.ExtractInput{ContentType: "application/pdf"})

	assert.Same(t, vendorErr, err)
}

func TestFallbackExtractor_UnsupportedTypeEverywhere(t *testing.T) {
	primary := new(mocks.MockReceiptExtractor)
	secondary := new(mocks.MockReceiptExtractor)
	primary.On("Extract", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: openai does not accept image/bmp", domain.ErrUnsupportedFile))
	secondary.On("Extract", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: claude does not accept image/bmp", domain.ErrUnsupportedFile))

	f := extractor.NewFallbackExtractor([]port.ReceiptExtractor{primary, secondary}, []string{"openai", "claude"})
	_, err := f.Extract(context.Background(), port.ExtractInput{ContentType: "image/bmp"})

	assert.ErrorIs(t, err, domain.ErrUnsupportedFile)
	var extErr *domain.ExtractionError
	assert.False(t, errors.As(err, &extErr))
}
