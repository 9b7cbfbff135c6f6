package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"receiptcsv/internal/domain"
	"receiptcsv/internal/port"
)

// MockReceiptExtractor is a mock implementation of port.ReceiptExtractor.
type MockReceiptExtractor struct {
	mock.Mock
}

func (m *MockReceiptExtractor) Extract(ctx context.Context, input port.ExtractInput) (*domain.ExtractionResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionResult), args.Error(1)
}
