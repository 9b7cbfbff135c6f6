package port

import (
	"context"

	"receiptcsv/internal/domain"
)

// ExtractInput carries one receipt image to the document-analysis service.
type ExtractInput struct {
	Image       []byte
	ContentType string
	FileName    string
}

// ReceiptExtractor abstracts the external document-analysis service.
// Failures are returned as *domain.ExtractionError.
type ReceiptExtractor interface {
	Extract(ctx context.Context, input ExtractInput) (*domain.ExtractionResult, error)
}
