// Package sample provides a maintenance-mode extractor that returns a fixed
// demonstration receipt without contacting any external service.
package sample

import (
	"context"

	"receiptcsv/internal/config"
	"receiptcsv/internal/domain"
	"receiptcsv/internal/port"
)

const modelName = "sample"

// Extractor implements port.ReceiptExtractor with canned data.
type Extractor struct{}

// NewExtractor creates a sample extractor. The config is accepted for
// signature parity with the other providers.
func NewExtractor(_ *config.ExtractorConfig) *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, _ port.ExtractInput) (*domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewExtractionError(modelName, domain.ExtractionNetwork, err)
	}
	return Receipt(), nil
}

// Receipt returns the demonstration receipt.
func Receipt() *domain.ExtractionResult {
	return &domain.ExtractionResult{
		ReceiptType: "receipt",
		Fields: map[string]string{
			domain.FieldDate:     "2024-01-15",
			domain.FieldMerchant: "Sample Store",
			domain.FieldItem:     "Coffee; Sandwich; Tax",
			domain.FieldPrice:    "4.50; 8.95; 1.25",
			domain.FieldTotal:    "14.70",
		},
		Confidence: map[string]float64{},
		Items: []domain.LineItem{
			{Description: "Coffee", Price: "4.50"},
			{Description: "Sandwich", Price: "8.95"},
			{Description: "Tax", Price: "1.25"},
		},
		ModelUsed: modelName,
	}
}
