package extractor

import (
	"fmt"

	"receiptcsv/internal/config"
	"receiptcsv/internal/port"
)

// ProviderFactory is a function that creates a ReceiptExtractor from the extractor config.
type ProviderFactory func(cfg *config.ExtractorConfig) (port.ReceiptExtractor, error)

// registry of extractor provider factories, populated explicitly via RegisterProvider.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers an extractor provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewExtractor creates a ReceiptExtractor using the factory registered for cfg.Provider.
func NewExtractor(cfg *config.ExtractorConfig) (port.ReceiptExtractor, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown extractor provider: %s", cfg.Provider)
	}
	return factory(cfg)
}
