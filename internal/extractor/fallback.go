package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"receiptcsv/internal/domain"
	"receiptcsv/internal/port"
)

// defaultCooldown is used when a rate-limited provider sends no Retry-After.
const defaultCooldown = 30 * time.Second

// circuitState tracks rate-limit backoff for a single extractor.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackExtractor tries extractors in order, skipping those that were rate
// limited until their Retry-After has passed. Rate-limit, network and vendor
// failures move on to the next extractor, as does an extractor that does not
// accept the file type. Auth and response failures are returned as they are.
// It implements port.ReceiptExtractor.
type FallbackExtractor struct {
	extractors []port.ReceiptExtractor
	circuits   []*circuitState
	names      []string
	now        func() time.Time
}

// NewFallbackExtractor creates a FallbackExtractor from an ordered list of extractors and their names.
func NewFallbackExtractor(extractors []port.ReceiptExtractor, names []string) *FallbackExtractor {
	circuits := make([]*circuitState, len(extractors))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackExtractor{
		extractors: extractors,
		circuits:   circuits,
		names:      names,
		now:        time.Now,
	}
}

func (f *FallbackExtractor) Extract(ctx context.Context, input port.ExtractInput) (*domain.ExtractionResult, error) {
	now := f.now()
	var lastErr, unsupportedErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, ext := range f.extractors {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			log.Debug().Str("provider", f.names[i]).Time("reset_at", resetAt).Msg("skipping rate-limited extractor")
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		res, err := ext.Extract(ctx, input)
		if err == nil {
			return res, nil
		}

		if errors.Is(err, domain.ErrUnsupportedFile) {
			log.Debug().Err(err).Str("provider", f.names[i]).Msg("extractor does not accept file type")
			unsupportedErr = err
			continue
		}

		log.Warn().Err(err).Str("provider", f.names[i]).Msg("extractor failed")
		lastErr = err

		var extErr *domain.ExtractionError
		if !errors.As(err, &extErr) {
			return nil, err
		}
		switch extErr.Kind {
		case domain.ExtractionRateLimited:
			cooldown := extErr.RetryAfter
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			resetAt := now.Add(cooldown)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		case domain.ExtractionNetwork, domain.ExtractionVendor:
			allRateLimited = false
		default:
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}

	if lastErr == nil && earliestReset.IsZero() && unsupportedErr != nil {
		return nil, unsupportedErr
	}
	if lastErr == nil || allRateLimited {
		retryAfter := earliestReset.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		e := domain.NewExtractionError("all", domain.ExtractionRateLimited, fmt.Errorf("all extractors rate limited"))
		e.RetryAfter = retryAfter
		return nil, e
	}

	return nil, lastErr
}
