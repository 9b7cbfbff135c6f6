package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"receiptcsv/internal/config"
	"receiptcsv/internal/domain"
	"receiptcsv/internal/extractor"
	"receiptcsv/internal/port"
)

const (
	providerName      = "azure"
	defaultModel      = "prebuilt-receipt"
	defaultAPIVersion = "2023-07-31"
	apiKeyHeader      = "Ocp-Apim-Subscription-Key"
)

// Extractor implements port.ReceiptExtractor using the Azure AI Document
// Intelligence (Form Recognizer) analyze API.
type Extractor struct {
	endpoint     string
	apiKey       string
	model        string
	apiVersion   string
	locale       string
	pollInterval time.Duration
	timeout      time.Duration
	client       *http.Client
}

// NewExtractor creates an Azure-backed extractor from the extractor config.
func NewExtractor(cfg *config.ExtractorConfig) *Extractor {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &Extractor{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		model:        model,
		apiVersion:   apiVersion,
		locale:       cfg.Locale,
		pollInterval: cfg.PollInterval(),
		timeout:      cfg.Timeout(),
		client:       &http.Client{Timeout: cfg.Timeout()},
	}
}

// Extract submits the image for analysis and waits for the operation to finish.
func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*domain.ExtractionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	opURL, err := e.submit(ctx, input)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("provider", providerName).Str("model", e.model).Str("file", input.FileName).Msg("analyze operation started")

	op, err := e.wait(ctx, opURL)
	if err != nil {
		return nil, err
	}
	return toResult(op.AnalyzeResult, e.model), nil
}

func (e *Extractor) analyzeURL() string {
	q := url.Values{}
	q.Set("api-version", e.apiVersion)
	if e.locale != "" {
		q.Set("locale", e.locale)
	}
	return fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?%s", e.endpoint, url.PathEscape(e.model), q.Encode())
}

// submit starts an analyze operation and returns its Operation-Location.
func (e *Extractor) submit(ctx context.Context, input port.ExtractInput) (string, error) {
	contentType := input.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.analyzeURL(), bytes.NewReader(input.Image))
	if err != nil {
		return "", extractor.TransportError(providerName, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(apiKeyHeader, e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", extractor.TransportError(providerName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", extractor.TransportError(providerName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", extractor.StatusError(providerName, resp, body)
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", extractor.ResponseError(providerName, fmt.Errorf("analyze response has no Operation-Location header"))
	}
	return opURL, nil
}

// wait polls the analyze operation until it succeeds, fails, or ctx ends.
func (e *Extractor) wait(ctx context.Context, opURL string) (*analyzeOperation, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, extractor.TransportError(providerName, ctx.Err())
		case <-timer.C:
		}

		op, err := e.poll(ctx, opURL)
		if err != nil {
			return nil, err
		}

		switch op.Status {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return nil, extractor.ResponseError(providerName, fmt.Errorf("succeeded operation has no analyzeResult"))
			}
			return op, nil
		case "failed", "canceled":
			msg := "analyze operation " + op.Status
			if op.Error != nil {
				msg = fmt.Sprintf("%s: %s: %s", msg, op.Error.Code, op.Error.Message)
			}
			return nil, domain.NewExtractionError(providerName, domain.ExtractionVendor, fmt.Errorf("%s", msg))
		case "notStarted", "running":
			timer.Reset(e.pollInterval)
		default:
			return nil, extractor.ResponseError(providerName, fmt.Errorf("unexpected operation status %q", op.Status))
		}
	}
}

func (e *Extractor) poll(ctx context.Context, opURL string) (*analyzeOperation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, http.NoBody)
	if err != nil {
		return nil, extractor.TransportError(providerName, fmt.Errorf("creating poll request: %w", err))
	}
	req.Header.Set(apiKeyHeader, e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, extractor.TransportError(providerName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, extractor.TransportError(providerName, fmt.Errorf("reading poll response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, extractor.StatusError(providerName, resp, body)
	}

	var op analyzeOperation
	if err := json.Unmarshal(body, &op); err != nil {
		return nil, extractor.ResponseError(providerName, fmt.Errorf("unmarshaling poll response: %w (raw: %s)", err, extractor.Truncate(string(body), 500)))
	}
	return &op, nil
}
