package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"receiptcsv/internal/config"
	"receiptcsv/internal/csvexport"
	"receiptcsv/internal/domain"
	"receiptcsv/internal/mapping"
	"receiptcsv/internal/port"
	"receiptcsv/internal/templates"
	"receiptcsv/internal/xlsxexport"
)

// WarningNoFields is reported when the vendor recognized nothing on a receipt.
const WarningNoFields = "no fields were recognized"

const lockStripes = 64

// TemplateUploadInput is the DTO for template uploads.
type TemplateUploadInput struct {
	FileName string
	File     io.Reader
}

// ReceiptUploadInput is the DTO for receipt image uploads.
type ReceiptUploadInput struct {
	FileName    string
	ContentType string
	Size        int64
	File        io.Reader
}

// ExtractOutcome is the result of processing one receipt image.
type ExtractOutcome struct {
	Result      domain.ExtractionResult
	Row         []domain.Cell
	Warning     string
	Image       []byte
	ContentType string
}

// Table is the session's results mapped onto its template.
type Table struct {
	Template domain.Template
	Layout   domain.RowLayout
	Results  []domain.ExtractionResult
	Rows     [][]domain.Cell
}

// Status describes whether receipts can currently be processed.
type Status struct {
	Provider    string   `json:"provider"`
	Ready       bool     `json:"ready"`
	Maintenance bool     `json:"maintenance"`
	ConfigError string   `json:"config_error,omitempty"`
	Missing     []string `json:"missing,omitempty"`
}

// ReceiptService defines the receipt-to-CSV workflow for one browser session.
type ReceiptService interface {
	Status() Status
	ConfigError() error
	Table(ctx context.Context, sessionID string) (*Table, error)
	LoadTemplate(ctx context.Context, sessionID string, input TemplateUploadInput) (*domain.Template, error)
	UseDefaultTemplate(ctx context.Context, sessionID string) (*domain.Template, error)
	SetLayout(ctx context.Context, sessionID string, layout domain.RowLayout) error
	Extract(ctx context.Context, sessionID string, input ReceiptUploadInput) (*ExtractOutcome, error)
	RemoveResult(ctx context.Context, sessionID string, resultID uuid.UUID) error
	Reset(ctx context.Context, sessionID string) error
	ExportCSV(ctx context.Context, sessionID string, w io.Writer) (string, error)
	ExportXLSX(ctx context.Context, sessionID string, w io.Writer) (string, error)
}

// ReceiptServiceDeps groups the collaborators of the receipt service.
type ReceiptServiceDeps struct {
	Extractor       port.ReceiptExtractor
	Sessions        port.SessionStore
	Archive         port.ObjectStorage
	ExtractorConfig *config.ExtractorConfig
	UploadConfig    *config.UploadConfig
	ArchiveConfig   *config.ArchiveConfig
	S3Config        *config.S3Config
	DefaultTemplate domain.Template
}

type receiptService struct {
	extractor   port.ReceiptExtractor
	sessions    port.SessionStore
	archive     port.ObjectStorage
	provider    string
	configErr   error
	maxBytes    int64
	archiveOn   bool
	bucket      string
	defaultTmpl domain.Template
	locks       [lockStripes]sync.Mutex
	now         func() time.Time
}

// NewReceiptService creates a new ReceiptService implementation. The extractor
// configuration is validated once here; while it is invalid every extraction
// fails with the same *domain.ConfigurationError and the extractor is never called.
func NewReceiptService(deps ReceiptServiceDeps) ReceiptService {
	s := &receiptService{
		extractor:   deps.Extractor,
		sessions:    deps.Sessions,
		archive:     deps.Archive,
		provider:    deps.ExtractorConfig.Provider,
		configErr:   deps.ExtractorConfig.Validate(),
		maxBytes:    deps.UploadConfig.MaxBytes(),
		defaultTmpl: deps.DefaultTemplate,
		now:         time.Now,
	}
	if s.provider == "" {
		s.provider = "azure"
	}
	if len(s.defaultTmpl.Columns) == 0 {
		s.defaultTmpl = domain.DefaultTemplate()
	}
	if deps.ArchiveConfig != nil && deps.ArchiveConfig.Enabled && deps.Archive != nil && deps.S3Config != nil {
		s.archiveOn = true
		s.bucket = deps.S3Config.Bucket
	}
	if s.extractor == nil && s.configErr == nil {
		s.configErr = &domain.ConfigurationError{Reason: "no extractor available for provider " + s.provider}
	}
	if s.configErr != nil {
		log.Warn().Err(s.configErr).Str("provider", s.provider).Msg("receipt extraction disabled")
	}
	return s
}

func (s *receiptService) Status() Status {
	st := Status{
		Provider:    s.provider,
		Ready:       s.configErr == nil,
		Maintenance: s.provider == "sample",
	}
	if s.configErr != nil {
		st.ConfigError = s.configErr.Error()
		var cfgErr *domain.ConfigurationError
		if errors.As(s.configErr, &cfgErr) {
			st.Missing = cfgErr.Missing
		}
	}
	return st
}

func (s *receiptService) ConfigError() error {
	return s.configErr
}

func (s *receiptService) Table(ctx context.Context, sessionID string) (*Table, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Table{
		Template: sess.Template,
		Layout:   sess.Layout,
		Results:  sess.Results,
		Rows:     mapping.Rows(sess.Template, sess.Results, sess.Layout),
	}, nil
}

func (s *receiptService) LoadTemplate(ctx context.Context, sessionID string, input TemplateUploadInput) (*domain.Template, error) {
	if input.File == nil {
		return nil, domain.ErrMissingFile
	}
	tpl, err := templates.Parse(input.FileName, io.LimitReader(input.File, s.maxBytes))
	if err != nil {
		return nil, err
	}

	err = s.update(ctx, sessionID, func(sess *domain.Session) error {
		sess.Template = tpl
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("session_id", sessionID).Str("template", tpl.Name).Int("columns", len(tpl.Columns)).Msg("template loaded")
	return &tpl, nil
}

func (s *receiptService) UseDefaultTemplate(ctx context.Context, sessionID string) (*domain.Template, error) {
	tpl := s.defaultTmpl
	err := s.update(ctx, sessionID, func(sess *domain.Session) error {
		sess.Template = tpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *receiptService) SetLayout(ctx context.Context, sessionID string, layout domain.RowLayout) error {
	return s.update(ctx, sessionID, func(sess *domain.Session) error {
		sess.Layout = layout
		return nil
	})
}

func (s *receiptService) Extract(ctx context.Context, sessionID string, input ReceiptUploadInput) (*ExtractOutcome, error) {
	// No vendor call while credentials are missing.
	if s.configErr != nil {
		return nil, s.configErr
	}

	if input.File == nil {
		return nil, domain.ErrMissingFile
	}
	if input.Size > s.maxBytes {
		return nil, domain.ErrFileTooLarge
	}

	image, err := io.ReadAll(io.LimitReader(input.File, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading receipt image: %w", err)
	}
	if len(image) == 0 {
		return nil, domain.ErrMissingFile
	}
	if int64(len(image)) > s.maxBytes {
		return nil, domain.ErrFileTooLarge
	}

	contentType, err := detectContentType(input.FileName, image)
	if err != nil {
		return nil, err
	}

	resultID := uuid.New()
	s.archiveImage(ctx, sessionID, resultID, input.FileName, contentType, image)

	log.Info().Str("session_id", sessionID).Str("file", input.FileName).Str("content_type", contentType).
		Int("bytes", len(image)).Str("provider", s.provider).Msg("extracting receipt")

	res, err := s.extractor.Extract(ctx, port.ExtractInput{
		Image:       image,
		ContentType: contentType,
		FileName:    input.FileName,
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Str("file", input.FileName).Msg("receipt extraction failed")
		return nil, err
	}

	res.ID = resultID
	res.SourceName = input.FileName
	res.ExtractedAt = s.now().UTC()
	if res.Fields == nil {
		res.Fields = map[string]string{}
	}

	var tpl domain.Template
	err = s.update(ctx, sessionID, func(sess *domain.Session) error {
		sess.Results = append(sess.Results, *res)
		tpl = sess.Template
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &ExtractOutcome{
		Result:      *res,
		Row:         mapping.Map(tpl, *res),
		Image:       image,
		ContentType: contentType,
	}
	if res.IsEmpty() {
		out.Warning = WarningNoFields
		log.Warn().Str("session_id", sessionID).Str("result_id", resultID.String()).Msg("receipt extraction recognized no fields")
	}
	return out, nil
}

func (s *receiptService) RemoveResult(ctx context.Context, sessionID string, resultID uuid.UUID) error {
	var sourceName string
	err := s.update(ctx, sessionID, func(sess *domain.Session) error {
		for _, r := range sess.Results {
			if r.ID == resultID {
				sourceName = r.SourceName
			}
		}
		if !sess.RemoveResult(resultID) {
			return domain.ErrResultNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteArchived(ctx, sessionID, resultID, sourceName)
	return nil
}

func (s *receiptService) Reset(ctx context.Context, sessionID string) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	for _, r := range sess.Results {
		s.deleteArchived(ctx, sessionID, r.ID, r.SourceName)
	}
	log.Info().Str("session_id", sessionID).Int("results", len(sess.Results)).Msg("session reset")
	return nil
}

func (s *receiptService) ExportCSV(ctx context.Context, sessionID string, w io.Writer) (string, error) {
	table, err := s.Table(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if err := csvexport.Export(w, table.Template, table.Rows); err != nil {
		return "", fmt.Errorf("exporting csv: %w", err)
	}
	return csvexport.BuildFilename(exportName(table.Template), "csv", s.now()), nil
}

func (s *receiptService) ExportXLSX(ctx context.Context, sessionID string, w io.Writer) (string, error) {
	table, err := s.Table(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if err := xlsxexport.Export(w, table.Template, table.Rows); err != nil {
		return "", fmt.Errorf("exporting xlsx: %w", err)
	}
	return csvexport.BuildFilename(exportName(table.Template), "xlsx", s.now()), nil
}

// exportName is the download base name for a template: its file name without
// extension, or empty for the built-in template.
func exportName(tpl domain.Template) string {
	if tpl.Name == domain.DefaultTemplate().Name {
		return ""
	}
	base := filepath.Base(tpl.Name)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// load returns the session, creating a fresh one when it is unknown or expired.
func (s *receiptService) load(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	now := s.now().UTC()
	return &domain.Session{
		ID:        sessionID,
		Template:  s.defaultTmpl,
		Layout:    domain.LayoutReceipt,
		Results:   []domain.ExtractionResult{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// update applies fn to the session under its stripe lock and saves it.
// When fn fails nothing is saved.
func (s *receiptService) update(ctx context.Context, sessionID string, fn func(*domain.Session) error) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := fn(sess); err != nil {
		return err
	}
	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *receiptService) lock(sessionID string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(sessionID)%lockStripes]
}

// archiveImage stores the uploaded image when archiving is enabled.
// Failures are logged only.
func (s *receiptService) archiveImage(ctx context.Context, sessionID string, resultID uuid.UUID, fileName, contentType string, image []byte) {
	if !s.archiveOn {
		return
	}
	key := archiveKey(sessionID, resultID, fileName)

	_, err := s.archive.Upload(ctx, port.UploadInput{
		Bucket:      s.bucket,
		Key:         key,
		Body:        bytes.NewReader(image),
		ContentType: contentType,
		Size:        int64(len(image)),
	})
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Str("key", key).Msg("archiving receipt image failed")
		return
	}
	log.Debug().Str("key", key).Msg("receipt image archived")
}

// deleteArchived removes the archived image of a result when archiving is
// enabled. Failures are logged only.
func (s *receiptService) deleteArchived(ctx context.Context, sessionID string, resultID uuid.UUID, fileName string) {
	if !s.archiveOn {
		return
	}
	key := archiveKey(sessionID, resultID, fileName)
	if err := s.archive.Delete(ctx, s.bucket, key); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Str("key", key).Msg("deleting archived receipt image failed")
		return
	}
	log.Debug().Str("key", key).Msg("archived receipt image deleted")
}

func archiveKey(sessionID string, resultID uuid.UUID, fileName string) string {
	name := filepath.Base(fileName)
	if name == "." || name == "/" || name == "" {
		name = "receipt"
	}
	return fmt.Sprintf("sessions/%s/receipts/%s/%s", sessionID, resultID, name)
}

// detectContentType validates the upload by extension and magic bytes and
// returns the content type to send to the vendor.
func detectContentType(fileName string, image []byte) (string, error) {
	sniffed := http.DetectContentType(image)
	if _, ok := domain.AllowedContentTypes[sniffed]; ok {
		return sniffed, nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ct, ok := domain.AllowedImageTypes[ext]; ok && sniffed == "application/octet-stream" {
		// Formats without a registered signature (TIFF, HEIF) are passed through by extension.
		return ct, nil
	}
	return "", domain.ErrUnsupportedFile
}
