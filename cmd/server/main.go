package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"receiptcsv/internal/config"
	"receiptcsv/internal/domain"
	"receiptcsv/internal/extractor"
	"receiptcsv/internal/extractor/azure"
	"receiptcsv/internal/extractor/claude"
	"receiptcsv/internal/extractor/gemini"
	"receiptcsv/internal/extractor/openai"
	"receiptcsv/internal/extractor/sample"
	"receiptcsv/internal/handler"
	"receiptcsv/internal/logger"
	"receiptcsv/internal/port"
	"receiptcsv/internal/router"
	"receiptcsv/internal/service"
	"receiptcsv/internal/session"
	s3storage "receiptcsv/internal/storage/s3"
	"receiptcsv/internal/templates"
	"receiptcsv/internal/web"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.Log)
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		if cfg.Session.UsesDefaultSecret() {
			log.Warn().Msg("RECEIPTS_SESSION_SECRET is not set; session tokens are signed with the default secret")
		}
	}

	registerExtractors()

	// A missing credential leaves the server running with extraction disabled.
	var ext port.ReceiptExtractor
	if cfg.Extractor.Validate() == nil {
		ext, err = buildExtractor(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize extractor: %w", err)
		}
	}

	defaultTemplate := domain.DefaultTemplate()
	if cfg.Template.DefaultPath != "" {
		defaultTemplate, err = templates.LoadFile(cfg.Template.DefaultPath)
		if err != nil {
			return fmt.Errorf("failed to load default template: %w", err)
		}
	}

	// Initialize storage
	var archive port.ObjectStorage
	if cfg.Archive.Enabled {
		s3Client, err := s3storage.NewS3Client(context.Background(), &cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		archive = s3Client
	}

	sessions := session.NewMemoryStore(cfg.Session.CacheSizeMB*1024*1024, cfg.Session.TTL)
	tokens := session.NewTokenManager(cfg.Session.Secret, cfg.Session.TTL)

	// Initialize services
	receiptSvc := service.NewReceiptService(service.ReceiptServiceDeps{
		Extractor:       ext,
		Sessions:        sessions,
		Archive:         archive,
		ExtractorConfig: &cfg.Extractor,
		UploadConfig:    &cfg.Upload,
		ArchiveConfig:   &cfg.Archive,
		S3Config:        &cfg.S3,
		DefaultTemplate: defaultTemplate,
	})

	// Initialize handlers
	maxUpload := cfg.Upload.MaxBytes()
	receiptH := handler.NewReceiptHandler(receiptSvc, maxUpload)
	uiH := handler.NewUIHandler(receiptSvc, maxUpload)
	healthH := handler.NewHealthHandler(receiptSvc)

	pages, err := web.Templates()
	if err != nil {
		return fmt.Errorf("failed to parse page templates: %w", err)
	}

	// Setup router
	r := router.Setup(cfg, tokens, pages, receiptH, uiH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Port).Str("provider", receiptSvc.Status().Provider).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// registerExtractors makes every extractor provider available to extractor.NewExtractor.
func registerExtractors() {
	azureFactory := func(cfg *config.ExtractorConfig) (port.ReceiptExtractor, error) {
		return azure.NewExtractor(cfg), nil
	}
	extractor.RegisterProvider("azure", azureFactory)
	extractor.RegisterProvider("", azureFactory)
	extractor.RegisterProvider("openai", func(cfg *config.ExtractorConfig) (port.ReceiptExtractor, error) {
		return openai.NewExtractor(cfg), nil
	})
	extractor.RegisterProvider("claude", func(cfg *config.ExtractorConfig) (port.ReceiptExtractor, error) {
		return claude.NewExtractor(cfg), nil
	})
	extractor.RegisterProvider("gemini", func(cfg *config.ExtractorConfig) (port.ReceiptExtractor, error) {
		return gemini.NewExtractor(cfg), nil
	})
	extractor.RegisterProvider("sample", func(cfg *config.ExtractorConfig) (port.ReceiptExtractor, error) {
		return sample.NewExtractor(cfg), nil
	})
}

// buildExtractor creates the configured extractor, chained with the fallback
// provider when one is configured with usable credentials.
func buildExtractor(cfg *config.Config) (port.ReceiptExtractor, error) {
	primary, err := extractor.NewExtractor(&cfg.Extractor)
	if err != nil {
		return nil, err
	}
	if cfg.Fallback.Provider == "" {
		return primary, nil
	}
	if err := cfg.Fallback.Validate(); err != nil {
		log.Warn().Err(err).Str("provider", cfg.Fallback.Provider).Msg("fallback extractor disabled")
		return primary, nil
	}
	secondary, err := extractor.NewExtractor(&cfg.Fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	log.Info().Str("primary", cfg.Extractor.Provider).Str("fallback", cfg.Fallback.Provider).Msg("extractor fallback enabled")
	return extractor.NewFallbackExtractor(
		[]port.ReceiptExtractor{primary, secondary},
		[]string{cfg.Extractor.Provider, cfg.Fallback.Provider},
	), nil
}
