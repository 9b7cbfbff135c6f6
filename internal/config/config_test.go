package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptcsv/internal/config"
	"receiptcsv/internal/domain"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT",
		"RECEIPTS_SERVER_PORT",
		"RECEIPTS_EXTRACTOR_PROVIDER",
		"RECEIPTS_EXTRACTOR_ENDPOINT",
		"RECEIPTS_EXTRACTOR_API_KEY",
		"AZURE_FORM_RECOGNIZER_ENDPOINT",
		"AZURE_FORM_RECOGNIZER_KEY",
		"RECEIPTS_SECRETS_FILE",
		"RECEIPTS_CORS_ALLOWED_ORIGINS",
		"RECEIPTS_UPLOAD_MAX_FILE_SIZE_MB",
		"RECEIPTS_SESSION_TTL",
		"RECEIPTS_SESSION_SECRET",
		"RECEIPTS_FALLBACK_PROVIDER",
		"RECEIPTS_FALLBACK_API_KEY",
		"RECEIPTS_EXTRACTOR_TIMEOUT_SECS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8501", cfg.Server.Port)
	assert.Equal(t, "azure", cfg.Extractor.Provider)
	assert.Equal(t, "2023-07-31", cfg.Extractor.APIVersion)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, int64(50*1024*1024), cfg.Upload.MaxBytes())
	assert.Equal(t, []string{"http://localhost:8501", "http://127.0.0.1:8501"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 120*time.Second, cfg.Extractor.Timeout())
	assert.Equal(t, time.Second, cfg.Extractor.PollInterval())
}

func TestLoad_AzureVariableNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("AZURE_FORM_RECOGNIZER_ENDPOINT", " https://example.cognitiveservices.azure.com/ ")
	t.Setenv("AZURE_FORM_RECOGNIZER_KEY", "secret-key")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.cognitiveservices.azure.com/", cfg.Extractor.Endpoint)
	assert.Equal(t, "secret-key", cfg.Extractor.APIKey)
	assert.NoError(t, cfg.Extractor.Validate())
}

func TestLoad_PrefixedVariablesWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECEIPTS_EXTRACTOR_API_KEY", "prefixed")
	t.Setenv("AZURE_FORM_RECOGNIZER_KEY", "azure")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Extractor.APIKey)
}

func TestLoad_PortFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Port)

	t.Setenv("RECEIPTS_SERVER_PORT", ":7000")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Port)
}

func TestLoad_Fallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECEIPTS_FALLBACK_PROVIDER", " OpenAI ")
	t.Setenv("RECEIPTS_FALLBACK_API_KEY", "sk-test")
	t.Setenv("RECEIPTS_EXTRACTOR_TIMEOUT_SECS", "45")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Fallback.Provider)
	assert.Equal(t, "sk-test", cfg.Fallback.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Fallback.Timeout())
	assert.NoError(t, cfg.Fallback.Validate())
}

func TestLoad_SecretsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "secrets.toml")
	content := "azure_endpoint = \"https://secrets.example.com\"\nazure_key = \"from-file\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("RECEIPTS_SECRETS_FILE", path)
	t.Setenv("AZURE_FORM_RECOGNIZER_KEY", "from-env")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://secrets.example.com", cfg.Extractor.Endpoint)
	assert.Equal(t, "from-env", cfg.Extractor.APIKey)
}

func TestLoad_SecretsFileMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECEIPTS_SECRETS_FILE", filepath.Join(t.TempDir(), "nope.toml"))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Extractor.APIKey)
}

func TestLoad_SecretsFileMalformed(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "secrets.toml")
	require.NoError(t, os.WriteFile(path, []byte("azure_key = = broken"), 0o600))
	t.Setenv("RECEIPTS_SECRETS_FILE", path)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	err = cfg.Extractor.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "reading secrets file")
}

func TestLoad_DotEnvMalformed(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AZURE_FORM_RECOGNIZER_KEY='unterminated\n"), 0o600))
	t.Chdir(dir)

	cfg, err := config.Load()
	require.NoError(t, err)

	err = cfg.Extractor.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "reading .env file")
}

func TestExtractorConfig_Validate_LoadErrFirst(t *testing.T) {
	loadErr := &domain.ConfigurationError{Reason: "reading secrets file: bad"}
	cfg := config.ExtractorConfig{Provider: "azure", LoadErr: loadErr}

	assert.Same(t, loadErr, cfg.Validate())
}

func TestSessionConfig_UsesDefaultSecret(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.Session.UsesDefaultSecret())

	t.Setenv("RECEIPTS_SESSION_SECRET", "s3cret")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.Session.UsesDefaultSecret())
}

func TestExtractorConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ExtractorConfig
		missing []string
		wantErr bool
	}{
		{"azure complete", config.ExtractorConfig{Provider: "azure", Endpoint: "https://x", APIKey: "k"}, nil, false},
		{"azure missing both", config.ExtractorConfig{Provider: "azure"}, []string{"AZURE_FORM_RECOGNIZER_ENDPOINT", "AZURE_FORM_RECOGNIZER_KEY"}, true},
		{"blank key", config.ExtractorConfig{Provider: "", Endpoint: "https://x", APIKey: "   "}, []string{"AZURE_FORM_RECOGNIZER_KEY"}, true},
		{"openai missing key", config.ExtractorConfig{Provider: "openai"}, []string{"RECEIPTS_EXTRACTOR_API_KEY"}, true},
		{"gemini missing key", config.ExtractorConfig{Provider: "gemini"}, []string{"RECEIPTS_EXTRACTOR_API_KEY"}, true},
		{"claude complete", config.ExtractorConfig{Provider: "claude", APIKey: "k"}, nil, false},
		{"sample", config.ExtractorConfig{Provider: "sample"}, nil, false},
		{"unknown provider", config.ExtractorConfig{Provider: "tesseract"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cfgErr *domain.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.missing, cfgErr.Missing)
		})
	}
}
