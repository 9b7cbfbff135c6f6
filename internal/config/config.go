package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"receiptcsv/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Extractor ExtractorConfig
	Fallback  ExtractorConfig
	Session   SessionConfig
	Upload    UploadConfig
	Template  TemplateConfig
	Archive   ArchiveConfig
	S3        S3Config
	CORS      CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ExtractorConfig holds settings for the document-analysis service.
type ExtractorConfig struct {
	Provider       string `mapstructure:"provider"`
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	APIVersion     string `mapstructure:"api_version"`
	Locale         string `mapstructure:"locale"`
	TimeoutSecs    int    `mapstructure:"timeout_secs"`
	PollIntervalMS int    `mapstructure:"poll_interval_ms"`

	// LoadErr records a .env or secrets file that could not be read.
	// Validate reports it ahead of any missing credential.
	LoadErr error `mapstructure:"-"`
}

// Timeout returns the per-call deadline for the vendor service.
func (e *ExtractorConfig) Timeout() time.Duration {
	if e.TimeoutSecs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(e.TimeoutSecs) * time.Second
}

// PollInterval returns the delay between analyze-operation status checks.
func (e *ExtractorConfig) PollInterval() time.Duration {
	if e.PollIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(e.PollIntervalMS) * time.Millisecond
}

// Validate checks that the credentials required by the selected provider are
// present. It returns a *domain.ConfigurationError otherwise.
func (e *ExtractorConfig) Validate() error {
	if e.LoadErr != nil {
		return e.LoadErr
	}
	var missing []string
	switch e.Provider {
	case "sample":
		return nil
	case "openai", "claude", "gemini":
		if strings.TrimSpace(e.APIKey) == "" {
			missing = append(missing, "RECEIPTS_EXTRACTOR_API_KEY")
		}
	case "azure", "":
		if strings.TrimSpace(e.Endpoint) == "" {
			missing = append(missing, "AZURE_FORM_RECOGNIZER_ENDPOINT")
		}
		if strings.TrimSpace(e.APIKey) == "" {
			missing = append(missing, "AZURE_FORM_RECOGNIZER_KEY")
		}
	default:
		return &domain.ConfigurationError{Reason: "unknown extractor provider " + e.Provider}
	}
	if len(missing) > 0 {
		return &domain.ConfigurationError{Missing: missing}
	}
	return nil
}

// DefaultSessionSecret signs session tokens when RECEIPTS_SESSION_SECRET is unset.
const DefaultSessionSecret = "change-me-in-production"

// SessionConfig holds browser session settings.
type SessionConfig struct {
	Secret       string        `mapstructure:"secret"`
	TTL          time.Duration `mapstructure:"ttl"`
	CacheSizeMB  int           `mapstructure:"cache_size_mb"`
	CookieName   string        `mapstructure:"cookie_name"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

// UsesDefaultSecret reports whether tokens are signed with DefaultSessionSecret.
func (s *SessionConfig) UsesDefaultSecret() bool {
	return s.Secret == DefaultSessionSecret
}

// UploadConfig holds upload limits.
type UploadConfig struct {
	MaxFileSizeMB int64 `mapstructure:"max_file_size_mb"`
}

// MaxBytes returns the upload limit in bytes.
func (u *UploadConfig) MaxBytes() int64 {
	return u.MaxFileSizeMB * 1024 * 1024
}

// TemplateConfig holds the optional default template location.
type TemplateConfig struct {
	DefaultPath string `mapstructure:"default_path"`
}

// ArchiveConfig toggles storing uploaded receipt images in object storage.
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from environment variables with the RECEIPTS_ prefix.
// A .env file in the working directory is loaded first without overriding the
// environment. Missing extractor credentials are then looked up in the secrets file.
// A .env or secrets file that cannot be parsed does not fail Load; it is kept in
// Extractor.LoadErr so the server starts with extraction disabled.
func Load() (*Config, error) {
	var loadErr error
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		loadErr = &domain.ConfigurationError{Reason: "reading .env file: " + err.Error()}
	}

	v := viper.New()
	v.SetEnvPrefix("RECEIPTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8501")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Extractor defaults
	v.SetDefault("extractor.provider", "azure")
	v.SetDefault("extractor.endpoint", "")
	v.SetDefault("extractor.api_key", "")
	v.SetDefault("extractor.model", "")
	v.SetDefault("extractor.api_version", "2023-07-31")
	v.SetDefault("extractor.locale", "")
	v.SetDefault("extractor.timeout_secs", 120)
	v.SetDefault("extractor.poll_interval_ms", 1000)

	// Optional second extractor tried when the first is rate limited or unavailable
	v.SetDefault("fallback.provider", "")
	v.SetDefault("fallback.endpoint", "")
	v.SetDefault("fallback.api_key", "")
	v.SetDefault("fallback.model", "")

	// Session defaults
	v.SetDefault("session.secret", DefaultSessionSecret)
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("session.cache_size_mb", 256)
	v.SetDefault("session.cookie_name", "receipts_session")
	v.SetDefault("session.secure_cookie", false)

	v.SetDefault("upload.max_file_size_mb", 50)
	v.SetDefault("template.default_path", "")
	v.SetDefault("archive.enabled", false)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "receipts-archive")
	v.SetDefault("s3.endpoint", "")

	v.SetDefault("cors.allowed_origins", "http://localhost:8501,http://127.0.0.1:8501")

	// Bind environment variables explicitly for nested keys. The extractor
	// credentials also accept the Azure Form Recognizer variable names.
	envBindings := map[string][]string{
		"server.port":                {"RECEIPTS_SERVER_PORT"},
		"server.read_timeout":        {"RECEIPTS_SERVER_READ_TIMEOUT"},
		"server.write_timeout":       {"RECEIPTS_SERVER_WRITE_TIMEOUT"},
		"server.environment":         {"RECEIPTS_SERVER_ENVIRONMENT"},
		"log.level":                  {"RECEIPTS_LOG_LEVEL"},
		"log.format":                 {"RECEIPTS_LOG_FORMAT"},
		"extractor.provider":         {"RECEIPTS_EXTRACTOR_PROVIDER"},
		"extractor.endpoint":         {"RECEIPTS_EXTRACTOR_ENDPOINT", "AZURE_FORM_RECOGNIZER_ENDPOINT"},
		"extractor.api_key":          {"RECEIPTS_EXTRACTOR_API_KEY", "AZURE_FORM_RECOGNIZER_KEY"},
		"extractor.model":            {"RECEIPTS_EXTRACTOR_MODEL"},
		"extractor.api_version":      {"RECEIPTS_EXTRACTOR_API_VERSION"},
		"extractor.locale":           {"RECEIPTS_EXTRACTOR_LOCALE"},
		"extractor.timeout_secs":     {"RECEIPTS_EXTRACTOR_TIMEOUT_SECS"},
		"extractor.poll_interval_ms": {"RECEIPTS_EXTRACTOR_POLL_INTERVAL_MS"},
		"fallback.provider":          {"RECEIPTS_FALLBACK_PROVIDER"},
		"fallback.endpoint":          {"RECEIPTS_FALLBACK_ENDPOINT"},
		"fallback.api_key":           {"RECEIPTS_FALLBACK_API_KEY"},
		"fallback.model":             {"RECEIPTS_FALLBACK_MODEL"},
		"session.secret":             {"RECEIPTS_SESSION_SECRET"},
		"session.ttl":                {"RECEIPTS_SESSION_TTL"},
		"session.cache_size_mb":      {"RECEIPTS_SESSION_CACHE_SIZE_MB"},
		"session.cookie_name":        {"RECEIPTS_SESSION_COOKIE_NAME"},
		"session.secure_cookie":      {"RECEIPTS_SESSION_SECURE_COOKIE"},
		"upload.max_file_size_mb":    {"RECEIPTS_UPLOAD_MAX_FILE_SIZE_MB"},
		"template.default_path":      {"RECEIPTS_TEMPLATE_DEFAULT_PATH"},
		"archive.enabled":            {"RECEIPTS_ARCHIVE_ENABLED"},
		"s3.region":                  {"RECEIPTS_S3_REGION"},
		"s3.bucket":                  {"RECEIPTS_S3_BUCKET"},
		"s3.endpoint":                {"RECEIPTS_S3_ENDPOINT"},
		"s3.access_key":              {"RECEIPTS_S3_ACCESS_KEY"},
		"s3.secret_key":              {"RECEIPTS_S3_SECRET_KEY"},
		"cors.allowed_origins":       {"RECEIPTS_CORS_ALLOWED_ORIGINS"},
	}
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	cfg := &Config{}

	// Hosting platforms set a PORT env var. Use it if RECEIPTS_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("RECEIPTS_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Extractor = ExtractorConfig{
		Provider:       strings.ToLower(strings.TrimSpace(v.GetString("extractor.provider"))),
		Endpoint:       strings.TrimSpace(v.GetString("extractor.endpoint")),
		APIKey:         strings.TrimSpace(v.GetString("extractor.api_key")),
		Model:          v.GetString("extractor.model"),
		APIVersion:     v.GetString("extractor.api_version"),
		Locale:         v.GetString("extractor.locale"),
		TimeoutSecs:    v.GetInt("extractor.timeout_secs"),
		PollIntervalMS: v.GetInt("extractor.poll_interval_ms"),
	}
	cfg.Fallback = ExtractorConfig{
		Provider:       strings.ToLower(strings.TrimSpace(v.GetString("fallback.provider"))),
		Endpoint:       strings.TrimSpace(v.GetString("fallback.endpoint")),
		APIKey:         strings.TrimSpace(v.GetString("fallback.api_key")),
		Model:          v.GetString("fallback.model"),
		APIVersion:     cfg.Extractor.APIVersion,
		Locale:         cfg.Extractor.Locale,
		TimeoutSecs:    cfg.Extractor.TimeoutSecs,
		PollIntervalMS: cfg.Extractor.PollIntervalMS,
	}
	cfg.Session = SessionConfig{
		Secret:       v.GetString("session.secret"),
		TTL:          v.GetDuration("session.ttl"),
		CacheSizeMB:  v.GetInt("session.cache_size_mb"),
		CookieName:   v.GetString("session.cookie_name"),
		SecureCookie: v.GetBool("session.secure_cookie"),
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeMB: v.GetInt64("upload.max_file_size_mb"),
	}
	cfg.Template = TemplateConfig{
		DefaultPath: v.GetString("template.default_path"),
	}
	cfg.Archive = ArchiveConfig{
		Enabled: v.GetBool("archive.enabled"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	if loadErr == nil && (cfg.Extractor.Endpoint == "" || cfg.Extractor.APIKey == "") {
		secretsPath := os.Getenv("RECEIPTS_SECRETS_FILE")
		loadErr = applySecretsFile(&cfg.Extractor, secretsPath)
	}
	cfg.Extractor.LoadErr = loadErr

	return cfg, nil
}

// applySecretsFile fills empty extractor credentials from a secrets file with
// azure_endpoint and azure_key entries. A missing file is not an error.
func applySecretsFile(e *ExtractorConfig, path string) error {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("secrets")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath(".streamlit")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &domain.ConfigurationError{Reason: "reading secrets file: " + err.Error()}
	}

	if e.Endpoint == "" {
		e.Endpoint = strings.TrimSpace(v.GetString("azure_endpoint"))
	}
	if e.APIKey == "" {
		e.APIKey = strings.TrimSpace(v.GetString("azure_key"))
	}
	return nil
}
