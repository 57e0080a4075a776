package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	llmclient "quill/internal/llmClient"
)

type Config struct {
	Port string
	Env  string

	DefaultProvider string
	DefaultModel    string
	RequestTimeout  time.Duration
	MaxRetries      int

	EnableCache bool
	CacheTTL    time.Duration
	CacheSize   int
	RedisURL    string

	CatalogFile string
	RubricFile  string

	LogLevel  slog.Level
	LogFormat string

	DatabaseURL string
	SQLitePath  string

	Providers map[llmclient.Provider]ProviderConfig
	Artifact  ArtifactConfig
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	RPS     float64
	Burst   int
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// fileConfig is the optional QUILL_CONFIG document. Environment variables
// take precedence over anything set here.
type fileConfig struct {
	Port            string  `yaml:"port"`
	Env             string  `yaml:"env"`
	DefaultProvider string  `yaml:"default_provider"`
	DefaultModel    string  `yaml:"default_model"`
	RequestTimeout  int     `yaml:"request_timeout"`
	MaxRetries      int     `yaml:"max_retries"`
	EnableCache     *bool   `yaml:"enable_cache"`
	CacheTTL        int     `yaml:"cache_ttl"`
	CacheSize       int     `yaml:"cache_size"`
	RedisURL        string  `yaml:"redis_url"`
	CatalogFile     string  `yaml:"catalog_file"`
	RubricFile      string  `yaml:"rubric_file"`
	LogLevel        string  `yaml:"log_level"`
	LogFormat       string  `yaml:"log_format"`
	DatabaseURL     string  `yaml:"database_url"`
	SQLitePath      string  `yaml:"sqlite_path"`
	Providers       map[string]struct {
		APIKey  string  `yaml:"api_key"`
		BaseURL string  `yaml:"base_url"`
		RPS     float64 `yaml:"rps"`
		Burst   int     `yaml:"burst"`
	} `yaml:"providers"`
}

// Load reads .env, the optional QUILL_CONFIG file and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var file fileConfig
	if path := strings.TrimSpace(os.Getenv("QUILL_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return fromEnv(file)
}

func fromEnv(file fileConfig) (*Config, error) {
	env := firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), file.Env, "local")

	port := firstNonEmpty(strings.TrimSpace(os.Getenv("PORT")), file.Port, ":8081")
	if !strings.HasPrefix(port, ":") && !strings.Contains(port, ":") {
		port = ":" + port
	}

	provider := firstNonEmpty(strings.TrimSpace(os.Getenv("DEFAULT_PROVIDER")), file.DefaultProvider, string(llmclient.OpenAI))
	if _, err := llmclient.ParseProvider(provider); err != nil {
		return nil, fmt.Errorf("config: DEFAULT_PROVIDER: %w", err)
	}

	timeout, err := envInt("REQUEST_TIMEOUT", file.RequestTimeout, 30)
	if err != nil {
		return nil, err
	}
	retries, err := envInt("MAX_RETRIES", file.MaxRetries, 3)
	if err != nil {
		return nil, err
	}
	ttl, err := envInt("CACHE_TTL", file.CacheTTL, 3600)
	if err != nil {
		return nil, err
	}
	size, err := envInt("CACHE_SIZE", file.CacheSize, 512)
	if err != nil {
		return nil, err
	}
	enableCache := true
	if file.EnableCache != nil {
		enableCache = *file.EnableCache
	}
	if raw := strings.TrimSpace(os.Getenv("ENABLE_CACHE")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("config: ENABLE_CACHE: %w", err)
		}
		enableCache = v
	}

	level, err := parseLevel(firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), file.LogLevel, "INFO"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            port,
		Env:             env,
		DefaultProvider: provider,
		DefaultModel:    firstNonEmpty(strings.TrimSpace(os.Getenv("DEFAULT_MODEL")), file.DefaultModel, "gpt-4o"),
		RequestTimeout:  time.Duration(timeout) * time.Second,
		MaxRetries:      retries,
		EnableCache:     enableCache,
		CacheTTL:        time.Duration(ttl) * time.Second,
		CacheSize:       size,
		RedisURL:        firstNonEmpty(strings.TrimSpace(os.Getenv("REDIS_URL")), file.RedisURL),
		CatalogFile:     firstNonEmpty(strings.TrimSpace(os.Getenv("CATALOG_FILE")), file.CatalogFile),
		RubricFile:      firstNonEmpty(strings.TrimSpace(os.Getenv("RUBRIC_FILE")), file.RubricFile),
		LogLevel:        level,
		LogFormat:       strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_FORMAT")), file.LogFormat, "text")),
		DatabaseURL:     firstNonEmpty(strings.TrimSpace(os.Getenv("DATABASE_URL")), file.DatabaseURL),
		SQLitePath:      firstNonEmpty(strings.TrimSpace(os.Getenv("SQLITE_PATH")), file.SQLitePath),
		Providers:       map[llmclient.Provider]ProviderConfig{},
		Artifact:        loadArtifactConfig(env),
	}

	for _, p := range llmclient.Providers() {
		fp := file.Providers[strings.ToLower(string(p))]
		pc := ProviderConfig{
			APIKey:  firstNonEmpty(apiKeyFromEnv(p), fp.APIKey),
			BaseURL: firstNonEmpty(baseURLFromEnv(p), fp.BaseURL),
			RPS:     fp.RPS,
			Burst:   fp.Burst,
		}
		prefix := envPrefix(p)
		if raw := strings.TrimSpace(os.Getenv(prefix + "_RPS")); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("config: %s_RPS: %w", prefix, err)
			}
			pc.RPS = v
		}
		burst, err := envInt(prefix+"_BURST", pc.Burst, 0)
		if err != nil {
			return nil, err
		}
		pc.Burst = burst
		cfg.Providers[p] = pc
	}
	return cfg, nil
}

func envPrefix(p llmclient.Provider) string {
	return strings.ToUpper(string(p))
}

func apiKeyFromEnv(p llmclient.Provider) string {
	if p == llmclient.Gemini {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")), strings.TrimSpace(os.Getenv("GEMINI_API_KEY")))
	}
	return strings.TrimSpace(os.Getenv(envPrefix(p) + "_API_KEY"))
}

func baseURLFromEnv(p llmclient.Provider) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix(p) + "_BASE_URL")); v != "" {
		return v
	}
	switch p {
	case llmclient.Ollama:
		return hostPort("OLLAMA", "localhost", "11434", "")
	case llmclient.LMStudio:
		return hostPort("LMSTUDIO", "localhost", "1234", "/v1")
	}
	return ""
}

// hostPort builds a local server URL from <P>_HOST and <P>_PORT. It returns
// "" when neither is set so the provider default applies.
func hostPort(prefix, host, port, suffix string) string {
	h := strings.TrimSpace(os.Getenv(prefix + "_HOST"))
	p := strings.TrimSpace(os.Getenv(prefix + "_PORT"))
	if h == "" && p == "" {
		return ""
	}
	h = firstNonEmpty(h, host)
	if !strings.Contains(h, "://") {
		h = "http://" + h
	}
	return h + ":" + firstNonEmpty(p, port) + suffix
}

// APIKey implements llm.CredentialProvider.
func (c *Config) APIKey(p llmclient.Provider) (string, bool) {
	v := c.Providers[p].APIKey
	return v, v != ""
}

// BaseURL implements llm.CredentialProvider.
func (c *Config) BaseURL(p llmclient.Provider) (string, bool) {
	v := c.Providers[p].BaseURL
	return v, v != ""
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.EqualFold(s, "WARNING") {
		s = "WARN"
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return l, nil
}

func envInt(name string, fileValue, def int) (int, error) {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("config: %s: %w", name, err)
		}
		return v, nil
	}
	if fileValue != 0 {
		return fileValue, nil
	}
	return def, nil
}

func loadArtifactConfig(env string) ArtifactConfig {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return localArtifactConfig()
	}
	endpoint := strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "quill-reports"),
		UseSSL:    resolveArtifactUseSSL(),
	}
}

func resolveArtifactUseSSL() bool {
	raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
