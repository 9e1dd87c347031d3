package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	Logging  LoggingConfig
	Cache    CacheConfig
	Pipeline PipelineConfig
	GitHub   GitHubConfig
	LLM      LLMConfig
	History  HistoryConfig
	Artifact ArtifactConfig
}

type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

type CacheConfig struct {
	// Backend selects the underlying key/value store: "memory" or "disk".
	Backend    string
	Dir        string
	MaxEntries int
	TTL        time.Duration
}

// PipelineConfig carries the tunable policy constants of the analysis run.
// None of the defaults are load-bearing invariants.
type PipelineConfig struct {
	// StageTimeout bounds the graph/classification stage before the cheap
	// fallback is substituted.
	StageTimeout time.Duration
	// LargeRepoFileLimit short-circuits straight to the fallback when the
	// catalog exceeds it.
	LargeRepoFileLimit int
	// FallbackFileLimit bounds how many files the cheap fallback classifies.
	FallbackFileLimit int
	// HeartbeatInterval paces keep-alive events on idle streams.
	HeartbeatInterval time.Duration
	// MaxContentBytes caps per-file content fetched into the catalog.
	MaxContentBytes int64
}

type GitHubConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

type LLMConfig struct {
	APIKey string
	Model  string
}

type HistoryConfig struct {
	DSN string
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

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port: *port,
		Env:  env,
		Logging: LoggingConfig{
			Level:  firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
			Format: firstNonEmpty(os.Getenv("LOG_FORMAT"), "text"),
			Output: firstNonEmpty(os.Getenv("LOG_OUTPUT"), "stdout"),
		},
		Cache: CacheConfig{
			Backend:    firstNonEmpty(os.Getenv("CACHE_BACKEND"), "memory"),
			Dir:        firstNonEmpty(os.Getenv("CACHE_DIR"), ".cache"),
			MaxEntries: getInt("CACHE_MAX_ENTRIES", 10),
			TTL:        getDuration("CACHE_TTL", time.Hour),
		},
		Pipeline: PipelineConfig{
			StageTimeout:       getDuration("STAGE_TIMEOUT", 30*time.Second),
			LargeRepoFileLimit: getInt("LARGE_REPO_FILE_LIMIT", 1000),
			FallbackFileLimit:  getInt("FALLBACK_FILE_LIMIT", 200),
			HeartbeatInterval:  getDuration("HEARTBEAT_INTERVAL", 15*time.Second),
			MaxContentBytes:    int64(getInt("MAX_CONTENT_BYTES", 200*1024)),
		},
		GitHub: GitHubConfig{
			Token:   strings.TrimSpace(firstNonEmpty(os.Getenv("GITHUB_TOKEN"), os.Getenv("GH_TOKEN"))),
			BaseURL: firstNonEmpty(strings.TrimSpace(os.Getenv("GITHUB_API_URL")), "https://api.github.com"),
			Timeout: getDuration("GITHUB_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			APIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:  firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.0-flash"),
		},
		History: HistoryConfig{
			DSN: strings.TrimSpace(os.Getenv("HISTORY_PG_DSN")),
		},
		Artifact: loadArtifactConfig(env),
	}, nil
}

func loadArtifactConfig(env string) ArtifactConfig {
	endpoint := resolveArtifactEndpoint(env)
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "repolens-reports"),
		UseSSL:    resolveArtifactUseSSL(env),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
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

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
