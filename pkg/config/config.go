package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Embedding EmbeddingConfig
	Search    SearchConfig
	RateLimit RateLimitConfig
	Topics    TopicsConfig
	Backfill  BackfillConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EmbeddingConfig configures the external text-embedding provider.
type EmbeddingConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// SearchConfig tunes vector similarity search.
type SearchConfig struct {
	MatchThreshold float64
	MatchCount     int
	MinQueryLength int
}

// RateLimitConfig bounds embedding-backed features per window.
type RateLimitConfig struct {
	Enabled  bool
	Window   time.Duration
	PerKey   int
	KeySpace string
}

// TopicsConfig controls topic creation policy.
type TopicsConfig struct {
	MemberCreate bool
}

// BackfillConfig tunes the embedding backfill queue.
type BackfillConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Embedding = EmbeddingConfig{
		BaseURL:    v.GetString("EMBEDDING_BASE_URL"),
		APIKey:     v.GetString("EMBEDDING_API_KEY"),
		Model:      v.GetString("EMBEDDING_MODEL"),
		Dimensions: v.GetInt("EMBEDDING_DIMENSIONS"),
		Timeout:    parseDuration(v.GetString("EMBEDDING_TIMEOUT"), 10*time.Second),
	}

	cfg.Search = SearchConfig{
		MatchThreshold: v.GetFloat64("SEARCH_MATCH_THRESHOLD"),
		MatchCount:     v.GetInt("SEARCH_MATCH_COUNT"),
		MinQueryLength: v.GetInt("SEARCH_MIN_QUERY_LENGTH"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
		Window:   parseDuration(v.GetString("RATE_LIMIT_WINDOW"), time.Minute),
		PerKey:   v.GetInt("RATE_LIMIT_PER_KEY"),
		KeySpace: v.GetString("RATE_LIMIT_KEYSPACE"),
	}

	cfg.Topics = TopicsConfig{
		MemberCreate: v.GetBool("TOPICS_MEMBER_CREATE"),
	}

	cfg.Backfill = BackfillConfig{
		Workers:    v.GetInt("BACKFILL_WORKERS"),
		MaxRetries: v.GetInt("BACKFILL_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("BACKFILL_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "streamsaga")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EMBEDDING_BASE_URL", "https://api.openai.com")
	v.SetDefault("EMBEDDING_API_KEY", "")
	v.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	v.SetDefault("EMBEDDING_DIMENSIONS", 1536)
	v.SetDefault("EMBEDDING_TIMEOUT", "10s")

	v.SetDefault("SEARCH_MATCH_THRESHOLD", 0.3)
	v.SetDefault("SEARCH_MATCH_COUNT", 5)
	v.SetDefault("SEARCH_MIN_QUERY_LENGTH", 4)

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_PER_KEY", 30)
	v.SetDefault("RATE_LIMIT_KEYSPACE", "ratelimit")

	v.SetDefault("TOPICS_MEMBER_CREATE", false)

	v.SetDefault("BACKFILL_WORKERS", 1)
	v.SetDefault("BACKFILL_MAX_RETRIES", 3)
	v.SetDefault("BACKFILL_RETRY_DELAY", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
