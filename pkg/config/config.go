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

	ERP           ERPConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Session       SessionConfig
	Reference     ReferenceConfig
	SubmissionLog SubmissionLogConfig
}

// ERPConfig points at the upstream school ERP REST API.
type ERPConfig struct {
	BaseURL             string
	Timeout             time.Duration
	WorkloadConcurrency int
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

// JWTConfig is only used to verify inbound bearer tokens; an empty secret
// disables verification and tokens are treated as opaque.
type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SessionConfig governs operator workspaces and their persisted selection.
type SessionConfig struct {
	IdleTTL         time.Duration
	StaleDateWindow time.Duration
	PreferenceTTL   time.Duration
}

// ReferenceConfig controls caching of teachers, periods and holidays.
type ReferenceConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// SubmissionLogConfig toggles the postgres-backed submission log.
type SubmissionLogConfig struct {
	Enabled bool
	Workers int
	Retries int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	concurrency := v.GetInt("ERP_WORKLOAD_CONCURRENCY")
	if concurrency <= 0 {
		concurrency = 8
	}
	cfg.ERP = ERPConfig{
		BaseURL:             strings.TrimRight(v.GetString("ERP_BASE_URL"), "/"),
		Timeout:             parseDuration(v.GetString("ERP_TIMEOUT"), 15*time.Second),
		WorkloadConcurrency: concurrency,
	}

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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Session = SessionConfig{
		IdleTTL:         parseDuration(v.GetString("SESSION_IDLE_TTL"), 2*time.Hour),
		StaleDateWindow: parseDuration(v.GetString("SESSION_STALE_DATE_WINDOW"), 7*24*time.Hour),
		PreferenceTTL:   parseDuration(v.GetString("SESSION_PREFERENCE_TTL"), 30*24*time.Hour),
	}

	cfg.Reference = ReferenceConfig{
		CacheEnabled: v.GetBool("ENABLE_REFERENCE_CACHE"),
		CacheTTL:     parseDuration(v.GetString("REFERENCE_CACHE_TTL"), 10*time.Minute),
	}

	cfg.SubmissionLog = SubmissionLogConfig{
		Enabled: v.GetBool("ENABLE_SUBMISSION_LOG"),
		Workers: v.GetInt("SUBMISSION_LOG_WORKERS"),
		Retries: v.GetInt("SUBMISSION_LOG_RETRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("ERP_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("ERP_TIMEOUT", "15s")
	v.SetDefault("ERP_WORKLOAD_CONCURRENCY", 8)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "substitution_console")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SESSION_IDLE_TTL", "2h")
	v.SetDefault("SESSION_STALE_DATE_WINDOW", "168h")
	v.SetDefault("SESSION_PREFERENCE_TTL", "720h")

	v.SetDefault("ENABLE_REFERENCE_CACHE", true)
	v.SetDefault("REFERENCE_CACHE_TTL", "10m")

	v.SetDefault("ENABLE_SUBMISSION_LOG", false)
	v.SetDefault("SUBMISSION_LOG_WORKERS", 1)
	v.SetDefault("SUBMISSION_LOG_RETRIES", 3)
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file")
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
