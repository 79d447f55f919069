package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration, loaded once at startup from the
// environment (with an optional .env file for local development).
type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	Security      SecurityConfig
	Bucketing     BucketingConfig
}

type ServerConfig struct {
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Brokers     []string
	AuditTopic  string
	AlertsTopic string
	GroupID     string
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type ElasticsearchConfig struct {
	URL         string
	Username    string
	Password    string
	EventsIndex string
}

// SecurityConfig tunes the monitoring pipeline itself.
type SecurityConfig struct {
	// PageLimit caps how many audit rows one refresh pulls; the upstream
	// page size the dashboard was built around.
	PageLimit int
	// StatsCacheTTL bounds how stale a cached snapshot may get.
	StatsCacheTTL time.Duration
	// ReportTimezone is the IANA zone that "today" and the hourly
	// histogram are computed in.
	ReportTimezone string
}

type BucketingConfig struct {
	EventBuckets int
}

// LoadConfig reads configuration from the environment. Missing values fall
// back to local-development defaults; a .env file is honored when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: GetEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
			Domain:       GetEnv("SERVER_DOMAIN", ""),
			CertFile:     GetEnv("SERVER_CERT_FILE", ""),
			KeyFile:      GetEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  GetEnv("SERVER_AUTOCERT_DIR", "/var/cache/autocert"),
			Email:        GetEnv("SERVER_ACME_EMAIL", ""),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  GetEnv("LOG_LEVEL", "info"),
			Format: GetEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:      GetEnv("REDIS_URL", "redis://localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvList("KAFKA_BROKERS", "localhost:9092"),
			AuditTopic:  GetEnv("KAFKA_AUDIT_TOPIC", "audit.events"),
			AlertsTopic: GetEnv("KAFKA_ALERTS_TOPIC", "security.alerts"),
			GroupID:     GetEnv("KAFKA_GROUP_ID", "secmon-ingest"),
		},
		Clickhouse: ClickhouseConfig{
			URL:      GetEnv("CLICKHOUSE_URL", "http://localhost:9000"),
			Username: GetEnv("CLICKHOUSE_USERNAME", "default"),
			Password: GetEnv("CLICKHOUSE_PASSWORD", ""),
			Database: GetEnv("CLICKHOUSE_DATABASE", "secmon"),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:         GetEnv("ELASTICSEARCH_URL", "https://localhost:9200"),
			Username:    GetEnv("ELASTICSEARCH_USERNAME", "elastic"),
			Password:    GetEnv("ELASTICSEARCH_PASSWORD", ""),
			EventsIndex: GetEnv("ELASTICSEARCH_EVENTS_INDEX", "security-events"),
		},
		Security: SecurityConfig{
			PageLimit:      getEnvInt("SECMON_PAGE_LIMIT", 100),
			StatsCacheTTL:  getEnvDuration("SECMON_STATS_CACHE_TTL", 60*time.Second),
			ReportTimezone: GetEnv("SECMON_REPORT_TIMEZONE", "UTC"),
		},
		Bucketing: BucketingConfig{
			EventBuckets: getEnvInt("EVENT_BUCKETS", 16),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return !c.IsProduction()
}

func (c *Config) GetServerAddress() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// ReportLocation resolves the configured reporting timezone, falling back to
// UTC when the zone name is unknown.
func (c *Config) ReportLocation() *time.Location {
	loc, err := time.LoadLocation(c.Security.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetEnv returns the environment value for key, or fallback when unset.
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := GetEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
