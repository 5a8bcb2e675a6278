package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values shared by the api, trigger and worker binaries.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	LogLevel           string
	DatabaseURL        string
	RedisURL           string
	MetricsCacheTTL    time.Duration
	NATSURL            string
	NATSSubjectPrefix  string
	JWTSecret          string
	JWTIssuer          string
	StorageEndpoint    string
	StorageAccessKey   string
	StorageSecretKey   string
	StorageBucket      string
	StorageRegion      string
	StorageUseSSL      bool
	PresignTTL         time.Duration
	QueueURL           string
	QueueName          string
	DeadLetterQueue    string
	QueueMaxDeliveries int
	QueueLeaseTimeout  time.Duration
	WorkerTimeout      time.Duration
	WorkerLeaseMargin  time.Duration
	WorkerMetricsPort  string
	AIProvider         string
	OpenAIAPIKey       string
	AIModel            string
	MaxCandidates      int
	MaxUploadKB        int
	EssayRatePerMinute int
	CORSAllowOrigins   []string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	return listenAddress(c.AppPort)
}

// WorkerMetricsAddress returns the address the worker exposes its Prometheus endpoint on.
func (c Config) WorkerMetricsAddress() string {
	return listenAddress(c.WorkerMetricsPort)
}

func listenAddress(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}

	return fmt.Sprintf(":%s", port)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("VOCAB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Vocabulary Essay Analyzer")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.cache_ttl", "5m")
	v.SetDefault("nats.subject_prefix", "vocab")
	v.SetDefault("storage.bucket", "vocab-essays")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.presign_ttl", "1h")
	v.SetDefault("queue.name", "essay-processing")
	v.SetDefault("queue.dead_letter_name", "essay-processing-dlq")
	v.SetDefault("queue.max_deliveries", 3)
	v.SetDefault("queue.lease_timeout", "6m")
	v.SetDefault("worker.timeout", "5m")
	v.SetDefault("worker.lease_margin", "30s")
	v.SetDefault("worker.metrics_port", "9102")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("analysis.max_candidates", 20)
	v.SetDefault("essay.max_upload_kb", 256)
	v.SetDefault("ratelimit.essay_per_minute", 30)

	durations := map[string]time.Duration{}
	for _, key := range []string{"metrics.cache_ttl", "storage.presign_ttl", "queue.lease_timeout", "worker.timeout", "worker.lease_margin"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		LogLevel:           strings.ToLower(v.GetString("log.level")),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		MetricsCacheTTL:    durations["metrics.cache_ttl"],
		NATSURL:            v.GetString("nats.url"),
		NATSSubjectPrefix:  v.GetString("nats.subject_prefix"),
		JWTSecret:          v.GetString("jwt.secret"),
		JWTIssuer:          v.GetString("jwt.issuer"),
		StorageEndpoint:    v.GetString("storage.endpoint"),
		StorageAccessKey:   v.GetString("storage.access_key"),
		StorageSecretKey:   v.GetString("storage.secret_key"),
		StorageBucket:      v.GetString("storage.bucket"),
		StorageRegion:      v.GetString("storage.region"),
		StorageUseSSL:      v.GetBool("storage.use_ssl"),
		PresignTTL:         durations["storage.presign_ttl"],
		QueueURL:           v.GetString("queue.url"),
		QueueName:          v.GetString("queue.name"),
		DeadLetterQueue:    v.GetString("queue.dead_letter_name"),
		QueueMaxDeliveries: v.GetInt("queue.max_deliveries"),
		QueueLeaseTimeout:  durations["queue.lease_timeout"],
		WorkerTimeout:      durations["worker.timeout"],
		WorkerLeaseMargin:  durations["worker.lease_margin"],
		WorkerMetricsPort:  v.GetString("worker.metrics_port"),
		AIProvider:         strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		AIModel:            v.GetString("ai.model"),
		MaxCandidates:      v.GetInt("analysis.max_candidates"),
		MaxUploadKB:        v.GetInt("essay.max_upload_kb"),
		EssayRatePerMinute: v.GetInt("ratelimit.essay_per_minute"),
		CORSAllowOrigins:   splitList(v.GetString("cors.allow_origins")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints between queue and worker settings.
func (c Config) Validate() error {
	if c.QueueMaxDeliveries <= 0 {
		return fmt.Errorf("queue max deliveries must be positive")
	}
	if c.WorkerTimeout <= 0 {
		return fmt.Errorf("worker timeout must be positive")
	}
	if c.QueueLeaseTimeout <= c.WorkerTimeout+c.WorkerLeaseMargin {
		return fmt.Errorf("queue lease timeout %s must exceed worker timeout %s plus margin %s", c.QueueLeaseTimeout, c.WorkerTimeout, c.WorkerLeaseMargin)
	}
	if c.MaxCandidates < 0 {
		return fmt.Errorf("analysis max candidates must not be negative")
	}

	return nil
}

// RequireAPI reports missing settings the HTTP API cannot start without.
func (c Config) RequireAPI() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database url must be provided")
	}

	return nil
}
