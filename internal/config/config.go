package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Storage     StorageConfig     `yaml:"storage"`
	Events      EventsConfig      `yaml:"events"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Service     ServiceConfig     `yaml:"service"`
}

type HTTPConfig struct {
	Port          int    `yaml:"port"`
	ShutdownGrace int    `yaml:"shutdown_grace_seconds"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend"`
	DataDir       string `yaml:"data_dir"`
	ProductsFile  string `yaml:"products_file"`
	CustomersFile string `yaml:"customers_file"`
	SalesFile     string `yaml:"sales_file"`
}

type EventsConfig struct {
	RabbitMQURL     string `yaml:"rabbitmq_url"`
	Queue           string `yaml:"queue"`
	ChannelPoolSize int    `yaml:"channel_pool_size"`
}

type IdempotencyConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
	MaxEntries int `yaml:"max_entries"`
}

type TelemetryConfig struct {
	LogLevel      string  `yaml:"log_level"`
	LogFormat     string  `yaml:"log_format"`
	OTelEndpoint  string  `yaml:"otlp_endpoint"`
	EnableTracing bool    `yaml:"enable_tracing"`
	EnableMetrics bool    `yaml:"enable_metrics"`
	SampleRate    float64 `yaml:"sample_rate"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

const (
	BackendFile   = "file"
	BackendMemory = "memory"
)

const (
	defaultHTTPPort        = 5000
	defaultShutdownGrace   = 15
	defaultAllowedOrigin   = "*"
	defaultDataDir         = "data"
	defaultQueue           = "sales_completed"
	defaultChannelPoolSize = 4
	defaultIdempotencyTTL  = 24 * 60 * 60
	defaultIdempotencyMax  = 10_000
	defaultServiceName     = "ferretec-api"
	defaultServiceVersion  = "0.1.0"
	defaultEnvironment     = "development"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultOTelSampleRate  = 1.0
)

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:          defaultHTTPPort,
			ShutdownGrace: defaultShutdownGrace,
			AllowedOrigin: defaultAllowedOrigin,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			DataDir: defaultDataDir,
		},
		Events: EventsConfig{
			Queue:           defaultQueue,
			ChannelPoolSize: defaultChannelPoolSize,
		},
		Idempotency: IdempotencyConfig{
			TTLSeconds: defaultIdempotencyTTL,
			MaxEntries: defaultIdempotencyMax,
		},
		Telemetry: TelemetryConfig{
			LogLevel:      defaultLogLevel,
			LogFormat:     defaultLogFormat,
			EnableTracing: true,
			EnableMetrics: true,
			SampleRate:    defaultOTelSampleRate,
		},
		Service: ServiceConfig{
			Name:        defaultServiceName,
			Version:     defaultServiceVersion,
			Environment: defaultEnvironment,
		},
	}
}

// Load applies, in order: defaults, the YAML file named by CONFIG_FILE (if set),
// then environment variables. The result is validated.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error

	setInt(&c.HTTP.Port, "API_HTTP_PORT", &errs)
	setInt(&c.HTTP.ShutdownGrace, "API_SHUTDOWN_GRACE_SECONDS", &errs)
	setString(&c.HTTP.AllowedOrigin, "API_ALLOWED_ORIGIN")

	setString(&c.Storage.Backend, "STORAGE_BACKEND")
	setString(&c.Storage.DataDir, "DATA_DIR")
	setString(&c.Storage.ProductsFile, "PRODUCTS_FILE")
	setString(&c.Storage.CustomersFile, "CUSTOMERS_FILE")
	setString(&c.Storage.SalesFile, "SALES_FILE")

	setString(&c.Events.RabbitMQURL, "RABBITMQ_URL")
	setString(&c.Events.Queue, "RABBITMQ_QUEUE")
	setInt(&c.Events.ChannelPoolSize, "RABBITMQ_CHANNEL_POOL_SIZE", &errs)

	setInt(&c.Idempotency.TTLSeconds, "IDEMPOTENCY_TTL_SECONDS", &errs)
	setInt(&c.Idempotency.MaxEntries, "IDEMPOTENCY_MAX_ENTRIES", &errs)

	setString(&c.Telemetry.LogLevel, "LOG_LEVEL")
	setString(&c.Telemetry.LogFormat, "LOG_FORMAT")
	setString(&c.Telemetry.OTelEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&c.Telemetry.EnableTracing, "OTEL_ENABLE_TRACING")
	setBool(&c.Telemetry.EnableMetrics, "OTEL_ENABLE_METRICS")
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err))
		} else {
			c.Telemetry.SampleRate = parsed
		}
	}

	setString(&c.Service.Name, "API_SERVICE_NAME")
	setString(&c.Service.Version, "SERVICE_VERSION")
	setString(&c.Service.Environment, "ENVIRONMENT")

	return errors.Join(errs...)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http port %d out of range", c.HTTP.Port))
	}
	if c.HTTP.ShutdownGrace < 0 {
		errs = append(errs, errors.New("shutdown grace cannot be negative"))
	}
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("data dir is required for the file backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Events.RabbitMQURL != "" && c.Events.Queue == "" {
		errs = append(errs, errors.New("rabbitmq queue is required when a url is set"))
	}
	if c.Events.ChannelPoolSize <= 0 {
		errs = append(errs, errors.New("rabbitmq channel pool size must be positive"))
	}

	return errors.Join(errs...)
}

// ProductsPath, CustomersPath and SalesPath resolve the data files; an explicit
// file setting wins over the data directory.
func (s StorageConfig) ProductsPath() string {
	return s.resolve(s.ProductsFile, "productos.txt")
}

func (s StorageConfig) CustomersPath() string {
	return s.resolve(s.CustomersFile, "clientes.txt")
}

func (s StorageConfig) SalesPath() string {
	return s.resolve(s.SalesFile, "ventas.txt")
}

func (s StorageConfig) resolve(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(s.DataDir, name)
}

// TelemetryEnabled reports whether any OTLP signal should be exported.
func (c *Config) TelemetryEnabled() bool {
	return c.Telemetry.OTelEndpoint != "" && (c.Telemetry.EnableTracing || c.Telemetry.EnableMetrics)
}

func setString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string, errs *[]error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = parsed
}

func setBool(dst *bool, key string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = value == "true"
	}
}
