package config

import (
	"fmt"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseURL    string `mapstructure:"DATABASE_URL" validate:"required,url|uri"`
	DatabasePrefix string `mapstructure:"DATABASE_PREFIX" validate:"omitempty,max=32"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"required,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	// Batch job orchestration.
	JobBackend       string        `mapstructure:"JOB_BACKEND" validate:"required,oneof=kubernetes queue"`
	JobNamespace     string        `mapstructure:"JOB_NAMESPACE" validate:"required"`
	JobDeployment    string        `mapstructure:"JOB_DEPLOYMENT" validate:"required_if=JobBackend kubernetes"`
	JobCPURequest    string        `mapstructure:"JOB_CPU_REQUEST"`
	JobMemoryRequest string        `mapstructure:"JOB_MEMORY_REQUEST"`
	JobCPULimit      string        `mapstructure:"JOB_CPU_LIMIT"`
	JobMemoryLimit   string        `mapstructure:"JOB_MEMORY_LIMIT"`
	JobTTL           time.Duration `mapstructure:"JOB_TTL"`
	JobSyncSchedule  string        `mapstructure:"JOB_SYNC_SCHEDULE" validate:"required"`
	Kubeconfig       string        `mapstructure:"KUBECONFIG"`

	// Services maps sibling service names to their base URLs.
	Services map[string]string `mapstructure:"-" validate:"dive,keys,required,endkeys,url"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// envKeys are the environment variables Load reads.
var envKeys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_URL",
	"DATABASE_PREFIX",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"ASYNQ_CONCURRENCY",
	"GOMAXPROCS",
	"JWT_SECRET",
	"JOB_BACKEND",
	"JOB_NAMESPACE",
	"JOB_DEPLOYMENT",
	"JOB_CPU_REQUEST",
	"JOB_MEMORY_REQUEST",
	"JOB_CPU_LIMIT",
	"JOB_MEMORY_LIMIT",
	"JOB_TTL",
	"JOB_SYNC_SCHEDULE",
	"KUBECONFIG",
	"SERVICES",
}

// IsKey reports whether name is an environment variable Load reads.
func IsKey(name string) bool {
	return slices.Contains(envKeys, name)
}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("JOB_BACKEND", "kubernetes")
	v.SetDefault("JOB_NAMESPACE", "default")
	v.SetDefault("JOB_CPU_REQUEST", "250m")
	v.SetDefault("JOB_MEMORY_REQUEST", "512Mi")
	v.SetDefault("JOB_CPU_LIMIT", "1")
	v.SetDefault("JOB_MEMORY_LIMIT", "2Gi")
	v.SetDefault("JOB_TTL", "24h")
	v.SetDefault("JOB_SYNC_SCHEDULE", "@every 1m")

	_ = v.ReadInConfig()

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Parse duration types that may come as string
	for key, dst := range map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
		"JOB_TTL":          &c.JobTTL,
	} {
		if s := v.GetString(key); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}
	// SERVICES is a YAML map or, from the environment, a JSON object
	// such as '{"learner-profile":"http://learner-profile:8080"}'.
	c.Services = v.GetStringMapString("SERVICES")

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}

// IsDevelopment reports whether verbose developer defaults should apply.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "test"
}
