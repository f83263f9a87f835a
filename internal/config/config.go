package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig     `mapstructure:"basic_config"`
	Generator   GeneratorConfig `mapstructure:"generator"`
	Local       LocalConfig     `mapstructure:"local"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Database    DatabaseConfig  `mapstructure:"database"`
}

type BasicConfig struct {
	ServerAddress          string `mapstructure:"server_address"`
	UploadDir              string `mapstructure:"upload_dir"`
	StaticDir              string `mapstructure:"static_dir"`
	MaxUploadMB            int    `mapstructure:"max_upload_mb"`
	ExtractImages          bool   `mapstructure:"extract_images"`
	ExtractTimeoutSeconds  int    `mapstructure:"extract_timeout_seconds"`
	GenerateTimeoutSeconds int    `mapstructure:"generate_timeout_seconds"`
	MinWorkers             int    `mapstructure:"min_workers"`
	MaxWorkers             int    `mapstructure:"max_workers"`
	QueueSize              int    `mapstructure:"queue_size"`
	WorkerIdleMinutes      int    `mapstructure:"worker_idle_minutes"`
	FileTTLMinutes         int    `mapstructure:"file_ttl_minutes"`
	CleanIntervalMinutes   int    `mapstructure:"clean_interval_minutes"`
	SessionBackend         string `mapstructure:"session_backend"`
	SessionTTLMinutes      int    `mapstructure:"session_ttl_minutes"`
	SessionSecret          string `mapstructure:"session_secret"`
}

// GeneratorConfig selects and parameterizes the answer generator.
type GeneratorConfig struct {
	Strategy string `mapstructure:"strategy"` // remote or local
	Provider string `mapstructure:"provider"` // openai, claude, gemini
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

type LocalConfig struct {
	Host  string `mapstructure:"host"`
	Model string `mapstructure:"model"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	Params   string `mapstructure:"params"`
}

const defaultSQLiteDSN = "./data/pdfchat.db"

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic_config.server_address", ":5000")
	v.SetDefault("basic_config.upload_dir", "./uploads")
	v.SetDefault("basic_config.static_dir", "./static")
	v.SetDefault("basic_config.max_upload_mb", 20)
	v.SetDefault("basic_config.extract_images", false)
	v.SetDefault("basic_config.extract_timeout_seconds", 120)
	v.SetDefault("basic_config.generate_timeout_seconds", 60)
	v.SetDefault("basic_config.min_workers", 1)
	v.SetDefault("basic_config.max_workers", 8)
	v.SetDefault("basic_config.queue_size", 64)
	v.SetDefault("basic_config.worker_idle_minutes", 5)
	v.SetDefault("basic_config.file_ttl_minutes", 0)
	v.SetDefault("basic_config.clean_interval_minutes", 60)
	v.SetDefault("basic_config.session_backend", "memory")
	v.SetDefault("basic_config.session_ttl_minutes", 24*60)
	v.SetDefault("generator.strategy", "remote")
	v.SetDefault("generator.provider", "openai")
	v.SetDefault("generator.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("generator.model", "deepseek/deepseek-r1")
	v.SetDefault("local.host", "http://localhost:11434")
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("database.driver", "sqlite3")
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string][]string{
	"generator.api_key":           {"OPENROUTER_API_KEY", "LLM_API_KEY"},
	"generator.base_url":          {"LLM_BASE_URL"},
	"generator.model":             {"LLM_MODEL"},
	"generator.provider":          {"LLM_PROVIDER"},
	"generator.strategy":          {"ANSWER_STRATEGY"},
	"local.host":                  {"OLLAMA_HOST"},
	"local.model":                 {"OLLAMA_MODEL"},
	"basic_config.session_secret": {"SESSION_SECRET"},
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error: defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(absPath)
	v.SetConfigType("json")
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.BasicConfig.ServerAddress = ":" + port
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	base := filepath.Dir(absPath)
	cfg.BasicConfig.UploadDir = resolvePath(base, cfg.BasicConfig.UploadDir)
	cfg.BasicConfig.StaticDir = resolvePath(base, cfg.BasicConfig.StaticDir)
	if isSQLite(cfg.Database.Driver) && cfg.Database.DSN == "" {
		cfg.Database.DSN = defaultSQLiteDSN
	}
	if isSQLite(cfg.Database.Driver) && cfg.Database.DSN != ":memory:" {
		cfg.Database.DSN = resolvePath(base, cfg.Database.DSN)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Generator.Strategy) {
	case "remote", "local":
	default:
		return fmt.Errorf("unknown generator strategy: %s", c.Generator.Strategy)
	}
	switch strings.ToLower(c.BasicConfig.SessionBackend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session backend: %s", c.BasicConfig.SessionBackend)
	}
	if c.BasicConfig.MaxUploadMB <= 0 {
		return errors.New("max_upload_mb must be positive")
	}
	return nil
}

// MaxUploadBytes is the per-request upload cap.
func (b BasicConfig) MaxUploadBytes() int64 {
	return int64(b.MaxUploadMB) << 20
}

func (b BasicConfig) ExtractTimeout() time.Duration {
	return time.Duration(b.ExtractTimeoutSeconds) * time.Second
}

func (b BasicConfig) GenerateTimeout() time.Duration {
	return time.Duration(b.GenerateTimeoutSeconds) * time.Second
}

func (b BasicConfig) SessionTTL() time.Duration {
	return time.Duration(b.SessionTTLMinutes) * time.Minute
}

func (b BasicConfig) FileTTL() time.Duration {
	return time.Duration(b.FileTTLMinutes) * time.Minute
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func isSQLite(driver string) bool {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}
