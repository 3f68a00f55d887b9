package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingAPIKey   = errors.New("GROQ_API_KEY not found")
	ErrMissingSupabase = errors.New("supabase URL and key must be set")
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	PDF       PDFConfig       `mapstructure:"pdf"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type LLMConfig struct {
	// Provider selects the client flavour: "groq", "openai" or "azure".
	Provider    string `mapstructure:"provider"`
	APIKey      string `mapstructure:"api_key"`
	APIEndpoint string `mapstructure:"endpoint"`
	APIVersion  string `mapstructure:"api_version"`

	// TiersFile optionally replaces the built-in model tier table.
	TiersFile string `mapstructure:"tiers_file"`

	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	RateLimitPause time.Duration `mapstructure:"rate_limit_pause"`

	// MaxAttempts caps cascade attempts; 0 means one more than the number of tiers.
	MaxAttempts int `mapstructure:"max_attempts"`
}

type SupabaseConfig struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`

	// JWTSecret enables bearer token verification when set.
	JWTSecret string        `mapstructure:"jwt_secret"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type PDFConfig struct {
	MaxPages int `mapstructure:"max_pages"`
	MinChars int `mapstructure:"min_chars"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Loader reads configuration from defaults, an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
type Loader struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper lets the CLI bind flags into the same viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v, envFile: ".env"}
}

func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load reads the configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	slog.Info("configuration loaded successfully", "config_file", l.v.ConfigFileUsed())
	return cfg, nil
}

// Read loads the configuration without checking required settings, for
// commands that never reach the LLM provider or Supabase.
func (l *Loader) Read() (*Config, error) {
	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	setDefaults(l.v)

	l.v.SetEnvPrefix("SAGE")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// Names used by existing deployments.
	_ = l.v.BindEnv("llm.api_key", "SAGE_LLM_API_KEY", "GROQ_API_KEY")
	_ = l.v.BindEnv("supabase.url", "SAGE_SUPABASE_URL", "SUPABASE_URL")
	_ = l.v.BindEnv("supabase.key", "SAGE_SUPABASE_KEY", "SUPABASE_KEY")
	_ = l.v.BindEnv("supabase.jwt_secret", "SAGE_SUPABASE_JWT_SECRET", "SUPABASE_JWT_SECRET")

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("sage")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || l.configFile != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.request_timeout", "150s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.api_version", "2024-06-01")
	v.SetDefault("llm.tiers_file", "")
	v.SetDefault("llm.attempt_timeout", "30s")
	v.SetDefault("llm.rate_limit_pause", "2s")
	v.SetDefault("llm.max_attempts", 0)

	v.SetDefault("supabase.timeout", "15s")

	v.SetDefault("ratelimit.limit", 15)
	v.SetDefault("ratelimit.window", "24h")

	v.SetDefault("pdf.max_pages", 10)
	v.SetDefault("pdf.min_chars", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate reports the first missing or out-of-range setting.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Supabase.URL == "" || c.Supabase.Key == "" {
		return ErrMissingSupabase
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("ratelimit.limit must be positive, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be positive, got %s", c.RateLimit.Window)
	}
	if c.PDF.MaxPages <= 0 {
		return fmt.Errorf("pdf.max_pages must be positive, got %d", c.PDF.MaxPages)
	}
	if c.LLM.MaxAttempts < 0 {
		return fmt.Errorf("llm.max_attempts must not be negative, got %d", c.LLM.MaxAttempts)
	}
	return nil
}
