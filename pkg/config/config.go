package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Audit      AuditConfig
	RateLimit  RateLimitConfig
	Validation ValidationConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

// AuditConfig carries the governance weights and veto thresholds.
type AuditConfig struct {
	ContextRows  int
	ContextChars int
	Weights      WeightsConfig
	Thresholds   ThresholdsConfig
}

type WeightsConfig struct {
	Quality        float64
	Drift          float64
	Hallucination  float64
	Explainability float64
}

type ThresholdsConfig struct {
	MinRows           int
	HallucinationVeto float64
	HallucinationCap  float64
	DriftVeto         float64
	DriftCap          float64
	SafeScore         float64
	ReviewScore       float64
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type ValidationConfig struct {
	MaxRows       int
	MaxTextLength int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	return LoadFrom(viper.New(), "")
}

// LoadFrom reads configuration into v. An empty path searches the default locations.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/truthlens")
	}

	v.SetEnvPrefix("TRUTHLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	w := c.Audit.Weights
	if w.Quality < 0 || w.Drift < 0 || w.Hallucination < 0 || w.Explainability < 0 {
		return fmt.Errorf("invalid config: audit weights must be non-negative")
	}
	if sum := w.Quality + w.Drift + w.Hallucination + w.Explainability; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("invalid config: audit weights must sum to 1, got %.3f", sum)
	}
	if c.Audit.Thresholds.MinRows <= 0 {
		return fmt.Errorf("invalid config: audit.thresholds.minRows must be positive")
	}
	if c.Audit.Thresholds.ReviewScore > c.Audit.Thresholds.SafeScore {
		return fmt.Errorf("invalid config: audit.thresholds.reviewScore exceeds safeScore")
	}
	if c.Audit.ContextRows <= 0 || c.Audit.ContextChars <= 0 {
		return fmt.Errorf("invalid config: audit context window must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSec", 3600)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.maxTokens", 1500)
	v.SetDefault("llm.timeoutSec", 60)

	v.SetDefault("audit.contextRows", 15)
	v.SetDefault("audit.contextChars", 3000)
	v.SetDefault("audit.weights.quality", 0.35)
	v.SetDefault("audit.weights.drift", 0.25)
	v.SetDefault("audit.weights.hallucination", 0.30)
	v.SetDefault("audit.weights.explainability", 0.10)
	v.SetDefault("audit.thresholds.minRows", 25)
	v.SetDefault("audit.thresholds.hallucinationVeto", 50)
	v.SetDefault("audit.thresholds.hallucinationCap", 40)
	v.SetDefault("audit.thresholds.driftVeto", 60)
	v.SetDefault("audit.thresholds.driftCap", 60)
	v.SetDefault("audit.thresholds.safeScore", 80)
	v.SetDefault("audit.thresholds.reviewScore", 50)

	v.SetDefault("rateLimit.requestsPerMinute", 30)

	v.SetDefault("validation.maxRows", 100000)
	v.SetDefault("validation.maxTextLength", 20000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
