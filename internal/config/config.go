package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Groq      GroqConfig      `yaml:"groq" mapstructure:"groq"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Proxy     ProxyConfig     `yaml:"proxy" mapstructure:"proxy"`
	Prompt    PromptConfig    `yaml:"prompt" mapstructure:"prompt"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SharedSecret    string   `yaml:"shared_secret" mapstructure:"shared_secret"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min" mapstructure:"rate_limit_per_min"`
}

// LLMConfig selects the upstream provider.
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// GroqConfig holds Groq API settings.
type GroqConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ProxyConfig configures pipeline behavior flags.
type ProxyConfig struct {
	Debug          bool    `yaml:"debug" mapstructure:"debug"`
	AllowDevHeader bool    `yaml:"allow_dev_header" mapstructure:"allow_dev_header"`
	Environment    string  `yaml:"environment" mapstructure:"environment"`
	OutboundRPS    float64 `yaml:"outbound_rps" mapstructure:"outbound_rps"`
	CodeVersion    string  `yaml:"code_version" mapstructure:"code_version"`
}

// PromptConfig configures prompt template overrides.
type PromptConfig struct {
	TemplatesPath string `yaml:"templates_path" mapstructure:"templates_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLANPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_min", 0)
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("proxy.debug", false)
	v.SetDefault("proxy.allow_dev_header", false)
	v.SetDefault("proxy.environment", "production")
	v.SetDefault("proxy.outbound_rps", 0)
	v.SetDefault("proxy.code_version", "unknown")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command actually needs. mode is the command
// name: "serve" needs a listen port and a usable provider; "ask" and "batch"
// need only the provider.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkProvider := func() {
		switch c.LLM.Provider {
		case "groq", "anthropic":
		default:
			problems = append(problems, "llm.provider must be groq or anthropic")
		}
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RateLimitPerMin < 0 {
			problems = append(problems, "server.rate_limit_per_min must be >= 0")
		}
		if c.Proxy.OutboundRPS < 0 {
			problems = append(problems, "proxy.outbound_rps must be >= 0")
		}
		checkProvider()
	case "ask", "batch":
		checkProvider()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
