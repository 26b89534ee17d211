package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Store     StoreConfig     `mapstructure:"store"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Export    ExportConfig    `mapstructure:"export"`
	Tagger    TaggerConfig    `mapstructure:"tagger"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LLMConfig struct {
	Provider  string        `mapstructure:"provider"`
	Endpoint  string        `mapstructure:"endpoint"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

type StoreConfig struct {
	Backend      string `mapstructure:"backend"`
	Path         string `mapstructure:"path"`
	MaxContracts int    `mapstructure:"max_contracts"`
}

type RulesConfig struct {
	Dir string `mapstructure:"dir"`
}

type SchemaConfig struct {
	File string `mapstructure:"file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type ExportConfig struct {
	ChromePath string `mapstructure:"chrome_path"`
}

type TaggerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

const EnvPrefix = "KONTRATA"

// Load reads path when given, otherwise config.yaml from the working
// directory or ~/.kontrata. A missing config file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.kontrata")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		slog.Debug("config_file_not_found", "using", "defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.LLM.APIKey == "" && strings.EqualFold(cfg.LLM.Provider, "anthropic") {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("llm.provider", "none")
	v.SetDefault("llm.endpoint", "http://localhost:11434")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_tokens", 1024)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.path", "kontrata.db")
	v.SetDefault("store.max_contracts", 1000)

	v.SetDefault("rules.dir", "")
	v.SetDefault("schema.file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "kontrata")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.bucket", "kontrata-contracts")
	v.SetDefault("archive.prefix", "contracts")
	v.SetDefault("archive.use_ssl", false)

	v.SetDefault("export.chrome_path", "")
	v.SetDefault("tagger.enabled", false)
}
