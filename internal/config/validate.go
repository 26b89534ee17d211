package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	providers = map[string]bool{"none": true, "anthropic": true, "ollama": true}
	backends  = map[string]bool{"memory": true, "sqlite": true}
	levels    = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	formats   = map[string]bool{"text": true, "json": true}

	reBucket = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server address cannot be empty")
	}

	provider := strings.ToLower(c.LLM.Provider)
	if !providers[provider] {
		return fmt.Errorf("unknown llm provider %q (want none, anthropic or ollama)", c.LLM.Provider)
	}
	if provider == "ollama" && c.LLM.Endpoint == "" {
		return errors.New("llm endpoint cannot be empty for ollama")
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("llm timeout must be positive")
	}
	if c.LLM.MaxTokens < 0 {
		return errors.New("llm max_tokens cannot be negative")
	}

	if !backends[strings.ToLower(c.Store.Backend)] {
		return fmt.Errorf("unknown store backend %q (want memory or sqlite)", c.Store.Backend)
	}
	if strings.EqualFold(c.Store.Backend, "sqlite") && c.Store.Path == "" {
		return errors.New("store path cannot be empty for sqlite")
	}
	if c.Store.MaxContracts < 0 {
		return errors.New("store max_contracts cannot be negative")
	}

	if !levels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	if !formats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" {
			return errors.New("archive endpoint cannot be empty when archive is enabled")
		}
		if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
			return errors.New("archive credentials cannot be empty when archive is enabled")
		}
		if !reBucket.MatchString(c.Archive.Bucket) {
			return fmt.Errorf("invalid archive bucket name: %s", c.Archive.Bucket)
		}
	}
	return nil
}
