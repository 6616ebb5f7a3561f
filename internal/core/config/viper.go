package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("client.base_url", d.BaseURL)
	v.SetDefault("client.api_version", d.APIVersion)
	v.SetDefault("client.request_timeout", d.RequestTimeout.String())
	v.SetDefault("client.slow_request_threshold", d.SlowRequestThreshold.String())
	v.SetDefault("client.model_cache_ttl", d.ModelCacheTTL.String())
	v.SetDefault("client.model_list_cache_ttl", d.ModelListCacheTTL.String())
	v.SetDefault("client.cache_path", "")
	v.SetDefault("session.debounce_delay", d.DebounceDelay.String())
	v.SetDefault("session.autosave_interval", d.AutosaveInterval.String())
	v.SetDefault("session.max_retries", d.MaxRetries)
	v.SetDefault("state.db_url", d.StateDBURL)
	v.SetDefault("bridge.host", d.BridgeHost)
	v.SetDefault("bridge.port", d.BridgePort)
	v.SetDefault("bridge.allowed_origins", []string{})

	// Bind environment variables with CPQ_ prefix
	v.SetEnvPrefix("CPQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Tokens are environment-only; a config file is too easy to commit.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:              v.GetString("client.base_url"),
		APIVersion:           v.GetString("client.api_version"),
		RequestTimeout:       v.GetDuration("client.request_timeout"),
		SlowRequestThreshold: v.GetDuration("client.slow_request_threshold"),
		ModelCacheTTL:        v.GetDuration("client.model_cache_ttl"),
		ModelListCacheTTL:    v.GetDuration("client.model_list_cache_ttl"),
		CachePath:            v.GetString("client.cache_path"),
		DebounceDelay:        v.GetDuration("session.debounce_delay"),
		AutosaveInterval:     v.GetDuration("session.autosave_interval"),
		MaxRetries:           v.GetInt("session.max_retries"),
		StateDBURL:           v.GetString("state.db_url"),
		BridgeHost:           v.GetString("bridge.host"),
		BridgePort:           v.GetInt("bridge.port"),
		AllowedOrigins:       ParseOrigins(v.GetStringSlice("bridge.allowed_origins")),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks the base URL, positive durations, port range and retry bound.
func validateConfig(cfg *Config) error {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", cfg.BaseURL)
	}
	if strings.Trim(cfg.APIVersion, "/") == "" {
		return fmt.Errorf("api_version must not be empty")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.SlowRequestThreshold <= 0 {
		return fmt.Errorf("slow_request_threshold must be positive, got %v", cfg.SlowRequestThreshold)
	}
	if cfg.ModelCacheTTL <= 0 || cfg.ModelListCacheTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive, got %v and %v", cfg.ModelCacheTTL, cfg.ModelListCacheTTL)
	}
	if cfg.DebounceDelay <= 0 {
		return fmt.Errorf("debounce_delay must be positive, got %v", cfg.DebounceDelay)
	}
	if cfg.AutosaveInterval <= 0 {
		return fmt.Errorf("autosave_interval must be positive, got %v", cfg.AutosaveInterval)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.StateDBURL == "" {
		return fmt.Errorf("state.db_url must not be empty")
	}
	if cfg.BridgePort <= 0 || cfg.BridgePort > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.BridgePort)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only auth tokens.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("auth_token") || v.InConfig("client.auth_token") {
		return fmt.Errorf("auth tokens not allowed in config files (use %s environment variable or 'cpq login')", AuthTokenEnv)
	}
	return nil
}
