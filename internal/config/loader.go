package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Loader handles configuration loading and parsing.
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
	}
}

// Load reads and parses a configuration file, then applies environment
// variable overrides on top of it.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := l.Parse(data)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// Parse parses configuration from YAML bytes, expanding ${VAR} references
// first and validating the result.
func (l *Loader) Parse(data []byte) (*Config, error) {
	expanded := l.expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values,
// leaving the placeholder untouched when the variable is unset.
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate checks configuration for the invariants spec.md §3 requires.
func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if cfg.Router.HeartbeatTimeoutSeconds <= 0 {
		return fmt.Errorf("router.heartbeat_timeout_s must be > 0")
	}
	if cfg.Router.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("router.request_timeout_s must be > 0")
	}
	if cfg.Router.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("router.max_concurrent_requests must be > 0")
	}
	if cfg.Pool.MaxConnections <= 0 {
		return fmt.Errorf("pool.max_connections must be > 0")
	}
	if cfg.Pool.CleanupIntervalSeconds <= 0 {
		return fmt.Errorf("pool.cleanup_interval_s must be > 0")
	}
	return nil
}

// ApplyEnv overrides cfg in place with the environment variables named in
// spec.md §6, plus the ambient GRPC_LOG_OUTPUT addition.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("GRPC_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("GRPC_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GRPC_SECURITY_TOKENS"); v != "" {
		cfg.Security.Tokens = splitAndTrim(v)
	}
	if v := os.Getenv("GRPC_ROUTER_HEARTBEAT_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Router.HeartbeatTimeoutSeconds = n
		}
	}
	if v := os.Getenv("GRPC_ROUTER_REQUEST_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Router.RequestTimeoutSeconds = n
		}
	}
	if v := os.Getenv("GRPC_POOL_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.MaxConnections = n
		}
	}
	if v := os.Getenv("GRPC_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
