package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file structure.
// The flat keys are shared with older rust-aws-ddns style files.
type FileConfig struct {
	ZoneID      string `yaml:"zone_id,omitempty" toml:"zone_id,omitempty"`
	RecordSet   string `yaml:"record_set,omitempty" toml:"record_set,omitempty"`
	RecordSetV6 string `yaml:"record_set_v6,omitempty" toml:"record_set_v6,omitempty"`

	UpdateIPv4 *bool  `yaml:"update_ipv4,omitempty" toml:"update_ipv4,omitempty"` // Pointer to distinguish unset from false
	UpdateIPv6 *bool  `yaml:"update_ipv6,omitempty" toml:"update_ipv6,omitempty"`
	ProviderV4 string `yaml:"provider_v4,omitempty" toml:"provider_v4,omitempty"`
	ProviderV6 string `yaml:"provider_v6,omitempty" toml:"provider_v6,omitempty"`

	ForceUpdate   *bool  `yaml:"force_update,omitempty" toml:"force_update,omitempty"`
	DryRun        *bool  `yaml:"dry_run,omitempty" toml:"dry_run,omitempty"`
	TTL           int    `yaml:"ttl,omitempty" toml:"ttl,omitempty"`
	MaxPages      int    `yaml:"max_pages,omitempty" toml:"max_pages,omitempty"`
	LookupTimeout string `yaml:"lookup_timeout,omitempty" toml:"lookup_timeout,omitempty"` // Go duration format (e.g., "15s")

	Backend  string `yaml:"backend,omitempty" toml:"backend,omitempty"`   // route53, cloudflare
	Endpoint string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"` // API endpoint override

	AWSAccessKey       string `yaml:"aws_access_key,omitempty" toml:"aws_access_key,omitempty"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key,omitempty" toml:"aws_secret_access_key,omitempty"`
	AWSRegion          string `yaml:"aws_region,omitempty" toml:"aws_region,omitempty"`
	CloudflareToken    string `yaml:"cloudflare_token,omitempty" toml:"cloudflare_token,omitempty"`

	Logging  *FileLoggingConfig  `yaml:"logging,omitempty" toml:"logging,omitempty"`
	Precheck *FilePrecheckConfig `yaml:"precheck,omitempty" toml:"precheck,omitempty"`
	Metrics  *FileMetricsConfig  `yaml:"metrics,omitempty" toml:"metrics,omitempty"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty" toml:"level,omitempty"`   // debug, info, warn, error
	Format string `yaml:"format,omitempty" toml:"format,omitempty"` // json, text
}

// FilePrecheckConfig holds local DNS pre-check settings.
type FilePrecheckConfig struct {
	Enabled    *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Nameserver string `yaml:"nameserver,omitempty" toml:"nameserver,omitempty"` // host or host:port; empty uses the system resolver
	Timeout    string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
}

// FileMetricsConfig holds Pushgateway settings.
type FileMetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty" toml:"pushgateway_url,omitempty"`
	Job            string `yaml:"job,omitempty" toml:"job,omitempty"`
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// interpolateEnvVars interpolates environment variables in every string field.
func (c *FileConfig) interpolateEnvVars() {
	for _, p := range []*string{
		&c.ZoneID, &c.RecordSet, &c.RecordSetV6,
		&c.ProviderV4, &c.ProviderV6, &c.LookupTimeout,
		&c.Backend, &c.Endpoint,
		&c.AWSAccessKey, &c.AWSSecretAccessKey, &c.AWSRegion, &c.CloudflareToken,
	} {
		*p = InterpolateEnvVars(*p)
	}

	if c.Logging != nil {
		c.Logging.Level = InterpolateEnvVars(c.Logging.Level)
		c.Logging.Format = InterpolateEnvVars(c.Logging.Format)
	}

	if c.Precheck != nil {
		c.Precheck.Nameserver = InterpolateEnvVars(c.Precheck.Nameserver)
		c.Precheck.Timeout = InterpolateEnvVars(c.Precheck.Timeout)
	}

	if c.Metrics != nil {
		c.Metrics.PushgatewayURL = InterpolateEnvVars(c.Metrics.PushgatewayURL)
		c.Metrics.Job = InterpolateEnvVars(c.Metrics.Job)
	}
}

// LoadFile reads and parses a configuration file. Files ending in .toml are
// parsed as TOML, everything else as YAML.
// Environment variables in ${VAR} format are interpolated.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	if isTOML(path) {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	cfg.interpolateEnvVars()

	return &cfg, nil
}

// WriteFile writes cfg as YAML to path with owner-only permissions.
// It refuses to overwrite an existing file.
func WriteFile(path string, cfg *FileConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("config file %s already exists", path)
		}
		return fmt.Errorf("creating config file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing config file: %w", err)
	}
	return f.Close()
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
