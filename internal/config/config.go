// Package config handles loading and validation of ipweaver configuration
// from a config file, environment variables and an AWS credentials export.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/ipweaver/pkg/iplookup"
)

// Configuration defaults.
const (
	DefaultConfigFile      = "ipweaver.yml"
	DefaultCredentialsFile = "aws_user_credentials.csv"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultProviderV4      = "ipify"
	DefaultProviderV6      = "ipify-v6"
	DefaultTTL             = 120
	DefaultMaxPages        = 100
	DefaultLookupTimeout   = 15 * time.Second
	DefaultPrecheckTimeout = 5 * time.Second
	DefaultBackend         = "route53"
)

// Where the AWS credentials came from.
const (
	CredentialsCSV     = "csv"
	CredentialsConfig  = "config"
	CredentialsDefault = "default"
)

// Config holds the runtime configuration.
type Config struct {
	ZoneID      string
	RecordSet   string
	RecordSetV6 string // Falls back to RecordSet when empty

	UpdateIPv4 bool
	UpdateIPv6 bool
	ProviderV4 string
	ProviderV6 string

	ForceUpdate   bool
	DryRun        bool
	TTL           int
	MaxPages      int
	LookupTimeout time.Duration

	Backend  string
	Endpoint string

	AWSAccessKey       string
	AWSSecretAccessKey string
	AWSRegion          string
	CredentialsSource  string // csv, config, default

	CloudflareToken string

	LogLevel  string
	LogFormat string

	PrecheckEnabled    bool
	PrecheckNameserver string
	PrecheckTimeout    time.Duration

	PushgatewayURL string
	MetricsJob     string
}

// Target is one record to reconcile.
type Target struct {
	Family     iplookup.Family
	RecordName string
	Provider   string
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigPath is the config file. Empty selects DefaultConfigFile.
	ConfigPath string

	// RequireFile makes a missing config file an error.
	RequireFile bool

	// CSVPath is the AWS credentials export. Empty selects DefaultCredentialsFile.
	CSVPath string

	// Lookups validates provider IDs. Nil selects the default registry.
	Lookups *iplookup.Registry

	// BackendTypes lists the valid backend types.
	BackendTypes []string

	// SkipTargets drops the zone, record and lookup provider checks for
	// commands that only talk to the hosting backend.
	SkipTargets bool
}

// Default returns a Config with defaults applied.
func Default() *Config {
	return &Config{
		UpdateIPv4:      true,
		ProviderV4:      DefaultProviderV4,
		ProviderV6:      DefaultProviderV6,
		TTL:             DefaultTTL,
		MaxPages:        DefaultMaxPages,
		LookupTimeout:   DefaultLookupTimeout,
		Backend:         DefaultBackend,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		PrecheckTimeout: DefaultPrecheckTimeout,
	}
}

// Load builds the configuration: defaults, then the config file, then
// IPWEAVER_* environment variables, then credentials. The result is
// validated and every problem is reported in one *ValidationError.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()
	var errs []string

	path := opts.ConfigPath
	if path == "" {
		path = DefaultConfigFile
	}

	fileCfg, err := LoadFile(path)
	switch {
	case err == nil:
		slog.Debug("loaded configuration from file", slog.String("path", path))
		errs = append(errs, cfg.applyFile(fileCfg)...)
	case errors.Is(err, fs.ErrNotExist) && !opts.RequireFile:
		slog.Debug("no config file, using environment only", slog.String("path", path))
	default:
		return nil, &ValidationError{Errors: []string{"config file: " + err.Error()}}
	}

	errs = append(errs, cfg.applyEnv()...)

	csvPath := opts.CSVPath
	if csvPath == "" {
		csvPath = DefaultCredentialsFile
	}
	if err := cfg.resolveCredentials(csvPath); err != nil {
		errs = append(errs, err.Error())
	}

	lookups := opts.Lookups
	if lookups == nil {
		lookups = iplookup.DefaultRegistry()
	}
	errs = append(errs, cfg.validate(lookups, opts.BackendTypes, opts.SkipTargets)...)

	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// applyFile copies values set in the file over the defaults.
func (c *Config) applyFile(f *FileConfig) []string {
	var errs []string

	setString(&c.ZoneID, f.ZoneID)
	setString(&c.RecordSet, f.RecordSet)
	setString(&c.RecordSetV6, f.RecordSetV6)
	setString(&c.ProviderV4, f.ProviderV4)
	setString(&c.ProviderV6, f.ProviderV6)
	setString(&c.Backend, strings.ToLower(f.Backend))
	setString(&c.Endpoint, f.Endpoint)
	setString(&c.AWSAccessKey, f.AWSAccessKey)
	setString(&c.AWSSecretAccessKey, f.AWSSecretAccessKey)
	setString(&c.AWSRegion, f.AWSRegion)
	setString(&c.CloudflareToken, f.CloudflareToken)

	setBool(&c.UpdateIPv4, f.UpdateIPv4)
	setBool(&c.UpdateIPv6, f.UpdateIPv6)
	setBool(&c.ForceUpdate, f.ForceUpdate)
	setBool(&c.DryRun, f.DryRun)

	if f.TTL != 0 {
		c.TTL = f.TTL
	}
	if f.MaxPages != 0 {
		c.MaxPages = f.MaxPages
	}
	if f.LookupTimeout != "" {
		if d, err := time.ParseDuration(f.LookupTimeout); err == nil {
			c.LookupTimeout = d
		} else {
			errs = append(errs, "lookup_timeout: invalid duration "+strconv.Quote(f.LookupTimeout))
		}
	}

	if f.Logging != nil {
		setString(&c.LogLevel, strings.ToLower(f.Logging.Level))
		setString(&c.LogFormat, strings.ToLower(f.Logging.Format))
	}

	if f.Precheck != nil {
		setBool(&c.PrecheckEnabled, f.Precheck.Enabled)
		setString(&c.PrecheckNameserver, f.Precheck.Nameserver)
		if f.Precheck.Timeout != "" {
			if d, err := time.ParseDuration(f.Precheck.Timeout); err == nil {
				c.PrecheckTimeout = d
			} else {
				errs = append(errs, "precheck.timeout: invalid duration "+strconv.Quote(f.Precheck.Timeout))
			}
		}
	}

	if f.Metrics != nil {
		setString(&c.PushgatewayURL, f.Metrics.PushgatewayURL)
		setString(&c.MetricsJob, f.Metrics.Job)
	}

	return errs
}

// applyEnv overrides with IPWEAVER_* environment variables.
// Environment variables always take precedence over file config.
func (c *Config) applyEnv() []string {
	var errs []string

	setString(&c.ZoneID, getEnv(EnvPrefix+"ZONE_ID"))
	setString(&c.RecordSet, getEnv(EnvPrefix+"RECORD_SET"))
	setString(&c.RecordSetV6, getEnv(EnvPrefix+"RECORD_SET_V6"))
	setString(&c.ProviderV4, getEnv(EnvPrefix+"PROVIDER_V4"))
	setString(&c.ProviderV6, getEnv(EnvPrefix+"PROVIDER_V6"))
	setString(&c.Backend, strings.ToLower(getEnv(EnvPrefix+"BACKEND")))
	setString(&c.Endpoint, getEnv(EnvPrefix+"ENDPOINT"))
	setString(&c.AWSAccessKey, getEnvWithFileFallback("AWS_ACCESS_KEY"))
	setString(&c.AWSSecretAccessKey, getEnvWithFileFallback("AWS_SECRET_ACCESS_KEY"))
	setString(&c.AWSRegion, getEnv(EnvPrefix+"AWS_REGION"))
	setString(&c.CloudflareToken, getEnvWithFileFallback("CLOUDFLARE_TOKEN"))
	setString(&c.LogLevel, strings.ToLower(getEnv(EnvPrefix+"LOG_LEVEL")))
	setString(&c.LogFormat, strings.ToLower(getEnv(EnvPrefix+"LOG_FORMAT")))
	setString(&c.PrecheckNameserver, getEnv(EnvPrefix+"PRECHECK_NAMESERVER"))
	setString(&c.PushgatewayURL, getEnv(EnvPrefix+"PUSHGATEWAY_URL"))
	setString(&c.MetricsJob, getEnv(EnvPrefix+"METRICS_JOB"))

	if v := getEnv(EnvPrefix + "UPDATE_IPV4"); v != "" {
		c.UpdateIPv4 = parseBool(v, c.UpdateIPv4)
	}
	if v := getEnv(EnvPrefix + "UPDATE_IPV6"); v != "" {
		c.UpdateIPv6 = parseBool(v, c.UpdateIPv6)
	}
	if v := getEnv(EnvPrefix + "FORCE_UPDATE"); v != "" {
		c.ForceUpdate = parseBool(v, c.ForceUpdate)
	}
	if v := getEnv(EnvPrefix + "DRY_RUN"); v != "" {
		c.DryRun = parseBool(v, c.DryRun)
	}
	if v := getEnv(EnvPrefix + "PRECHECK"); v != "" {
		c.PrecheckEnabled = parseBool(v, c.PrecheckEnabled)
	}

	if v := getEnv(EnvPrefix + "TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TTL = n
		} else {
			errs = append(errs, EnvPrefix+"TTL: invalid integer")
		}
	}
	if v := getEnv(EnvPrefix + "MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxPages = n
		} else {
			errs = append(errs, EnvPrefix+"MAX_PAGES: invalid integer")
		}
	}
	if v := getEnv(EnvPrefix + "LOOKUP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.LookupTimeout = d
		} else {
			errs = append(errs, EnvPrefix+"LOOKUP_TIMEOUT: invalid duration")
		}
	}
	if v := getEnv(EnvPrefix + "PRECHECK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PrecheckTimeout = d
		} else {
			errs = append(errs, EnvPrefix+"PRECHECK_TIMEOUT: invalid duration")
		}
	}

	return errs
}

// resolveCredentials applies the credential precedence: CSV export first,
// then keys from the config file or environment, then the SDK default chain.
func (c *Config) resolveCredentials(csvPath string) error {
	creds, err := LoadCSVCredentials(csvPath)
	if err != nil {
		return fmt.Errorf("credentials file: %w", err)
	}

	switch {
	case creds != nil:
		c.AWSAccessKey = creds.AccessKeyID
		c.AWSSecretAccessKey = creds.SecretAccessKey
		c.CredentialsSource = CredentialsCSV
	case c.AWSAccessKey != "" && c.AWSSecretAccessKey != "":
		c.CredentialsSource = CredentialsConfig
	default:
		c.CredentialsSource = CredentialsDefault
	}
	return nil
}

// Targets returns the records to reconcile, IPv4 first.
func (c *Config) Targets() []Target {
	var targets []Target
	if c.UpdateIPv4 {
		targets = append(targets, Target{
			Family:     iplookup.FamilyV4,
			RecordName: c.RecordSet,
			Provider:   c.ProviderV4,
		})
	}
	if c.UpdateIPv6 {
		name := c.RecordSetV6
		if name == "" {
			name = c.RecordSet
		}
		targets = append(targets, Target{
			Family:     iplookup.FamilyV6,
			RecordName: name,
			Provider:   c.ProviderV6,
		})
	}
	return targets
}

// BackendSettings returns the settings map for the configured backend type,
// keyed the way the backend factories expect.
func (c *Config) BackendSettings() map[string]string {
	settings := map[string]string{}
	put := func(k, v string) {
		if v != "" {
			settings[k] = v
		}
	}

	switch c.Backend {
	case "cloudflare":
		put("TOKEN", c.CloudflareToken)
	default:
		if c.CredentialsSource != CredentialsDefault {
			put("ACCESS_KEY_ID", c.AWSAccessKey)
			put("SECRET_ACCESS_KEY", c.AWSSecretAccessKey)
		}
		put("REGION", c.AWSRegion)
	}
	put("ENDPOINT", c.Endpoint)
	return settings
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
