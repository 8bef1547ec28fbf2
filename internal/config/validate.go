package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"gitlab.bluewillows.net/root/ipweaver/pkg/iplookup"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks the configuration and returns a *ValidationError listing
// every problem, or nil.
func (c *Config) Validate(lookups *iplookup.Registry, backendTypes []string) error {
	if errs := c.validate(lookups, backendTypes, false); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// validate performs cross-field validation on the complete configuration.
// With skipTargets only the backend, credential and ambient settings are
// checked.
func (c *Config) validate(lookups *iplookup.Registry, backendTypes []string, skipTargets bool) []string {
	var errs []string

	if !skipTargets {
		errs = append(errs, c.validateTargets(lookups)...)
	}

	if c.TTL < 1 {
		errs = append(errs, fmt.Sprintf("ttl must be at least 1, got %d", c.TTL))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Sprintf("max_pages must be at least 1, got %d", c.MaxPages))
	}
	if c.LookupTimeout <= 0 {
		errs = append(errs, "lookup_timeout must be positive")
	}
	if c.PrecheckEnabled && c.PrecheckTimeout <= 0 {
		errs = append(errs, "precheck.timeout must be positive")
	}

	if len(backendTypes) > 0 && !slices.Contains(backendTypes, c.Backend) {
		errs = append(errs, fmt.Sprintf("unknown backend type: %q (known types: %s)", c.Backend, strings.Join(backendTypes, ", ")))
	}

	switch c.Backend {
	case "cloudflare":
		if c.CloudflareToken == "" {
			errs = append(errs, "cloudflare_token is required for the cloudflare backend")
		}
	case "route53":
		if c.CredentialsSource == CredentialsDefault && (c.AWSAccessKey == "") != (c.AWSSecretAccessKey == "") {
			errs = append(errs, "aws_access_key and aws_secret_access_key must be set together")
		}
	}

	if c.Endpoint != "" {
		errs = append(errs, validateURL("endpoint", c.Endpoint)...)
	}
	if c.PushgatewayURL != "" {
		errs = append(errs, validateURL("metrics.pushgateway_url", c.PushgatewayURL)...)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "logging.level: invalid value (must be debug, info, warn, or error)")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, "logging.format: invalid value (must be json or text)")
	}

	return errs
}

// validateTargets checks what a reconciliation run needs: the zone, a
// record per enabled family and a lookup service of the right family.
func (c *Config) validateTargets(lookups *iplookup.Registry) []string {
	var errs []string

	if strings.TrimSpace(c.ZoneID) == "" {
		errs = append(errs, "zone_id is required")
	}

	if !c.UpdateIPv4 && !c.UpdateIPv6 {
		errs = append(errs, "at least one of update_ipv4 or update_ipv6 must be enabled")
	}
	if c.UpdateIPv4 && c.RecordSet == "" {
		errs = append(errs, "record_set is required when update_ipv4 is enabled")
	}
	if c.UpdateIPv6 && c.RecordSet == "" && c.RecordSetV6 == "" {
		errs = append(errs, "record_set or record_set_v6 is required when update_ipv6 is enabled")
	}

	if c.UpdateIPv4 {
		errs = append(errs, validateProvider(lookups, "provider_v4", c.ProviderV4, iplookup.FamilyV4)...)
	}
	if c.UpdateIPv6 {
		errs = append(errs, validateProvider(lookups, "provider_v6", c.ProviderV6, iplookup.FamilyV6)...)
	}

	return errs
}

// validateProvider ensures id names a lookup service of the wanted family.
func validateProvider(lookups *iplookup.Registry, key, id string, family iplookup.Family) []string {
	d, ok := lookups.Get(id)
	if !ok {
		return []string{fmt.Sprintf("%s: unknown provider %q (known: %s)", key, id, strings.Join(lookups.IDsByFamily(family), ", "))}
	}
	if d.Family != family {
		return []string{fmt.Sprintf("%s: provider %q is %s, want %s", key, id, d.Family, family)}
	}
	return nil
}

func validateURL(key, raw string) []string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []string{fmt.Sprintf("%s: must be an http(s) URL, got %q", key, raw)}
	}
	return nil
}
