package route53

import (
	"fmt"
	"strings"
)

const (
	// DefaultRegion is used when no region is configured. Route53 is a
	// global service whose control plane lives in us-east-1.
	DefaultRegion = "us-east-1"

	// DefaultComment is attached to every change batch.
	DefaultComment = "managed by ipweaver"
)

// Config holds Route53-specific configuration.
type Config struct {
	AccessKeyID     string // Static access key (optional)
	SecretAccessKey string // Static secret key (optional)
	Region          string // SDK region (defaults to DefaultRegion)
	Endpoint        string // Custom API endpoint (localstack, tests)
	Comment         string // Change batch comment
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		errs = append(errs, "ACCESS_KEY_ID and SECRET_ACCESS_KEY must be set together")
	}
	if c.Endpoint != "" && !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		errs = append(errs, "ENDPOINT must start with http:// or https://")
	}

	if len(errs) > 0 {
		return fmt.Errorf("route53 config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// StaticCredentials reports whether explicit keys were configured.
func (c *Config) StaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// ConfigFromMap builds a Config from factory settings.
//
// Supported settings:
//   - ACCESS_KEY_ID, SECRET_ACCESS_KEY: static credentials (optional)
//   - REGION: SDK region (optional, defaults to us-east-1)
//   - ENDPOINT: custom API endpoint (optional)
//   - COMMENT: change batch comment (optional)
func ConfigFromMap(settings map[string]string) *Config {
	cfg := &Config{
		AccessKeyID:     strings.TrimSpace(settings["ACCESS_KEY_ID"]),
		SecretAccessKey: strings.TrimSpace(settings["SECRET_ACCESS_KEY"]),
		Region:          strings.TrimSpace(settings["REGION"]),
		Endpoint:        strings.TrimSpace(settings["ENDPOINT"]),
		Comment:         settings["COMMENT"],
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Comment == "" {
		cfg.Comment = DefaultComment
	}
	return cfg
}
