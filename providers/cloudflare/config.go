package cloudflare

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultComment is attached to records this backend creates.
	DefaultComment = "managed by ipweaver"

	// DefaultPerPage is the listing page size. Cloudflare allows up to 5000
	// but 100 is the documented default.
	DefaultPerPage = 100
)

// Config holds Cloudflare-specific configuration.
type Config struct {
	Token    string // API token (Bearer authentication)
	Endpoint string // Custom API base URL (tests)
	Comment  string // Comment attached to created records
	PerPage  int    // Records per listing page
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.Token == "" {
		errs = append(errs, "TOKEN is required")
	}
	if c.PerPage < 0 {
		errs = append(errs, "PER_PAGE must be non-negative")
	}
	if c.Endpoint != "" && !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		errs = append(errs, "ENDPOINT must start with http:// or https://")
	}

	if len(errs) > 0 {
		return fmt.Errorf("cloudflare config validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ConfigFromMap builds a Config from factory settings.
//
// Supported settings:
//   - TOKEN: API token (required)
//   - ENDPOINT: API base URL (optional)
//   - COMMENT: record comment (optional)
//   - PER_PAGE: listing page size (optional, defaults to 100)
func ConfigFromMap(settings map[string]string) (*Config, error) {
	cfg := &Config{
		Token:    strings.TrimSpace(settings["TOKEN"]),
		Endpoint: strings.TrimSpace(settings["ENDPOINT"]),
		Comment:  settings["COMMENT"],
		PerPage:  DefaultPerPage,
	}
	if cfg.Comment == "" {
		cfg.Comment = DefaultComment
	}

	if s := strings.TrimSpace(settings["PER_PAGE"]); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid PER_PAGE value %q: %w", s, err)
		}
		cfg.PerPage = n
	}

	return cfg, nil
}
