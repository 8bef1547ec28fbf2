package cloudflare

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/cloudflare/cloudflare-go"

	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
	"gitlab.bluewillows.net/root/ipweaver/pkg/httputil"
)

// newAPI builds a cloudflare-go client for the configured token.
func newAPI(cfg *Config, httpClient *http.Client, extra ...cloudflare.Option) (*cloudflare.API, error) {
	opts := []cloudflare.Option{
		cloudflare.UserAgent(httputil.DefaultUserAgent),
	}
	if httpClient != nil {
		opts = append(opts, cloudflare.HTTPClient(httpClient))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, cloudflare.BaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}
	opts = append(opts, extra...)

	api, err := cloudflare.NewWithAPIToken(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating cloudflare api client: %w", err)
	}
	return api, nil
}

// classify maps cloudflare-go errors onto the hosting sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var authn *cloudflare.AuthenticationError
	var authz *cloudflare.AuthorizationError
	var limited *cloudflare.RatelimitError
	var notFound *cloudflare.NotFoundError
	switch {
	case errors.As(err, &authn), errors.As(err, &authz):
		return fmt.Errorf("%w: %v", hosting.ErrUnauthorized, err)
	case errors.As(err, &limited):
		return fmt.Errorf("%w: %v", hosting.ErrThrottled, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: %v", hosting.ErrZoneNotFound, err)
	}
	return err
}

// apiName converts a record name to the form the Cloudflare API uses.
func apiName(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), ".")
}

// normalizeValue canonicalizes address content so that equivalent IPv6
// spellings compare equal.
func normalizeValue(v string) string {
	if addr, err := netip.ParseAddr(strings.TrimSpace(v)); err == nil {
		return addr.Unmap().String()
	}
	return v
}
