package main

import (
	"fmt"
	"log/slog"

	"gitlab.bluewillows.net/root/ipweaver/internal/config"
	"gitlab.bluewillows.net/root/ipweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
	"gitlab.bluewillows.net/root/ipweaver/pkg/httputil"
	"gitlab.bluewillows.net/root/ipweaver/providers/cloudflare"
	"gitlab.bluewillows.net/root/ipweaver/providers/route53"
)

// newBackendRegistry registers every hosting backend type.
func newBackendRegistry(logger *slog.Logger) *hosting.Registry {
	httpClient := httputil.NewClient(&httputil.ClientConfig{
		UserAgent: "ipweaver/" + Version,
		Logger:    logger,
	})

	registry := hosting.NewRegistry()

	// Register Route53 backend factory (AWS)
	registry.RegisterFactory(route53.TypeName, route53.Factory(
		route53.WithLogger(logger),
		route53.WithHTTPClient(httpClient),
	))

	// Register Cloudflare backend factory
	registry.RegisterFactory(cloudflare.TypeName, cloudflare.Factory(
		cloudflare.WithLogger(logger),
		cloudflare.WithHTTPClient(httpClient),
	))

	return registry
}

// backendTypes lists the type names newBackendRegistry registers.
func backendTypes() []string {
	return []string{cloudflare.TypeName, route53.TypeName}
}

// createBackend builds the configured backend with request metrics.
func createBackend(registry *hosting.Registry, cfg *config.Config) (hosting.Backend, error) {
	backend, err := registry.Create(cfg.Backend, cfg.Backend, cfg.BackendSettings())
	if err != nil {
		return nil, fmt.Errorf("creating hosting backend: %w", err)
	}
	return metrics.InstrumentBackend(backend), nil
}
