package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"gitlab.bluewillows.net/root/ipweaver/internal/config"
	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
)

func TestParseFlags(t *testing.T) {
	t.Setenv("IPWEAVER_CONFIG", "")
	t.Setenv("IPWEAVER_CSV", "")

	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr string
	}{
		{
			name: "defaults",
			args: nil,
			want: options{command: cmdRun, configPath: config.DefaultConfigFile, csvPath: config.DefaultCredentialsFile},
		},
		{
			name: "all flags",
			args: []string{"-config", "/etc/ipweaver.toml", "-csv", "keys.csv", "-v", "-force", "-dry-run", "run"},
			want: options{
				command:        cmdRun,
				configPath:     "/etc/ipweaver.toml",
				configExplicit: true,
				csvPath:        "keys.csv",
				verbose:        true,
				force:          true,
				dryRun:         true,
			},
		},
		{
			name: "zones subcommand",
			args: []string{"-q", "zones"},
			want: options{command: cmdZones, configPath: config.DefaultConfigFile, csvPath: config.DefaultCredentialsFile, quiet: true},
		},
		{
			name:    "unknown subcommand",
			args:    []string{"sync"},
			wantErr: `unknown command "sync"`,
		},
		{
			name:    "extra arguments",
			args:    []string{"run", "now"},
			wantErr: "unexpected arguments",
		},
		{
			name:    "verbose and quiet",
			args:    []string{"-v", "-q"},
			wantErr: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseFlags_EnvDefaults(t *testing.T) {
	t.Setenv("IPWEAVER_CONFIG", "/srv/ipweaver.yml")
	t.Setenv("IPWEAVER_CSV", "/srv/creds.csv")

	got, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.configPath != "/srv/ipweaver.yml" || got.csvPath != "/srv/creds.csv" {
		t.Errorf("env defaults not applied: %+v", got)
	}
	if !got.configExplicit {
		t.Error("config from the environment should be required to exist")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLogLevelFor(t *testing.T) {
	if got := logLevelFor(&options{verbose: true}, "warn"); got != "debug" {
		t.Errorf("-v should force debug, got %s", got)
	}
	if got := logLevelFor(&options{quiet: true}, "debug"); got != "error" {
		t.Errorf("-q should force error, got %s", got)
	}
	if got := logLevelFor(&options{}, "warn"); got != "warn" {
		t.Errorf("configured level should be kept, got %s", got)
	}
}

func TestBackendTypesMatchRegistry(t *testing.T) {
	got := newBackendRegistry(slog.Default()).Types()
	want := backendTypes()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("registry types %v, want %v", got, want)
	}
}

func TestListZones(t *testing.T) {
	backend := &zoneBackend{zones: []hosting.HostedZone{
		{ID: "Z1", Name: "example.com."},
		{ID: "Z2ABCDEF", Name: "example.org."},
	}}

	var out bytes.Buffer
	if err := listZones(context.Background(), backend, &out); err != nil {
		t.Fatalf("listZones failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 zones, got %q", out.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[2], "Z2ABCDEF") || !strings.Contains(lines[2], "example.org.") {
		t.Errorf("unexpected listing:\n%s", out.String())
	}
}

func TestFatalHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unauthorized inside joined target errors",
			err: fmt.Errorf("reconciliation failed: %w", errors.Join(
				fmt.Errorf("v4 record home.example.com.: %w", hosting.WrapError("route53", "list record sets", hosting.ErrUnauthorized)),
			)),
			want: "credentials",
		},
		{
			name: "zone not found",
			err:  hosting.WrapError("route53", "upsert", hosting.ErrZoneNotFound),
			want: "ipweaver zones",
		},
		{
			name: "throttled",
			err:  hosting.WrapError("cloudflare", "list record sets", hosting.ErrThrottled),
			want: "rate limiting",
		},
		{
			name: "other api error",
			err:  hosting.WrapError("route53", "upsert", errors.New("InvalidChangeBatch")),
			want: "-v",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fatalHint(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("fatalHint() = %q, want it to mention %q", got, tt.want)
			}
		})
	}

	if got := fatalHint(errors.New("loading configuration: boom")); got != "" {
		t.Errorf("expected no hint for non-API errors, got %q", got)
	}
}
