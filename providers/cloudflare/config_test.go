package cloudflare

import (
	"testing"
)

func TestConfig_Validate_Success(t *testing.T) {
	config := &Config{
		Token:   "test-token",
		PerPage: 100,
	}

	if err := config.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestConfig_Validate_MissingToken(t *testing.T) {
	config := &Config{PerPage: 100}

	if err := config.Validate(); err == nil {
		t.Error("expected validation error for missing token, got nil")
	}
}

func TestConfig_Validate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"negative per page", Config{Token: "t", PerPage: -1}},
		{"endpoint without scheme", Config{Token: "t", Endpoint: "api.example.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestConfigFromMap(t *testing.T) {
	cfg, err := ConfigFromMap(map[string]string{
		"TOKEN":    " test-token ",
		"ENDPOINT": "http://localhost:8080",
		"PER_PAGE": "50",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Token != "test-token" {
		t.Errorf("expected trimmed token, got %q", cfg.Token)
	}
	if cfg.Endpoint != "http://localhost:8080" {
		t.Errorf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.PerPage != 50 {
		t.Errorf("expected per page 50, got %d", cfg.PerPage)
	}
	if cfg.Comment != DefaultComment {
		t.Errorf("expected default comment, got %q", cfg.Comment)
	}
}

func TestConfigFromMap_InvalidPerPage(t *testing.T) {
	if _, err := ConfigFromMap(map[string]string{"TOKEN": "t", "PER_PAGE": "lots"}); err == nil {
		t.Error("expected error for non-numeric PER_PAGE")
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"203.0.113.5", "203.0.113.5"},
		{"2001:0db8:0000::0001", "2001:db8::1"},
		{"::ffff:203.0.113.5", "203.0.113.5"},
		{"not-an-ip", "not-an-ip"},
	}
	for _, tt := range tests {
		if got := normalizeValue(tt.in); got != tt.want {
			t.Errorf("normalizeValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAPIName(t *testing.T) {
	if got := apiName("home.example.com."); got != "home.example.com" {
		t.Errorf("expected trailing dot trimmed, got %q", got)
	}
}
