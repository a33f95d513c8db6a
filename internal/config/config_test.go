package config

import (
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "memory")
}

func TestFromEnvDefaults(t *testing.T) {
	setBaseEnv(t)

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if c.Port != "3001" {
		t.Errorf("Expected default port 3001, got %s", c.Port)
	}
	if c.UserTokenTTL != 7*24*time.Hour {
		t.Errorf("Expected 7 day user tokens, got %s", c.UserTokenTTL)
	}
	if c.AdminTokenTTL != 24*time.Hour {
		t.Errorf("Expected 1 day admin tokens, got %s", c.AdminTokenTTL)
	}
	if c.Cashfree.BaseURL != "https://sandbox.cashfree.com/pg" {
		t.Errorf("Expected sandbox base URL, got %s", c.Cashfree.BaseURL)
	}
	if c.Cashfree.APIVersion != "2023-08-01" {
		t.Errorf("Unexpected API version %s", c.Cashfree.APIVersion)
	}
	if c.ConvenienceFeeBPS != 250 {
		t.Errorf("Expected 250 bps fee, got %d", c.ConvenienceFeeBPS)
	}
	if c.Reconcile.MaxAttempts != 5 {
		t.Errorf("Expected 5 reconcile attempts, got %d", c.Reconcile.MaxAttempts)
	}
}

func TestFromEnvProductionGateway(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CASHFREE_ENV", "production")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if c.Cashfree.BaseURL != "https://api.cashfree.com/pg" {
		t.Errorf("Expected production base URL, got %s", c.Cashfree.BaseURL)
	}
}

func TestFromEnvRequiredValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing jwt secret", map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": ""}, "JWT_SECRET"},
		{"missing mongo uri", map[string]string{"STORE_DRIVER": "mongo", "JWT_SECRET": "s", "MONGODB_URI": ""}, "MONGODB_URI"},
		{"missing mysql name", map[string]string{"STORE_DRIVER": "mysql", "JWT_SECRET": "s", "DB_USER": "u", "DB_NAME": ""}, "DB_NAME"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "postgres", "JWT_SECRET": "s"}, "STORE_DRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCashfreeConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cfg  CashfreeConfig
		want bool
	}{
		{CashfreeConfig{AppID: "id", SecretKey: "secret"}, true},
		{CashfreeConfig{AppID: "id", SecretKey: "YOUR_SECRET_KEY_HERE"}, false},
		{CashfreeConfig{AppID: "", SecretKey: "secret"}, false},
		{CashfreeConfig{AppID: "id"}, false},
	}
	for _, tt := range tests {
		if got := tt.cfg.Configured(); got != tt.want {
			t.Errorf("Configured(%+v) = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func TestRateLimitNormalized(t *testing.T) {
	t.Parallel()

	c := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: time.Second}.normalized()
	if c.Capacity != 1 || c.RefillTokens != 1 {
		t.Errorf("Expected floors of 1, got capacity=%d refill=%d", c.Capacity, c.RefillTokens)
	}
	if c.TTL < 5*c.RefillInterval {
		t.Errorf("Expected TTL of at least 5 refill intervals, got %s", c.TTL)
	}
}

func TestParseMethods(t *testing.T) {
	t.Parallel()

	m := parseMethods(" get, head ,,")
	if !m["GET"] || !m["HEAD"] || len(m) != 2 {
		t.Errorf("Unexpected methods %v", m)
	}
}
