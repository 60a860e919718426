package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t,
		"APP_ENV", "PORT", "GKASH_API_URL", "GKASH_API_TIMEOUT", "TIARA_CONNECT_BASE_URL",
		"TIARA_CONNECT_API_KEY", "TIARA_CONNECT_SHORTCODE", "TIARA_CONNECT_TIMEOUT",
		"USSD_SESSION_TIMEOUT", "USSD_SWEEP_INTERVAL", "USSD_SIMULATOR_ENABLED",
	)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":3000" {
		t.Errorf("Addr = %q, want :3000", cfg.Server.Addr)
	}
	if cfg.Session.Timeout != 5*time.Minute || cfg.Session.SweepInterval != time.Minute {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Backend.URL != "http://localhost:4000/api" || cfg.SMS.Shortcode != "*123#" {
		t.Errorf("backend = %+v sms = %+v", cfg.Backend, cfg.SMS)
	}
	if !cfg.Simulator.Enabled {
		t.Error("simulator should default to enabled")
	}
	if cfg.SMS.Configured() {
		t.Error("SMS should not be configured without an API key")
	}
	if cfg.Production() {
		t.Error("development should not be production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("GKASH_API_URL", "https://api.gkash.test/api")
	t.Setenv("GKASH_API_TIMEOUT", "5s")
	t.Setenv("TIARA_CONNECT_API_KEY", "secret")
	t.Setenv("TIARA_CONNECT_SHORTCODE", "*384*12#")
	t.Setenv("USSD_SESSION_TIMEOUT", "90s")
	t.Setenv("USSD_SWEEP_INTERVAL", "10s")
	t.Setenv("USSD_SIMULATOR_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Backend.URL != "https://api.gkash.test/api" || cfg.Backend.Timeout != 5*time.Second {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if !cfg.SMS.Configured() || cfg.SMS.Shortcode != "*384*12#" {
		t.Errorf("sms = %+v", cfg.SMS)
	}
	if cfg.Session.Timeout != 90*time.Second || cfg.Session.SweepInterval != 10*time.Second {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Simulator.Enabled {
		t.Error("simulator should be disabled")
	}
	if !cfg.Production() {
		t.Error("APP_ENV=Production should be production")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"PORT", "80 80", "invalid PORT"},
		{"USSD_SESSION_TIMEOUT", "soon", "parse env"},
		{"USSD_SWEEP_INTERVAL", "-1s", "invalid USSD_SWEEP_INTERVAL"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestListenAddr(t *testing.T) {
	cases := map[string]string{
		"8080":         ":8080",
		" 8080 ":       ":8080",
		":8080":        ":8080",
		"0.0.0.0:8080": "0.0.0.0:8080",
		"":             ":3000",
	}
	for in, want := range cases {
		got, err := listenAddr(in)
		if err != nil {
			t.Fatalf("listenAddr(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("listenAddr(%q) = %q, want %q", in, got, want)
		}
	}
}
