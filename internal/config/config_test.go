package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
browser:
  max_parallel: 4
  nav_timeout_seconds: 30
fetch:
  timeout_seconds: 20
  retries: 3
  user_agent: real-agent
mirrors:
  instances: ["https://m1.example", "https://m2.example"]
  strategy: random
  cooldown_seconds: 300
  max_per_request: 2
resolver:
  prefer_primary: true
  timeout_seconds: 90
  retries: 2
storage:
  gcs_bucket: bucket
  prefix: logs
  content_type: text/plain
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Browser.MaxParallel != 4 || cfg.Fetch.Retries != 3 {
		t.Fatalf("expected browser/fetch overrides to apply")
	}
	if len(cfg.Mirrors.Instances) != 2 || cfg.Mirrors.Strategy != "random" {
		t.Fatalf("expected mirror overrides to apply: %+v", cfg.Mirrors)
	}
	if !cfg.Resolver.PreferPrimary || cfg.Resolver.Retries != 2 {
		t.Fatalf("expected resolver overrides to apply: %+v", cfg.Resolver)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected development logging disabled")
	}
	if got := cfg.FetchTimeout(); got != 20*time.Second {
		t.Fatalf("expected fetch timeout 20s, got %v", got)
	}
	if got := cfg.MirrorCooldown(); got != 300*time.Second {
		t.Fatalf("expected mirror cooldown 300s, got %v", got)
	}
	if got := cfg.ResolverTimeout(); got != 90*time.Second {
		t.Fatalf("expected resolver timeout 90s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if len(cfg.Mirrors.Instances) == 0 {
		t.Fatalf("expected default mirror instances")
	}
	if cfg.Mirrors.Strategy != "round_robin" {
		t.Fatalf("expected default strategy round_robin, got %q", cfg.Mirrors.Strategy)
	}
	if cfg.Resolver.PreferPrimary {
		t.Fatalf("expected mirror-first by default")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Fetch:  FetchConfig{TimeoutSeconds: 10},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid fetch timeout",
			cfg: func() Config {
				c := base
				c.Fetch.TimeoutSeconds = 0
				return c
			}(),
			want: "fetch.timeout_seconds",
		},
		{
			name: "negative browser parallelism",
			cfg: func() Config {
				c := base
				c.Browser.MaxParallel = -1
				return c
			}(),
			want: "browser.max_parallel",
		},
		{
			name: "unknown mirror strategy",
			cfg: func() Config {
				c := base
				c.Mirrors.Strategy = "fastest"
				return c
			}(),
			want: "mirrors.strategy",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
