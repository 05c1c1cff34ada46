package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Enrich.PageCap != 20 {
		t.Fatalf("expected default page cap 20, got %d", cfg.Enrich.PageCap)
	}
	if cfg.Enrich.BusinessWindow != 24*time.Hour {
		t.Fatalf("expected default business window 24h, got %v", cfg.Enrich.BusinessWindow)
	}
	if cfg.Enrich.PageAIWindow != 7*24*time.Hour {
		t.Fatalf("expected default page AI window 168h, got %v", cfg.Enrich.PageAIWindow)
	}
	if cfg.Render.Concurrency != 2 {
		t.Fatalf("expected default render concurrency 2, got %d", cfg.Render.Concurrency)
	}
	if cfg.Storage.Prefix != "businesses" {
		t.Fatalf("expected default storage prefix, got %q", cfg.Storage.Prefix)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  queue_depth: 32
  workers: 4
enrich:
  page_cap: 10
  business_window: 12h
  page_ai_window: 72h
  audit_concurrency: 2
render:
  concurrency: 3
  max_attempts: 2
  attempt_timeout: 30s
  headless: false
  user_agent: custom-agent
db:
  dsn: postgres://localhost/paradane
storage:
  gcs_bucket: snapshots
  prefix: pages
pubsub:
  project_id: proj
  topic_name: enrichment-runs
openrouter:
  api_key: or-key
  model: meta-llama/llama-3.3-70b-instruct
pagespeed:
  api_key: ps-key
  strategy: mobile
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

	if cfg.Server.Port != 9090 || cfg.Server.Workers != 4 {
		t.Fatalf("expected server overrides to apply: %+v", cfg.Server)
	}
	if cfg.Enrich.PageCap != 10 || cfg.Enrich.BusinessWindow != 12*time.Hour {
		t.Fatalf("expected enrich overrides to apply: %+v", cfg.Enrich)
	}
	if cfg.Render.Headless || cfg.Render.UserAgent != "custom-agent" {
		t.Fatalf("expected render overrides to apply: %+v", cfg.Render)
	}
	if cfg.DB.DSN != "postgres://localhost/paradane" {
		t.Fatalf("expected db dsn override, got %q", cfg.DB.DSN)
	}
	if cfg.PubSub.TopicName != "enrichment-runs" {
		t.Fatalf("expected pubsub override, got %+v", cfg.PubSub)
	}
	if cfg.PageSpeed.Strategy != "mobile" || cfg.PageSpeed.APIKey != "ps-key" {
		t.Fatalf("expected pagespeed overrides to apply: %+v", cfg.PageSpeed)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected logging.development=false")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080, QueueDepth: 64, Workers: 2},
		Enrich: EnrichConfig{
			PageCap:        20,
			BusinessWindow: 24 * time.Hour,
			PageAIWindow:   7 * 24 * time.Hour,
		},
		Render: RenderConfig{Concurrency: 2, MaxAttempts: 3},
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
			name: "invalid queue depth",
			cfg: func() Config {
				c := base
				c.Server.QueueDepth = 0
				return c
			}(),
			want: "server.queue_depth",
		},
		{
			name: "invalid page cap",
			cfg: func() Config {
				c := base
				c.Enrich.PageCap = 0
				return c
			}(),
			want: "enrich.page_cap",
		},
		{
			name: "invalid business window",
			cfg: func() Config {
				c := base
				c.Enrich.BusinessWindow = 0
				return c
			}(),
			want: "enrich.business_window",
		},
		{
			name: "invalid render concurrency",
			cfg: func() Config {
				c := base
				c.Render.Concurrency = 0
				return c
			}(),
			want: "render.concurrency",
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
