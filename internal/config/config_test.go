package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Crawl.DepthOrDefault(); got != 1 {
		t.Errorf("depth = %d, want 1", got)
	}
	if got := cfg.Crawl.MaxSnippetsOrDefault(); got != 25 {
		t.Errorf("max snippets = %d, want 25", got)
	}
	if got := cfg.Cache.FilesOrDefault(); got != 256 {
		t.Errorf("cache files = %d, want 256", got)
	}
	if got := cfg.Log.LevelOrDefault(); got != "warn" {
		t.Errorf("log level = %q, want warn", got)
	}
	if cfg.Servers == nil {
		t.Error("servers map should be initialized")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabctx.toml")
	content := `
[crawl]
depth = 3
max_snippets = 10

[cache]
files = 64

[servers]
go = "gopls"
python = "pyright-langserver"

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Crawl.Depth != 3 || cfg.Crawl.MaxSnippets != 10 {
		t.Errorf("crawl = %+v", cfg.Crawl)
	}
	if cfg.Cache.Files != 64 {
		t.Errorf("cache.files = %d", cfg.Cache.Files)
	}
	if cfg.Servers["go"] != "gopls" || cfg.Servers["python"] != "pyright-langserver" {
		t.Errorf("servers = %v", cfg.Servers)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want not-found error", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TABCTX_DEPTH", "4")
	t.Setenv("TABCTX_MAX_SNIPPETS", "7")
	t.Setenv("TABCTX_LOG_LEVEL", "info")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Crawl.Depth != 4 {
		t.Errorf("depth = %d, want 4", cfg.Crawl.Depth)
	}
	if cfg.Crawl.MaxSnippets != 7 {
		t.Errorf("max snippets = %d, want 7", cfg.Crawl.MaxSnippets)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"defaults", Config{}, ""},
		{"negative depth", Config{Crawl: CrawlConfig{Depth: -1}}, "crawl.depth"},
		{"negative snippets", Config{Crawl: CrawlConfig{MaxSnippets: -5}}, "crawl.max_snippets"},
		{"negative cache", Config{Cache: CacheConfig{Files: -1}}, "cache.files"},
		{"bad level", Config{Log: LogConfig{Level: "loud"}}, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
