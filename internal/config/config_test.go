package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"billexact/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"BILLEXACT_DB", "UTBMS_SEEDS", "BILLEXACT_MIN_FOCUS_SEC", "BILLEXACT_MERGE_WINDOW_MIN", "BILLEXACT_IGNORE_APPS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	home := isolateEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDB := filepath.Join(home, ".local", "share", "billexact", "billexact.db")
	if cfg.Paths.DatabasePath != wantDB {
		t.Fatalf("unexpected database path: got %q want %q", cfg.Paths.DatabasePath, wantDB)
	}
	if cfg.Paths.ExportDir != filepath.Join(home, ".local", "share", "billexact", "exports") {
		t.Fatalf("unexpected export dir: %q", cfg.Paths.ExportDir)
	}
	if cfg.Ingest.MinFocusSeconds != 45 {
		t.Fatalf("expected min focus default 45, got %d", cfg.Ingest.MinFocusSeconds)
	}
	if cfg.Ingest.MergeWindowMinutes != 10 {
		t.Fatalf("expected merge window default 10, got %d", cfg.Ingest.MergeWindowMinutes)
	}
	if len(cfg.Ingest.IgnoreApps) != 3 || cfg.Ingest.IgnoreApps[0] != "Spotify" {
		t.Fatalf("unexpected ignore apps: %v", cfg.Ingest.IgnoreApps)
	}
	if cfg.LEDES.Format != config.LEDESFormatMinimum {
		t.Fatalf("expected minimum LEDES format, got %q", cfg.LEDES.Format)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Paths.SeedsPath != "" {
		t.Fatalf("expected no seeds path by default, got %q", cfg.Paths.SeedsPath)
	}
}

func TestLoadCustomPath(t *testing.T) {
	isolateEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "billexact.toml")

	type payload struct {
		Paths struct {
			DatabasePath string `toml:"database_path"`
		} `toml:"paths"`
		Ingest struct {
			MinFocusSeconds    int      `toml:"min_focus_seconds"`
			MergeWindowMinutes int      `toml:"merge_window_minutes"`
			IgnoreApps         []string `toml:"ignore_apps"`
		} `toml:"ingest"`
		LEDES struct {
			Format string `toml:"format"`
		} `toml:"ledes"`
	}
	custom := payload{}
	custom.Paths.DatabasePath = filepath.Join(tempDir, "custom.db")
	custom.Ingest.MinFocusSeconds = 90
	custom.Ingest.MergeWindowMinutes = 3
	custom.Ingest.IgnoreApps = []string{" Slack ", "slack", "Music"}
	custom.LEDES.Format = " FULL "
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.DatabasePath != filepath.Join(tempDir, "custom.db") {
		t.Fatalf("expected database path from file, got %q", cfg.Paths.DatabasePath)
	}
	if cfg.Ingest.MinFocusSeconds != 90 || cfg.Ingest.MergeWindowMinutes != 3 {
		t.Fatalf("unexpected ingest settings: %+v", cfg.Ingest)
	}
	if got := strings.Join(cfg.Ingest.IgnoreApps, ","); got != "Slack,Music" {
		t.Fatalf("expected deduplicated ignore apps, got %q", got)
	}
	if cfg.LEDES.Format != config.LEDESFormatFull {
		t.Fatalf("expected full LEDES format, got %q", cfg.LEDES.Format)
	}
}

func TestEnvVarsFillEmptySettings(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("BILLEXACT_DB", dbPath)
	t.Setenv("UTBMS_SEEDS", filepath.Join(t.TempDir(), "seeds.json"))
	t.Setenv("BILLEXACT_MIN_FOCUS_SEC", "120")
	t.Setenv("BILLEXACT_MERGE_WINDOW_MIN", "5")
	t.Setenv("BILLEXACT_IGNORE_APPS", "Spotify, Mail ,")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DatabasePath != dbPath {
		t.Errorf("expected database path from env, got %q", cfg.Paths.DatabasePath)
	}
	if !strings.HasSuffix(cfg.Paths.SeedsPath, "seeds.json") {
		t.Errorf("expected seeds path from env, got %q", cfg.Paths.SeedsPath)
	}
	if cfg.Ingest.MinFocusSeconds != 120 {
		t.Errorf("expected min focus from env, got %d", cfg.Ingest.MinFocusSeconds)
	}
	if cfg.Ingest.MergeWindowMinutes != 5 {
		t.Errorf("expected merge window from env, got %d", cfg.Ingest.MergeWindowMinutes)
	}
	if got := strings.Join(cfg.Ingest.IgnoreApps, ","); got != "Spotify,Mail" {
		t.Errorf("unexpected ignore apps from env: %q", got)
	}
}

func TestFileValuesWinOverEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv("BILLEXACT_MIN_FOCUS_SEC", "120")
	configPath := filepath.Join(t.TempDir(), "billexact.toml")
	if err := os.WriteFile(configPath, []byte("[ingest]\nmin_focus_seconds = 30\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Ingest.MinFocusSeconds != 30 {
		t.Fatalf("expected file value to win, got %d", cfg.Ingest.MinFocusSeconds)
	}
}

func TestLoadRejectsNonNumericEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv("BILLEXACT_MERGE_WINDOW_MIN", "ten")

	if _, _, _, err := config.Load(""); err == nil {
		t.Fatal("expected error for non-numeric merge window")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "BILLEXACT_DB") {
		t.Fatalf("sample config missing env documentation: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.ExportDir, "billexact") {
			t.Fatalf("expected export dir to contain billexact, got %q", cfg.Paths.ExportDir)
		}
	}
	if cfg.Ingest.MinFocusSeconds != 45 {
		t.Fatalf("expected sample min focus 45, got %d", cfg.Ingest.MinFocusSeconds)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Paths.DatabasePath = "/tmp/billexact.db"
		cfg.Ingest.MinFocusSeconds = 45
		cfg.Ingest.MergeWindowMinutes = 10
		return cfg
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing database", func(c *config.Config) { c.Paths.DatabasePath = "" }},
		{"zero focus", func(c *config.Config) { c.Ingest.MinFocusSeconds = 0 }},
		{"zero merge window", func(c *config.Config) { c.Ingest.MergeWindowMinutes = 0 }},
		{"negative rate", func(c *config.Config) { c.Billing.DefaultRate = -1 }},
		{"unknown ledes format", func(c *config.Config) { c.LEDES.Format = "xml" }},
		{"unknown log level", func(c *config.Config) { c.Logging.Level = "trace" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
