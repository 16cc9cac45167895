package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"billexact/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "data", "billexact.db")
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SeedsPath = ""
	cfgVal.Paths.RulesPath = ""
	cfgVal.Paths.PolicyDir = ""
	cfgVal.Ingest.ActivityWatchURL = "http://127.0.0.1:0"
	cfgVal.Ingest.MinFocusSeconds = 45
	cfgVal.Ingest.MergeWindowMinutes = 10
	cfgVal.Ingest.IgnoreApps = []string{"Spotify"}
	cfgVal.Billing.DefaultRate = 300
	cfgVal.Billing.DefaultTimekeeperID = "TK1"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithActivityWatchURL points ingestion at a test server.
func WithActivityWatchURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.ActivityWatchURL = url
	}
}

// WithRulesFile writes contents to rules.yml under the base dir and points
// the config at it.
func WithRulesFile(contents string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "rules.yml")
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			b.t.Fatalf("write rules file: %v", err)
		}
		b.cfg.Paths.RulesPath = path
	}
}

// WithPolicyFiles writes each name/contents pair into a policy directory and
// points the config at it.
func WithPolicyFiles(files map[string]string) ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "policies")
		for name, contents := range files {
			WriteFile(b.t, filepath.Join(dir, name), contents)
		}
		b.cfg.Paths.PolicyDir = dir
	}
}

// WithIsolatedHome points HOME and XDG_CONFIG_HOME at the temp dir so config
// discovery never reads the developer's files.
func WithIsolatedHome() ConfigOption {
	return func(b *configBuilder) {
		home := filepath.Join(b.baseDir, "home")
		if err := os.MkdirAll(home, 0o755); err != nil {
			b.t.Fatalf("mkdir home: %v", err)
		}
		if tt, ok := b.t.(*testing.T); ok {
			tt.Setenv("HOME", home)
			tt.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
