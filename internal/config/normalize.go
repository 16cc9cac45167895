package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeIngest(); err != nil {
		return err
	}
	c.normalizeBilling()
	c.normalizeLEDES()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		if value, ok := os.LookupEnv("BILLEXACT_DB"); ok && strings.TrimSpace(value) != "" {
			c.Paths.DatabasePath = strings.TrimSpace(value)
		} else {
			c.Paths.DatabasePath = defaultDatabasePath
		}
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SeedsPath) == "" {
		if value, ok := os.LookupEnv("UTBMS_SEEDS"); ok {
			c.Paths.SeedsPath = strings.TrimSpace(value)
		}
	}
	if c.Paths.SeedsPath, err = expandPath(strings.TrimSpace(c.Paths.SeedsPath)); err != nil {
		return fmt.Errorf("paths.seeds_path: %w", err)
	}
	if c.Paths.RulesPath, err = expandPath(strings.TrimSpace(c.Paths.RulesPath)); err != nil {
		return fmt.Errorf("paths.rules_path: %w", err)
	}
	if c.Paths.PolicyDir, err = expandPath(strings.TrimSpace(c.Paths.PolicyDir)); err != nil {
		return fmt.Errorf("paths.policy_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeIngest() error {
	c.Ingest.ActivityWatchURL = strings.TrimRight(strings.TrimSpace(c.Ingest.ActivityWatchURL), "/")
	if c.Ingest.ActivityWatchURL == "" {
		c.Ingest.ActivityWatchURL = defaultActivityWatchURL
	}
	if c.Ingest.MinFocusSeconds <= 0 {
		value, err := envInt("BILLEXACT_MIN_FOCUS_SEC")
		if err != nil {
			return fmt.Errorf("ingest.min_focus_seconds: %w", err)
		}
		c.Ingest.MinFocusSeconds = value
		if c.Ingest.MinFocusSeconds <= 0 {
			c.Ingest.MinFocusSeconds = defaultMinFocusSeconds
		}
	}
	if c.Ingest.MergeWindowMinutes <= 0 {
		value, err := envInt("BILLEXACT_MERGE_WINDOW_MIN")
		if err != nil {
			return fmt.Errorf("ingest.merge_window_minutes: %w", err)
		}
		c.Ingest.MergeWindowMinutes = value
		if c.Ingest.MergeWindowMinutes <= 0 {
			c.Ingest.MergeWindowMinutes = defaultMergeWindowMinutes
		}
	}
	if len(c.Ingest.IgnoreApps) == 0 {
		if value, ok := os.LookupEnv("BILLEXACT_IGNORE_APPS"); ok {
			c.Ingest.IgnoreApps = strings.Split(value, ",")
		} else {
			c.Ingest.IgnoreApps = defaultIgnoreApps()
		}
	}
	apps := make([]string, 0, len(c.Ingest.IgnoreApps))
	seen := make(map[string]struct{}, len(c.Ingest.IgnoreApps))
	for _, app := range c.Ingest.IgnoreApps {
		trimmed := strings.TrimSpace(app)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		apps = append(apps, trimmed)
	}
	c.Ingest.IgnoreApps = apps
	if c.Ingest.RequestTimeout <= 0 {
		c.Ingest.RequestTimeout = defaultIngestTimeout
	}
	return nil
}

func (c *Config) normalizeBilling() {
	c.Billing.DefaultTimekeeperID = strings.TrimSpace(c.Billing.DefaultTimekeeperID)
	c.Billing.LawFirmID = strings.TrimSpace(c.Billing.LawFirmID)
}

func (c *Config) normalizeLEDES() {
	c.LEDES.Format = strings.ToLower(strings.TrimSpace(c.LEDES.Format))
	if c.LEDES.Format == "" {
		c.LEDES.Format = defaultLEDESFormat
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envInt(name string) (int, error) {
	value, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return parsed, nil
}
