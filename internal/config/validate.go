package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateBilling(); err != nil {
		return err
	}
	if err := c.validateLEDES(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DatabasePath == "" {
		return errors.New("paths.database_path must be set")
	}
	if c.Paths.ExportDir == "" {
		return errors.New("paths.export_dir must be set")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.MinFocusSeconds <= 0 {
		return errors.New("ingest.min_focus_seconds must be positive")
	}
	if c.Ingest.MergeWindowMinutes <= 0 {
		return errors.New("ingest.merge_window_minutes must be positive")
	}
	if c.Ingest.RequestTimeout <= 0 {
		return errors.New("ingest.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateBilling() error {
	if c.Billing.DefaultRate < 0 {
		return errors.New("billing.default_rate must not be negative")
	}
	return nil
}

func (c *Config) validateLEDES() error {
	switch c.LEDES.Format {
	case LEDESFormatMinimum, LEDESFormatFull:
		return nil
	default:
		return fmt.Errorf("ledes.format: unsupported value %q (use %q or %q)", c.LEDES.Format, LEDESFormatMinimum, LEDESFormatFull)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
