package config

const (
	defaultDataDir            = "~/.local/share/billexact"
	defaultDatabasePath       = "~/.local/share/billexact/billexact.db"
	defaultExportDir          = "~/.local/share/billexact/exports"
	defaultLogDir             = "~/.local/share/billexact/logs"
	defaultActivityWatchURL   = "http://127.0.0.1:5600"
	defaultMinFocusSeconds    = 45
	defaultMergeWindowMinutes = 10
	defaultIngestTimeout      = 10
	defaultLEDESFormat        = LEDESFormatMinimum
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// LEDES format names.
const (
	LEDESFormatMinimum = "minimum"
	LEDESFormatFull    = "full"
)

func defaultIgnoreApps() []string {
	return []string{"Spotify", "Photos", "System Settings"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ExportDir: defaultExportDir,
			LogDir:    defaultLogDir,
		},
		Ingest: Ingest{
			ActivityWatchURL: defaultActivityWatchURL,
			RequestTimeout:   defaultIngestTimeout,
		},
		LEDES: LEDES{
			Format: defaultLEDESFormat,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
