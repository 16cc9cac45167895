package preflight

import (
	"context"
	"strings"

	"billexact/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail"`
	Optional bool   `json:"optional,omitempty"`
}

// RunAll executes every applicable check for the given config. Rule files
// and the seeds file are only checked when configured. ActivityWatch is
// optional: manual entry and file ingest work without it.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	results = append(results, CheckDatabase(ctx, cfg.Paths.DatabasePath))

	if strings.TrimSpace(cfg.Paths.SeedsPath) != "" {
		results = append(results, CheckSeeds(cfg.Paths.SeedsPath))
	}
	if strings.TrimSpace(cfg.Paths.PolicyDir) != "" {
		results = append(results, CheckPolicy(cfg.Paths.PolicyDir))
	} else if strings.TrimSpace(cfg.Paths.RulesPath) != "" {
		results = append(results, CheckRules(cfg.Paths.RulesPath))
	}

	aw := CheckActivityWatch(ctx, cfg.Ingest.ActivityWatchURL)
	aw.Optional = true
	results = append(results, aw)

	return results
}

// Failed reports whether any required check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
