package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"billexact/internal/compliance"
	"billexact/internal/keywords"
	"billexact/internal/store"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabase opens the database, applying migrations, and reports the
// number of active entries.
func CheckDatabase(ctx context.Context, path string) Result {
	const name = "Database"

	st, err := store.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer st.Close()

	entries, err := st.ListEntries(ctx, store.EntryFilter{})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d active entries)", path, len(entries))}
}

// CheckSeeds verifies that the keyword seeds file parses and compiles.
func CheckSeeds(path string) Result {
	const name = "Keyword seeds"

	seeds, err := keywords.LoadSeeds(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	snap, err := seeds.Snapshot()
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d rules)", path, snap.Len())}
}

// CheckRules verifies that the compliance rules file parses.
func CheckRules(path string) Result {
	cfg, err := compliance.LoadConfig(path)
	return ruleResult("Compliance rules", path, cfg, err)
}

// CheckPolicy verifies that the base policy in dir parses.
func CheckPolicy(dir string) Result {
	cfg, err := compliance.LoadPolicy(dir, "")
	return ruleResult("Compliance policy", dir, cfg, err)
}

func ruleResult(name, source string, cfg *compliance.Config, err error) Result {
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	warnings := cfg.Warnings()
	if len(warnings) > 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d warnings: %s)", source, len(warnings), warnings[0])}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (ok)", source)}
}

// CheckActivityWatch verifies that the ActivityWatch server answers its
// info endpoint.
func CheckActivityWatch(ctx context.Context, baseURL string) Result {
	const name = "ActivityWatch"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/api/0/info", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("info check failed (%d)", resp.StatusCode)}
	}

	var info struct {
		Hostname string `json:"hostname"`
		Version  string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || info.Version == "" {
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
	detail := "Reachable (v" + strings.TrimPrefix(info.Version, "v")
	if info.Hostname != "" {
		detail += " on " + info.Hostname
	}
	return Result{Name: name, Passed: true, Detail: detail + ")"}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "unreachable (timed out)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "unreachable (timed out)"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("unreachable (%v)", opErr.Err)
	}
	return fmt.Sprintf("unreachable (%v)", err)
}
