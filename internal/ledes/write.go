package ledes

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the conventional invoice file name for a matter.
func FileName(matterID, invoiceNumber string) string {
	return fmt.Sprintf("%s_%s_LEDES1998B.txt",
		unsafeName.ReplaceAllString(matterID, "-"),
		unsafeName.ReplaceAllString(invoiceNumber, "-"))
}

// WriteFile atomically replaces path with data. A sibling lock file keeps
// two exports of the same invoice from interleaving; a held lock is an error.
// The lock file stays in place after the write.
func WriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("invoice %s is being written by another process", path)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write invoice: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync invoice: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close invoice: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod invoice: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename invoice: %w", err)
	}
	return nil
}
