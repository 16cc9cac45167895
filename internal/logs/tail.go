package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// DefaultPollInterval is how often Follow checks the file for new lines.
const DefaultPollInterval = 250 * time.Millisecond

// Options selects which lines Last and Follow return.
type Options struct {
	// Lines caps how many trailing lines Last returns; zero returns none
	// but still reports the end offset.
	Lines int
	// Match keeps only lines containing this substring (case-insensitive).
	Match string
}

func (o Options) keep(line string) bool {
	if o.Match == "" {
		return true
	}
	return strings.Contains(strings.ToLower(line), strings.ToLower(o.Match))
}

// Last returns the trailing lines of the file at path and the offset just
// past them. A missing file yields no lines and offset zero.
func Last(path string, opts Options) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if opts.Lines <= 0 {
		return nil, info.Size(), nil
	}

	ring := make([]string, opts.Lines)
	count, idx := 0, 0
	offset, err := scan(file, func(line string) {
		if !opts.keep(line) {
			return
		}
		ring[idx] = line
		idx = (idx + 1) % opts.Lines
		if count < opts.Lines {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, count)
	if count == opts.Lines {
		for i := range count {
			lines[i] = ring[(idx+i)%opts.Lines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, offset, nil
}

// Follow calls emit for every matching line appended after offset until ctx
// is done. A file truncated below offset is read again from the start.
func Follow(ctx context.Context, path string, offset int64, opts Options, poll time.Duration, emit func(string)) error {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, opts, emit)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, opts Options, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		offset = 0
	}
	if offset == info.Size() {
		return offset, nil
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}

	end, err := scan(file, func(line string) {
		if opts.keep(line) {
			emit(line)
		}
	})
	if err != nil {
		return offset, err
	}
	return end, nil
}

// scan feeds each line of file to fn and returns the file offset afterwards.
func scan(file *os.File, fn func(string)) (int64, error) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	return offset, nil
}
