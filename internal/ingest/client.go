package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"billexact/internal/logging"
)

const (
	windowBucketPrefix = "aw-watcher-window_"
	defaultHTTPTimeout = 10 * time.Second
)

// Client reads window events from an ActivityWatch server.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("activitywatch: base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("activitywatch: parse base url: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: timeout},
		logger:  logging.NewComponentLogger(logger, "activitywatch"),
	}, nil
}

// WindowBuckets lists the IDs of window watcher buckets in sorted order. The
// server may answer with either an object keyed by bucket ID or a list.
func (c *Client) WindowBuckets(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, c.baseURL.JoinPath("api", "0", "buckets"), nil)
	if err != nil {
		return nil, err
	}
	var ids []string
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(body, &keyed); err == nil {
		for id := range keyed {
			ids = append(ids, id)
		}
	} else {
		var listed []struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &listed); err != nil {
			return nil, fmt.Errorf("activitywatch: decode buckets: %w", err)
		}
		for _, b := range listed {
			ids = append(ids, b.ID)
		}
	}
	out := ids[:0]
	for _, id := range ids {
		if strings.HasPrefix(id, windowBucketPrefix) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Events returns the events of one bucket within [start, end).
func (c *Client) Events(ctx context.Context, bucketID string, start, end time.Time) ([]Activity, error) {
	params := url.Values{}
	params.Set("start", start.UTC().Format(time.RFC3339))
	params.Set("end", end.UTC().Format(time.RFC3339))
	body, err := c.get(ctx, c.baseURL.JoinPath("api", "0", "buckets", bucketID, "events"), params)
	if err != nil {
		return nil, err
	}
	var events []rawEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("activitywatch: decode events for %s: %w", bucketID, err)
	}
	return convertEvents(events), nil
}

// Fetch collects window activity across all window buckets. A failing bucket
// is logged and skipped.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) ([]Activity, error) {
	buckets, err := c.WindowBuckets(ctx)
	if err != nil {
		return nil, err
	}
	var out []Activity
	for _, id := range buckets {
		events, err := c.Events(ctx, id, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.WarnWithContext(c.logger, "bucket fetch failed", "activitywatch_bucket_failed",
				logging.String("bucket", id),
				logging.Error(err),
				logging.String(logging.FieldImpact, "bucket events skipped"),
			)
			continue
		}
		out = append(out, events...)
	}
	c.logger.Debug("fetched activity", logging.Args(logging.Int("buckets", len(buckets)), logging.Int("events", len(out)))...)
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint *url.URL, params url.Values) ([]byte, error) {
	if params != nil {
		endpoint.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("activitywatch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("activitywatch: request %s: %w", endpoint.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("activitywatch: %s failed (%s): %s", endpoint.Path, resp.Status, strings.TrimSpace(string(body)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("activitywatch: read response: %w", err)
	}
	return body, nil
}
