package ingest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const maxSubjectLength = 255

// Activity is one focus interval on a single app and subject.
type Activity struct {
	Start   time.Time
	End     time.Time
	App     string
	Subject string
	URL     string
}

// Duration returns the length of the activity.
func (a Activity) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// MatchText is the text bindings are evaluated against.
func (a Activity) MatchText() string {
	return strings.TrimSpace(a.Subject + " " + a.URL)
}

type rawEvent struct {
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration"`
	Data      struct {
		App     string `json:"app"`
		AppName string `json:"app_name"`
		Title   string `json:"title"`
		URL     string `json:"url"`
	} `json:"data"`
}

// toActivity converts a wire event. Events without a parseable timestamp or
// with a non-positive duration are rejected.
func (e rawEvent) toActivity() (Activity, bool) {
	if e.Duration <= 0 {
		return Activity{}, false
	}
	start, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(e.Timestamp))
	if err != nil {
		return Activity{}, false
	}
	app := strings.TrimSpace(e.Data.App)
	if app == "" {
		app = strings.TrimSpace(e.Data.AppName)
	}
	title := strings.TrimSpace(e.Data.Title)
	rawURL := strings.TrimSpace(e.Data.URL)
	if title == "" {
		title = app
	}
	if title == "" {
		title = rawURL
	}
	if title == "" {
		title = "activity"
	}
	if strings.HasPrefix(title, "http") {
		if rawURL == "" {
			rawURL = title
		}
		title = shortenURL(title)
	}
	if len([]rune(title)) > maxSubjectLength {
		title = string([]rune(title)[:maxSubjectLength])
	}
	start = start.UTC()
	return Activity{
		Start:   start,
		End:     start.Add(time.Duration(e.Duration * float64(time.Second))),
		App:     app,
		Subject: title,
		URL:     rawURL,
	}, true
}

// shortenURL reduces a URL title to host and path.
func shortenURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := u.Host
	if host == "" {
		host = "web"
	}
	return host + u.Path
}

func convertEvents(events []rawEvent) []Activity {
	out := make([]Activity, 0, len(events))
	for _, ev := range events {
		if a, ok := ev.toActivity(); ok {
			out = append(out, a)
		}
	}
	return out
}

// ReadEventsFile loads events from a JSON file holding either a bare event
// array or an object with an "events" array.
func ReadEventsFile(path string) ([]Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}
	return ParseEvents(data)
}

// ParseEvents decodes the formats accepted by ReadEventsFile.
func ParseEvents(data []byte) ([]Activity, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	var events []rawEvent
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		return convertEvents(events), nil
	}
	var wrapped struct {
		Events []rawEvent `json:"events"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return convertEvents(wrapped.Events), nil
}
