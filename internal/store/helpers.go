package store

import (
	"database/sql"
	"strings"
	"time"

	"billexact/internal/billing"
)

type scanner interface {
	Scan(dest ...any) error
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableDate(d billing.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDate(raw sql.NullString) billing.Date {
	if !raw.Valid {
		return billing.Date{}
	}
	d, err := billing.ParseDate(raw.String)
	if err != nil {
		return billing.Date{}
	}
	return d
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
