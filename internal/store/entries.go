package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"billexact/internal/billing"
)

const entryColumns = "id, work_date, client_id, matter_id, timekeeper_id, duration_hours, description, task_code, activity_code, confidence, rate, source, started_at, archived, invoice_number, created_at, updated_at"

func scanEntry(row scanner) (billing.TimeEntry, error) {
	var (
		e            billing.TimeEntry
		workDate     sql.NullString
		clientID     sql.NullString
		matterID     sql.NullString
		timekeeperID sql.NullString
		taskCode     sql.NullString
		activityCode sql.NullString
		source       string
		startedAt    sql.NullString
		archived     int
		invoice      sql.NullString
		createdAt    sql.NullString
		updatedAt    sql.NullString
	)
	if err := row.Scan(
		&e.ID,
		&workDate,
		&clientID,
		&matterID,
		&timekeeperID,
		&e.DurationHours,
		&e.Description,
		&taskCode,
		&activityCode,
		&e.Confidence,
		&e.Rate,
		&source,
		&startedAt,
		&archived,
		&invoice,
		&createdAt,
		&updatedAt,
	); err != nil {
		return billing.TimeEntry{}, err
	}
	e.WorkDate = parseDate(workDate)
	e.ClientID = clientID.String
	e.MatterID = matterID.String
	e.TimekeeperID = timekeeperID.String
	e.TaskCode = taskCode.String
	e.ActivityCode = activityCode.String
	e.Source = billing.Source(source)
	e.StartedAt = parseTime(startedAt)
	e.Archived = archived != 0
	e.InvoiceNumber = invoice.String
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// InsertEntry stores a new entry, assigning an ID when empty. An entry whose
// (StartedAt, Description) pair already exists yields ErrDuplicate.
func (s *Store) InsertEntry(ctx context.Context, entry billing.TimeEntry) (billing.TimeEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Source == "" {
		entry.Source = billing.SourceManual
	}
	if err := entry.Validate(); err != nil {
		return billing.TimeEntry{}, err
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO time_entries (`+entryColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT DO NOTHING`,
		entry.ID,
		nullableDate(entry.WorkDate),
		nullableString(entry.ClientID),
		nullableString(entry.MatterID),
		nullableString(entry.TimekeeperID),
		entry.DurationHours,
		entry.Description,
		nullableString(entry.TaskCode),
		nullableString(entry.ActivityCode),
		entry.Confidence,
		entry.Rate,
		string(entry.Source),
		nullableTime(entry.StartedAt),
		boolToInt(entry.Archived),
		nullableString(entry.InvoiceNumber),
		nullableTime(entry.CreatedAt),
		nullableTime(entry.UpdatedAt),
	)
	if err != nil {
		return billing.TimeEntry{}, fmt.Errorf("insert entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return billing.TimeEntry{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return billing.TimeEntry{}, fmt.Errorf("%w: %s", ErrDuplicate, entry.ID)
	}
	return entry, nil
}

// GetEntry loads one entry.
func (s *Store) GetEntry(ctx context.Context, id string) (billing.TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM time_entries WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.TimeEntry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return billing.TimeEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// EntryFilter narrows ListEntries. Zero fields match everything.
type EntryFilter struct {
	ClientID        string
	MatterID        string
	TimekeeperID    string
	From            billing.Date
	To              billing.Date
	IncludeArchived bool
	Uncategorized   bool
}

// ListEntries returns entries ordered by work date, capture time, then
// creation time.
func (s *Store) ListEntries(ctx context.Context, f EntryFilter) ([]billing.TimeEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.MatterID != "" {
		where = append(where, "matter_id = ?")
		args = append(args, f.MatterID)
	}
	if f.TimekeeperID != "" {
		where = append(where, "timekeeper_id = ?")
		args = append(args, f.TimekeeperID)
	}
	if !f.From.IsZero() {
		where = append(where, "work_date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "work_date <= ?")
		args = append(args, f.To.String())
	}
	if !f.IncludeArchived {
		where = append(where, "archived = 0")
	}
	if f.Uncategorized {
		where = append(where, "task_code IS NULL")
	}

	query := "SELECT " + entryColumns + " FROM time_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY work_date IS NULL, work_date, started_at, created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []billing.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// UpdateEntry rewrites the mutable fields of an unarchived entry.
func (s *Store) UpdateEntry(ctx context.Context, entry billing.TimeEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE time_entries SET
            work_date = ?, client_id = ?, matter_id = ?, timekeeper_id = ?,
            duration_hours = ?, description = ?, task_code = ?, activity_code = ?,
            confidence = ?, rate = ?, updated_at = ?
         WHERE id = ? AND archived = 0`,
		nullableDate(entry.WorkDate),
		nullableString(entry.ClientID),
		nullableString(entry.MatterID),
		nullableString(entry.TimekeeperID),
		entry.DurationHours,
		entry.Description,
		nullableString(entry.TaskCode),
		nullableString(entry.ActivityCode),
		entry.Confidence,
		entry.Rate,
		time.Now().UTC().Format(time.RFC3339Nano),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return s.checkEntryWrite(ctx, res, entry.ID)
}

// DeleteEntry removes an unarchived entry. Archived entries are kept.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM time_entries WHERE id = ? AND archived = 0", id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return s.checkEntryWrite(ctx, res, id)
}

func (s *Store) checkEntryWrite(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	existing, err := s.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if existing.Archived {
		return fmt.Errorf("entry %s: %w (invoice %s)", id, ErrArchived, existing.InvoiceNumber)
	}
	return fmt.Errorf("entry %s: no rows changed", id)
}

// ArchiveEntries marks entries as invoiced under invoiceNumber. Already
// archived entries are left untouched.
func (s *Store) ArchiveEntries(ctx context.Context, ids []string, invoiceNumber string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var total int64
	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			"UPDATE time_entries SET archived = 1, invoice_number = ?, updated_at = ? WHERE id = ? AND archived = 0",
			invoiceNumber, now, id)
		if err != nil {
			return 0, fmt.Errorf("archive entry %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit archive: %w", err)
	}
	return total, nil
}
