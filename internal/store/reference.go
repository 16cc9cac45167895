package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"billexact/internal/billing"
)

// UpsertMatter inserts or replaces a matter keyed by ClientMatterID.
func (s *Store) UpsertMatter(ctx context.Context, m billing.Matter) error {
	if strings.TrimSpace(m.ClientMatterID) == "" || strings.TrimSpace(m.ClientID) == "" {
		return fmt.Errorf("%w: matter requires client_id and client_matter_id", billing.ErrInvalidEntry)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matters (client_matter_id, client_id, law_firm_matter_id, law_firm_id, description, billing_start, billing_end)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(client_matter_id) DO UPDATE SET
            client_id = excluded.client_id,
            law_firm_matter_id = excluded.law_firm_matter_id,
            law_firm_id = excluded.law_firm_id,
            description = excluded.description,
            billing_start = excluded.billing_start,
            billing_end = excluded.billing_end`,
		m.ClientMatterID, m.ClientID, m.LawFirmMatterID, m.LawFirmID, m.Description,
		nullableDate(m.BillingStart), nullableDate(m.BillingEnd),
	)
	if err != nil {
		return fmt.Errorf("upsert matter: %w", err)
	}
	return nil
}

const matterColumns = "client_matter_id, client_id, law_firm_matter_id, law_firm_id, description, billing_start, billing_end"

func scanMatter(row scanner) (billing.Matter, error) {
	var (
		m          billing.Matter
		start, end sql.NullString
	)
	if err := row.Scan(&m.ClientMatterID, &m.ClientID, &m.LawFirmMatterID, &m.LawFirmID, &m.Description, &start, &end); err != nil {
		return billing.Matter{}, err
	}
	m.BillingStart = parseDate(start)
	m.BillingEnd = parseDate(end)
	return m, nil
}

// GetMatter loads a matter by client matter ID.
func (s *Store) GetMatter(ctx context.Context, clientMatterID string) (billing.Matter, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+matterColumns+" FROM matters WHERE client_matter_id = ?", clientMatterID)
	m, err := scanMatter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Matter{}, fmt.Errorf("matter %s: %w", clientMatterID, ErrNotFound)
	}
	if err != nil {
		return billing.Matter{}, fmt.Errorf("get matter: %w", err)
	}
	return m, nil
}

// ListMatters returns all matters ordered by client, then matter.
func (s *Store) ListMatters(ctx context.Context) ([]billing.Matter, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+matterColumns+" FROM matters ORDER BY client_id, client_matter_id")
	if err != nil {
		return nil, fmt.Errorf("list matters: %w", err)
	}
	defer rows.Close()
	var out []billing.Matter
	for rows.Next() {
		m, err := scanMatter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan matter: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertTimekeeper inserts or replaces a timekeeper.
func (s *Store) UpsertTimekeeper(ctx context.Context, tk billing.Timekeeper) error {
	if strings.TrimSpace(tk.ID) == "" {
		return fmt.Errorf("%w: timekeeper id is required", billing.ErrInvalidEntry)
	}
	if tk.Rate < 0 {
		return fmt.Errorf("%w: timekeeper %s has negative rate", billing.ErrInvalidEntry, tk.ID)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timekeepers (id, name, classification, rate) VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET name = excluded.name, classification = excluded.classification, rate = excluded.rate`,
		tk.ID, tk.Name, tk.Classification, tk.Rate,
	)
	if err != nil {
		return fmt.Errorf("upsert timekeeper: %w", err)
	}
	return nil
}

// GetTimekeeper loads one timekeeper.
func (s *Store) GetTimekeeper(ctx context.Context, id string) (billing.Timekeeper, error) {
	var tk billing.Timekeeper
	err := s.db.QueryRowContext(ctx, "SELECT id, name, classification, rate FROM timekeepers WHERE id = ?", id).
		Scan(&tk.ID, &tk.Name, &tk.Classification, &tk.Rate)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Timekeeper{}, fmt.Errorf("timekeeper %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return billing.Timekeeper{}, fmt.Errorf("get timekeeper: %w", err)
	}
	return tk, nil
}

// ListTimekeepers returns all timekeepers ordered by ID.
func (s *Store) ListTimekeepers(ctx context.Context) ([]billing.Timekeeper, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, classification, rate FROM timekeepers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list timekeepers: %w", err)
	}
	defer rows.Close()
	var out []billing.Timekeeper
	for rows.Next() {
		var tk billing.Timekeeper
		if err := rows.Scan(&tk.ID, &tk.Name, &tk.Classification, &tk.Rate); err != nil {
			return nil, fmt.Errorf("scan timekeeper: %w", err)
		}
		out = append(out, tk)
	}
	return out, rows.Err()
}

// AddBinding validates and appends a binding. Bindings evaluate in ID order.
func (s *Store) AddBinding(ctx context.Context, b billing.Binding) (billing.Binding, error) {
	if _, err := b.Compile(); err != nil {
		return billing.Binding{}, err
	}
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO bindings (kind, pattern, target) VALUES (?, ?, ?) RETURNING id",
		string(b.Kind), b.Pattern, b.Target,
	).Scan(&b.ID)
	if err != nil {
		return billing.Binding{}, fmt.Errorf("insert binding: %w", err)
	}
	return b, nil
}

// ListBindings returns bindings in insertion order.
func (s *Store) ListBindings(ctx context.Context) ([]billing.Binding, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, kind, pattern, target FROM bindings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	defer rows.Close()
	var out []billing.Binding
	for rows.Next() {
		var (
			b    billing.Binding
			kind string
		)
		if err := rows.Scan(&b.ID, &kind, &b.Pattern, &b.Target); err != nil {
			return nil, fmt.Errorf("scan binding: %w", err)
		}
		b.Kind = billing.BindingKind(kind)
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBinding removes one binding.
func (s *Store) DeleteBinding(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "bindings", id)
}

func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return nil
}
