package store

import (
	"context"
	"fmt"

	"billexact/internal/keywords"
)

// ListKeywords returns keyword rules in insertion order.
func (s *Store) ListKeywords(ctx context.Context) ([]keywords.KeywordRule, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, phrase, task_code, activity_code, confidence_boost FROM keyword_rules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer rows.Close()
	var out []keywords.KeywordRule
	for rows.Next() {
		var r keywords.KeywordRule
		if err := rows.Scan(&r.ID, &r.Phrase, &r.TaskCode, &r.ActivityCode, &r.ConfidenceBoost); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListOverrides returns override rules in insertion order.
func (s *Store) ListOverrides(ctx context.Context) ([]keywords.OverrideRule, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, phrase, task_code, activity_code, notes FROM override_rules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()
	var out []keywords.OverrideRule
	for rows.Next() {
		var r keywords.OverrideRule
		if err := rows.Scan(&r.ID, &r.Phrase, &r.TaskCode, &r.ActivityCode, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertKeyword inserts a rule or updates the rule with the same phrase in
// place, keeping its ID and position.
func (s *Store) UpsertKeyword(ctx context.Context, r keywords.KeywordRule) (keywords.KeywordRule, error) {
	if err := r.Normalize(); err != nil {
		return keywords.KeywordRule{}, err
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO keyword_rules (phrase, task_code, activity_code, confidence_boost) VALUES (?, ?, ?, ?)
         ON CONFLICT(phrase) DO UPDATE SET
            task_code = excluded.task_code,
            activity_code = excluded.activity_code,
            confidence_boost = excluded.confidence_boost
         RETURNING id`,
		r.Phrase, r.TaskCode, r.ActivityCode, r.ConfidenceBoost,
	).Scan(&r.ID)
	if err != nil {
		return keywords.KeywordRule{}, fmt.Errorf("upsert keyword: %w", err)
	}
	return r, nil
}

// UpsertOverride inserts an override or updates the one with the same phrase.
func (s *Store) UpsertOverride(ctx context.Context, r keywords.OverrideRule) (keywords.OverrideRule, error) {
	if err := r.Normalize(); err != nil {
		return keywords.OverrideRule{}, err
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO override_rules (phrase, task_code, activity_code, notes) VALUES (?, ?, ?, ?)
         ON CONFLICT(phrase) DO UPDATE SET
            task_code = excluded.task_code,
            activity_code = excluded.activity_code,
            notes = excluded.notes
         RETURNING id`,
		r.Phrase, r.TaskCode, r.ActivityCode, r.Notes,
	).Scan(&r.ID)
	if err != nil {
		return keywords.OverrideRule{}, fmt.Errorf("upsert override: %w", err)
	}
	return r, nil
}

func (s *Store) DeleteKeyword(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "keyword_rules", id)
}

func (s *Store) DeleteOverride(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "override_rules", id)
}

// ImportSeeds upserts every seed rule in one transaction and returns the
// number of keyword and override rows written.
func (s *Store) ImportSeeds(ctx context.Context, seeds *keywords.Seeds) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range seeds.Keywords {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO keyword_rules (phrase, task_code, activity_code, confidence_boost) VALUES (?, ?, ?, ?)
             ON CONFLICT(phrase) DO UPDATE SET task_code = excluded.task_code, activity_code = excluded.activity_code, confidence_boost = excluded.confidence_boost`,
			r.Phrase, r.TaskCode, r.ActivityCode, r.ConfidenceBoost); err != nil {
			return 0, 0, fmt.Errorf("seed keyword %q: %w", r.Phrase, err)
		}
	}
	for _, r := range seeds.Overrides {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO override_rules (phrase, task_code, activity_code, notes) VALUES (?, ?, ?, ?)
             ON CONFLICT(phrase) DO UPDATE SET task_code = excluded.task_code, activity_code = excluded.activity_code, notes = excluded.notes`,
			r.Phrase, r.TaskCode, r.ActivityCode, r.Notes); err != nil {
			return 0, 0, fmt.Errorf("seed override %q: %w", r.Phrase, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit seeds: %w", err)
	}
	return len(seeds.Keywords), len(seeds.Overrides), nil
}

var _ keywords.Backend = (*Store)(nil)
