package keywords_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"billexact/internal/keywords"
)

func TestNormalize(t *testing.T) {
	if got := keywords.Normalize("  Cafe\u0301 MEETING "); got != "caf\u00e9 meeting" {
		t.Fatalf("Normalize = %q", got)
	}
}

func TestNewSnapshotReplacesDuplicatePhraseInPlace(t *testing.T) {
	snap, err := keywords.NewSnapshot(nil, []keywords.KeywordRule{
		{ID: 1, Phrase: "Motion", TaskCode: "L250", ActivityCode: "A103", ConfidenceBoost: 0.5},
		{ID: 2, Phrase: "brief", TaskCode: "L250", ActivityCode: "A103", ConfidenceBoost: 0.6},
		{ID: 3, Phrase: " motion ", TaskCode: "L240", ActivityCode: "A104", ConfidenceBoost: 0.9},
	})
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	got := snap.Keywords()
	if len(got) != 2 {
		t.Fatalf("expected 2 keywords, got %d", len(got))
	}
	if got[0].ID != 3 || got[0].Phrase != "motion" || got[0].TaskCode != "L240" {
		t.Fatalf("duplicate should replace first position, got %+v", got[0])
	}
	if got[1].ID != 2 {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestNewSnapshotRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		kw   keywords.KeywordRule
	}{
		{name: "empty phrase", kw: keywords.KeywordRule{Phrase: " ", TaskCode: "L110", ActivityCode: "A101"}},
		{name: "missing activity", kw: keywords.KeywordRule{Phrase: "x", TaskCode: "L110"}},
		{name: "boost too high", kw: keywords.KeywordRule{Phrase: "x", TaskCode: "L110", ActivityCode: "A101", ConfidenceBoost: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := keywords.NewSnapshot(nil, []keywords.KeywordRule{tt.kw})
			if !errors.Is(err, keywords.ErrInvalidRule) {
				t.Fatalf("expected ErrInvalidRule, got %v", err)
			}
		})
	}
}

func TestLoadSeedsAppliesDefaultBoost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.json")
	content := `{"keywords":[{"phrase":"Deposition","task_code":"l330","activity_code":"a101"},
{"phrase":"motion","task_code":"L250","activity_code":"A103","confidence_boost":0.4}],
"overrides":[{"phrase":"Acme board call","task_code":"L120","activity_code":"A106","notes":"client request"}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seeds: %v", err)
	}

	seeds, err := keywords.LoadSeeds(path)
	if err != nil {
		t.Fatalf("LoadSeeds: %v", err)
	}
	if len(seeds.Keywords) != 2 || len(seeds.Overrides) != 1 {
		t.Fatalf("unexpected counts: %+v", seeds)
	}
	first := seeds.Keywords[0]
	if first.ConfidenceBoost != keywords.DefaultConfidenceBoost {
		t.Fatalf("default boost = %v", first.ConfidenceBoost)
	}
	if first.Phrase != "deposition" || first.TaskCode != "L330" || first.ActivityCode != "A101" {
		t.Fatalf("rule not normalized: %+v", first)
	}
	if seeds.Keywords[1].ConfidenceBoost != 0.4 {
		t.Fatalf("explicit boost lost: %+v", seeds.Keywords[1])
	}
	if seeds.Overrides[0].Phrase != "acme board call" {
		t.Fatalf("override phrase = %q", seeds.Overrides[0].Phrase)
	}
}

func TestLoadSeedsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.yaml")
	content := "keywords:\n  - phrase: hearing\n    task_code: L450\n    activity_code: A109\n    confidence_boost: 0.75\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seeds: %v", err)
	}
	seeds, err := keywords.LoadSeeds(path)
	if err != nil {
		t.Fatalf("LoadSeeds: %v", err)
	}
	if len(seeds.Keywords) != 1 || seeds.Keywords[0].ConfidenceBoost != 0.75 {
		t.Fatalf("unexpected seeds: %+v", seeds.Keywords)
	}
}

func TestLoadSeedsReportsInvalidRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.json")
	content := `{"keywords":[{"phrase":"ok","task_code":"L110","activity_code":"A101"},{"phrase":"bad","task_code":"L110","activity_code":"A101","confidence_boost":-1}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seeds: %v", err)
	}
	_, err := keywords.LoadSeeds(path)
	if !errors.Is(err, keywords.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestDefaultSeedsBuildSnapshot(t *testing.T) {
	snap, err := keywords.DefaultSeeds().Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Keywords()) == 0 {
		t.Fatal("expected built-in keywords")
	}
	for i, rule := range snap.Keywords() {
		if rule.ID != int64(i+1) {
			t.Fatalf("keyword %d has id %d", i, rule.ID)
		}
	}
}

type memoryBackend struct {
	mu        sync.Mutex
	keywords  []keywords.KeywordRule
	overrides []keywords.OverrideRule
	loads     int
}

func (m *memoryBackend) ListOverrides(context.Context) ([]keywords.OverrideRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	return append([]keywords.OverrideRule(nil), m.overrides...), nil
}

func (m *memoryBackend) ListKeywords(context.Context) ([]keywords.KeywordRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]keywords.KeywordRule(nil), m.keywords...), nil
}

func (m *memoryBackend) UpsertOverride(_ context.Context, rule keywords.OverrideRule) (keywords.OverrideRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = int64(len(m.overrides) + 1)
	m.overrides = append(m.overrides, rule)
	return rule, nil
}

func (m *memoryBackend) UpsertKeyword(_ context.Context, rule keywords.KeywordRule) (keywords.KeywordRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = int64(len(m.keywords) + 1)
	m.keywords = append(m.keywords, rule)
	return rule, nil
}

func (m *memoryBackend) DeleteOverride(context.Context, int64) error { return nil }

func (m *memoryBackend) DeleteKeyword(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.keywords[:0]
	for _, rule := range m.keywords {
		if rule.ID != id {
			kept = append(kept, rule)
		}
	}
	m.keywords = kept
	return nil
}

func TestCachedSourceInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	backend := &memoryBackend{}
	source := keywords.NewCachedSource(backend, nil)

	first, err := source.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if first.Len() != 0 {
		t.Fatalf("expected empty snapshot, got %d rules", first.Len())
	}
	if _, err := source.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if backend.loads != 1 {
		t.Fatalf("expected cached snapshot, backend loaded %d times", backend.loads)
	}

	saved, err := source.UpsertKeyword(ctx, keywords.KeywordRule{Phrase: "Mediation", TaskCode: "L160", ActivityCode: "A109", ConfidenceBoost: 0.8})
	if err != nil {
		t.Fatalf("UpsertKeyword: %v", err)
	}
	if saved.Phrase != "mediation" {
		t.Fatalf("phrase not normalized before write: %q", saved.Phrase)
	}

	second, err := source.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(second.Keywords()) != 1 {
		t.Fatalf("write not visible: %+v", second.Keywords())
	}
	if first.Len() != 0 {
		t.Fatal("earlier snapshot must stay unchanged")
	}

	if err := source.DeleteKeyword(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteKeyword: %v", err)
	}
	third, _ := source.Snapshot(ctx)
	if third.Len() != 0 {
		t.Fatalf("delete not visible: %d rules", third.Len())
	}
}

func TestCachedSourceRejectsInvalidWrite(t *testing.T) {
	source := keywords.NewCachedSource(&memoryBackend{}, nil)
	_, err := source.UpsertOverride(context.Background(), keywords.OverrideRule{Phrase: "x", TaskCode: "L110"})
	if !errors.Is(err, keywords.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}
