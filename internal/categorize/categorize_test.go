package categorize_test

import (
	"context"
	"errors"
	"testing"

	"billexact/internal/billing"
	"billexact/internal/categorize"
	"billexact/internal/keywords"
)

func mustSnapshot(t *testing.T, overrides []keywords.OverrideRule, kws []keywords.KeywordRule) *keywords.Snapshot {
	t.Helper()
	snap, err := keywords.NewSnapshot(overrides, kws)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

func TestOverrideOutranksKeyword(t *testing.T) {
	snap := mustSnapshot(t,
		[]keywords.OverrideRule{{ID: 7, Phrase: "motion", TaskCode: "L240", ActivityCode: "A104"}},
		[]keywords.KeywordRule{{ID: 1, Phrase: "draft motion", TaskCode: "L250", ActivityCode: "A103", ConfidenceBoost: 1.0}},
	)
	got := categorize.New(snap).Categorize("Draft motion to compel")
	if got.TaskCode != "L240" || got.ActivityCode != "A104" {
		t.Fatalf("override should win, got %+v", got)
	}
	if got.Confidence != 1.0 || got.MatchedRule != "override:7" {
		t.Fatalf("unexpected override result %+v", got)
	}
}

func TestFirstOverrideWins(t *testing.T) {
	snap := mustSnapshot(t, []keywords.OverrideRule{
		{ID: 1, Phrase: "acme", TaskCode: "L110", ActivityCode: "A101"},
		{ID: 2, Phrase: "acme board", TaskCode: "L120", ActivityCode: "A106"},
	}, nil)
	got := categorize.New(snap).Categorize("acme board call")
	if got.MatchedRule != "override:1" {
		t.Fatalf("expected first declared override, got %+v", got)
	}
}

func TestKeywordSelection(t *testing.T) {
	tests := []struct {
		name string
		kws  []keywords.KeywordRule
		text string
		want string
	}{
		{
			name: "highest boost",
			kws: []keywords.KeywordRule{
				{ID: 1, Phrase: "motion", TaskCode: "L250", ActivityCode: "A103", ConfidenceBoost: 0.6},
				{ID: 2, Phrase: "hearing", TaskCode: "L450", ActivityCode: "A109", ConfidenceBoost: 0.9},
			},
			text: "motion hearing prep",
			want: "keyword:2",
		},
		{
			name: "longer phrase on tie",
			kws: []keywords.KeywordRule{
				{ID: 1, Phrase: "motion", TaskCode: "L250", ActivityCode: "A103", ConfidenceBoost: 0.8},
				{ID: 2, Phrase: "draft motion", TaskCode: "L250", ActivityCode: "A103", ConfidenceBoost: 0.8},
			},
			text: "Draft motion to dismiss",
			want: "keyword:2",
		},
		{
			name: "insertion order on full tie",
			kws: []keywords.KeywordRule{
				{ID: 5, Phrase: "brief", TaskCode: "L250", ActivityCode: "A103", ConfidenceBoost: 0.7},
				{ID: 3, Phrase: "email", TaskCode: "L120", ActivityCode: "A106", ConfidenceBoost: 0.7},
			},
			text: "email re brief",
			want: "keyword:5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := categorize.New(mustSnapshot(t, nil, tt.kws)).Categorize(tt.text)
			if got.MatchedRule != tt.want {
				t.Fatalf("MatchedRule = %q, want %q", got.MatchedRule, tt.want)
			}
			if got.Candidates != 2 {
				t.Fatalf("Candidates = %d, want 2", got.Candidates)
			}
			if len(got.Rationale) == 0 {
				t.Fatal("expected rationale")
			}
		})
	}
}

func TestNoMatchIsUncategorized(t *testing.T) {
	snap := mustSnapshot(t, nil, []keywords.KeywordRule{{ID: 1, Phrase: "deposition", TaskCode: "L330", ActivityCode: "A101", ConfidenceBoost: 0.8}})
	c := categorize.New(snap)
	for _, text := range []string{"", "   ", "lunch", "\x00\xff odd bytes"} {
		got := c.Categorize(text)
		if got.Categorized() || got.TaskCode != "" || got.ActivityCode != "" || got.Confidence != 0 {
			t.Fatalf("Categorize(%q) = %+v, want uncategorized", text, got)
		}
	}
}

func TestCategorizeIsDeterministic(t *testing.T) {
	snap, err := keywords.DefaultSeeds().Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	c := categorize.New(snap)
	text := "Draft motion for hearing after legal research on Westlaw"
	first := c.Categorize(text)
	for range 10 {
		again := c.Categorize(text)
		if again.MatchedRule != first.MatchedRule || again.Confidence != first.Confidence || again.TaskCode != first.TaskCode {
			t.Fatalf("non-deterministic result %+v vs %+v", again, first)
		}
	}
}

func TestServiceAndApply(t *testing.T) {
	snap := mustSnapshot(t, nil, []keywords.KeywordRule{{ID: 1, Phrase: "mediation", TaskCode: "L160", ActivityCode: "A109", ConfidenceBoost: 0.8}})
	svc := categorize.NewService(keywords.Static(snap))

	res, err := svc.Categorize(context.Background(), "Attend mediation session")
	if err != nil {
		t.Fatalf("Categorize: %v", err)
	}
	entry := billing.TimeEntry{ID: "e1"}
	if err := res.Apply(&entry); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if entry.TaskCode != "L160" || entry.ActivityCode != "A109" || entry.Confidence != 0.8 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestDecodeRequest(t *testing.T) {
	text, err := categorize.DecodeRequest([]byte(`{"text":"Review lease"}`))
	if err != nil || text != "Review lease" {
		t.Fatalf("DecodeRequest = %q, %v", text, err)
	}
	for _, payload := range []string{`{"text":42}`, `{"text":null}`, `{"other":"x"}`, `not json`} {
		if _, err := categorize.DecodeRequest([]byte(payload)); !errors.Is(err, categorize.ErrInvalidInput) {
			t.Fatalf("DecodeRequest(%s) error = %v, want ErrInvalidInput", payload, err)
		}
	}
}
