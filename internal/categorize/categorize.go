// Package categorize maps free-text activity descriptions to UTBMS task and
// activity codes using the override and keyword tables.
package categorize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"billexact/internal/billing"
	"billexact/internal/keywords"
)

// ErrInvalidInput reports a description that is not text.
var ErrInvalidInput = errors.New("invalid categorization input")

// Result is the outcome of one categorization. The zero Result is the
// uncategorized outcome.
type Result struct {
	TaskCode     string   `json:"task_code"`
	ActivityCode string   `json:"activity_code"`
	Confidence   float64  `json:"confidence"`
	MatchedRule  string   `json:"matched_rule,omitempty"`
	Rationale    []string `json:"rationale,omitempty"`
	Candidates   int      `json:"candidates"`
}

// Categorized reports whether a rule matched.
func (r Result) Categorized() bool { return r.MatchedRule != "" }

// Apply copies the code pair and confidence onto entry.
func (r Result) Apply(entry *billing.TimeEntry) error {
	return entry.SetCodes(r.TaskCode, r.ActivityCode, r.Confidence)
}

// Categorizer scores descriptions against one snapshot.
type Categorizer struct {
	snap *keywords.Snapshot
}

func New(snap *keywords.Snapshot) *Categorizer {
	return &Categorizer{snap: snap}
}

// Categorize picks the first contained override, otherwise the contained
// keyword with the highest boost (longer phrase, then earlier insertion, on
// ties). No match yields the zero Result.
func (c *Categorizer) Categorize(description string) Result {
	text := keywords.Normalize(description)
	if text == "" {
		return Result{}
	}

	var result Result
	matched := false
	c.snap.EachOverride(func(rule keywords.OverrideRule) bool {
		if !strings.Contains(text, rule.Phrase) {
			return true
		}
		result = Result{
			TaskCode:     rule.TaskCode,
			ActivityCode: rule.ActivityCode,
			Confidence:   1.0,
			MatchedRule:  rule.RuleID(),
			Rationale:    []string{fmt.Sprintf("override phrase %q", rule.Phrase)},
		}
		if rule.Notes != "" {
			result.Rationale = append(result.Rationale, "note: "+rule.Notes)
		}
		matched = true
		return false
	})
	if matched {
		return result
	}

	best := -1
	var bestRule keywords.KeywordRule
	candidates := 0
	c.snap.EachKeyword(func(i int, rule keywords.KeywordRule) {
		if !strings.Contains(text, rule.Phrase) {
			return
		}
		candidates++
		if best < 0 || outranks(rule, bestRule) {
			best = i
			bestRule = rule
		}
	})
	if best < 0 {
		return Result{}
	}

	rationale := []string{fmt.Sprintf("keyword phrase %q (boost %.2f)", bestRule.Phrase, bestRule.ConfidenceBoost)}
	if candidates > 1 {
		rationale = append(rationale, fmt.Sprintf("chosen over %d other matching phrase(s)", candidates-1))
	}
	return Result{
		TaskCode:     bestRule.TaskCode,
		ActivityCode: bestRule.ActivityCode,
		Confidence:   bestRule.ConfidenceBoost,
		MatchedRule:  bestRule.RuleID(),
		Rationale:    rationale,
		Candidates:   candidates,
	}
}

// outranks reports whether candidate strictly beats best. Equal rules keep
// the earlier one.
func outranks(candidate, best keywords.KeywordRule) bool {
	if candidate.ConfidenceBoost != best.ConfidenceBoost {
		return candidate.ConfidenceBoost > best.ConfidenceBoost
	}
	return len([]rune(candidate.Phrase)) > len([]rune(best.Phrase))
}

// Service categorizes against the current snapshot of a keyword source.
type Service struct {
	source keywords.Source
}

func NewService(source keywords.Source) *Service {
	return &Service{source: source}
}

// Categorize reads one consistent snapshot and categorizes text against it.
// Errors only reflect snapshot read failures.
func (s *Service) Categorize(ctx context.Context, text string) (Result, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("keyword snapshot: %w", err)
	}
	return New(snap).Categorize(text), nil
}

// Categorizer returns a categorizer bound to the current snapshot, for
// categorizing a batch against one consistent view.
func (s *Service) Categorizer(ctx context.Context) (*Categorizer, error) {
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("keyword snapshot: %w", err)
	}
	return New(snap), nil
}

// DecodeRequest extracts the "text" field of a JSON categorization request.
// A missing or non-string text field is ErrInvalidInput.
func DecodeRequest(data []byte) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	raw, ok := payload["text"]
	if !ok {
		return "", fmt.Errorf("%w: missing text field", ErrInvalidInput)
	}
	var text string
	if string(bytes.TrimSpace(raw)) == "null" {
		return "", fmt.Errorf("%w: text must be a string", ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("%w: text must be a string", ErrInvalidInput)
	}
	return text, nil
}
