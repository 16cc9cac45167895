package keywords

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultConfidenceBoost applies to keyword rules that omit a boost.
const DefaultConfidenceBoost = 0.8

// ErrInvalidRule classifies rejected keyword or override rules.
var ErrInvalidRule = errors.New("invalid keyword rule")

// KeywordRule maps a phrase to a UTBMS code pair with a confidence weight.
type KeywordRule struct {
	ID              int64   `json:"id"`
	Phrase          string  `json:"phrase"`
	TaskCode        string  `json:"task_code"`
	ActivityCode    string  `json:"activity_code"`
	ConfidenceBoost float64 `json:"confidence_boost"`
}

// OverrideRule is an operator binding that outranks every keyword rule.
type OverrideRule struct {
	ID           int64  `json:"id"`
	Phrase       string `json:"phrase"`
	TaskCode     string `json:"task_code"`
	ActivityCode string `json:"activity_code"`
	Notes        string `json:"notes,omitempty"`
}

// Normalize applies the canonical text form used for phrase matching:
// Unicode NFC, lower case, surrounding whitespace trimmed.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(norm.NFC.String(text)))
}

// Normalize cleans the rule in place and validates it.
func (r *KeywordRule) Normalize() error {
	r.Phrase = Normalize(r.Phrase)
	r.TaskCode = strings.ToUpper(strings.TrimSpace(r.TaskCode))
	r.ActivityCode = strings.ToUpper(strings.TrimSpace(r.ActivityCode))
	if r.Phrase == "" {
		return fmt.Errorf("%w: phrase is required", ErrInvalidRule)
	}
	if err := checkCodes(r.Phrase, r.TaskCode, r.ActivityCode); err != nil {
		return err
	}
	if math.IsNaN(r.ConfidenceBoost) || r.ConfidenceBoost < 0 || r.ConfidenceBoost > 1 {
		return fmt.Errorf("%w: phrase %q: confidence_boost %v outside [0,1]", ErrInvalidRule, r.Phrase, r.ConfidenceBoost)
	}
	return nil
}

// Normalize cleans the override in place and validates it.
func (r *OverrideRule) Normalize() error {
	r.Phrase = Normalize(r.Phrase)
	r.TaskCode = strings.ToUpper(strings.TrimSpace(r.TaskCode))
	r.ActivityCode = strings.ToUpper(strings.TrimSpace(r.ActivityCode))
	r.Notes = strings.TrimSpace(r.Notes)
	if r.Phrase == "" {
		return fmt.Errorf("%w: phrase is required", ErrInvalidRule)
	}
	return checkCodes(r.Phrase, r.TaskCode, r.ActivityCode)
}

func checkCodes(phrase, task, activity string) error {
	if task == "" || activity == "" {
		return fmt.Errorf("%w: phrase %q: task_code and activity_code are both required", ErrInvalidRule, phrase)
	}
	return nil
}

// RuleID renders the matched-rule identifier reported by the categorizer.
func (r KeywordRule) RuleID() string { return fmt.Sprintf("keyword:%d", r.ID) }

func (r OverrideRule) RuleID() string { return fmt.Sprintf("override:%d", r.ID) }
