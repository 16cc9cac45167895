package compliance

import "billexact/internal/billing"

// Severity grades an issue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is one finding. An empty EntryID marks a batch-level finding.
type Issue struct {
	RuleID     string   `json:"rule_id"`
	EntryID    string   `json:"entry_id,omitempty"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// BatchLevel reports whether the issue applies to the batch rather than one entry.
func (i Issue) BatchLevel() bool { return i.EntryID == "" }

// Rule inspects a batch and returns its findings in encounter order.
type Rule interface {
	ID() string
	Apply(entries []billing.TimeEntry) []Issue
}

// SkippedEntry is an input entry excluded from rule evaluation.
type SkippedEntry struct {
	Index   int    `json:"index"`
	EntryID string `json:"entry_id,omitempty"`
	Reason  string `json:"reason"`
}

// RuleError records a rule that failed during Apply.
type RuleError struct {
	RuleID string `json:"rule_id"`
	Error  string `json:"error"`
}

// Report is the outcome of one compliance run.
type Report struct {
	Issues         []Issue        `json:"issues"`
	Skipped        []SkippedEntry `json:"skipped,omitempty"`
	RuleErrors     []RuleError    `json:"rule_errors,omitempty"`
	ConfigWarnings []string       `json:"config_warnings,omitempty"`
}

// IssuesFor returns the issues reported by ruleID.
func (r Report) IssuesFor(ruleID string) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.RuleID == ruleID {
			out = append(out, issue)
		}
	}
	return out
}
