package compliance

import (
	"fmt"
	"log/slog"
	"slices"

	"billexact/internal/billing"
	"billexact/internal/logging"
)

// evaluator is implemented by rules that can fail while evaluating.
type evaluator interface {
	Evaluate(entries []billing.TimeEntry) ([]Issue, error)
}

// Engine runs an ordered rule list.
type Engine struct {
	rules    []Rule
	warnings []string
	logger   *slog.Logger
}

// NewEngine resolves cfg's plan into rules. Rules with invalid parameters
// are left out and reported as configuration warnings.
func NewEngine(cfg *Config, logger *slog.Logger) *Engine {
	logger = logging.NewComponentLogger(logger, "compliance")
	e := &Engine{logger: logger, warnings: cfg.Warnings()}
	for _, spec := range cfg.Plan() {
		if !spec.Enabled {
			continue
		}
		rule, err := buildRule(spec)
		if err != nil {
			msg := fmt.Sprintf("rule %s disabled: %v", spec.Kind, err)
			e.warnings = append(e.warnings, msg)
			logging.WarnWithContext(logger, "compliance rule disabled by invalid parameters",
				"compliance_rule_invalid",
				logging.String(logging.FieldRule, spec.Kind),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "correct the rule parameters in the rules file"),
				logging.String(logging.FieldImpact, "rule contributes no issues"),
			)
			continue
		}
		e.rules = append(e.rules, rule)
	}
	return e
}

// NewEngineWithRules runs exactly the given rules.
func NewEngineWithRules(logger *slog.Logger, rules ...Rule) *Engine {
	return &Engine{rules: rules, logger: logging.NewComponentLogger(logger, "compliance")}
}

// RuleIDs lists the active rules in execution order.
func (e *Engine) RuleIDs() []string {
	ids := make([]string, len(e.rules))
	for i, rule := range e.rules {
		ids[i] = rule.ID()
	}
	return ids
}

// Warnings returns configuration and rule-construction warnings.
func (e *Engine) Warnings() []string { return slices.Clone(e.warnings) }

// Run validates entries, then applies every rule to the valid ones. Issues
// are ordered by rule, then by each rule's encounter order.
func (e *Engine) Run(entries []billing.TimeEntry) Report {
	report := Report{
		Issues:         []Issue{},
		ConfigWarnings: slices.Clone(e.warnings),
	}

	valid := make([]billing.TimeEntry, 0, len(entries))
	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			report.Skipped = append(report.Skipped, SkippedEntry{Index: i, EntryID: entry.ID, Reason: err.Error()})
			e.logger.Debug("entry skipped", logging.Int("index", i), logging.String(logging.FieldEntryID, entry.ID), logging.Error(err))
			continue
		}
		valid = append(valid, entry)
	}

	for _, rule := range e.rules {
		issues, err := e.apply(rule, slices.Clone(valid))
		if err != nil {
			report.RuleErrors = append(report.RuleErrors, RuleError{RuleID: rule.ID(), Error: err.Error()})
			logging.ErrorWithContext(e.logger, "compliance rule failed", "compliance_rule_failed",
				logging.String(logging.FieldRule, rule.ID()),
				logging.Error(err),
			)
			continue
		}
		report.Issues = append(report.Issues, issues...)
	}
	return report
}

func (e *Engine) apply(rule Rule, entries []billing.TimeEntry) (issues []Issue, err error) {
	defer func() {
		if r := recover(); r != nil {
			issues = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if ev, ok := rule.(evaluator); ok {
		return ev.Evaluate(entries)
	}
	return rule.Apply(entries), nil
}

// Run checks entries against cfg without logging.
func Run(entries []billing.TimeEntry, cfg *Config) Report {
	return NewEngine(cfg, nil).Run(entries)
}
