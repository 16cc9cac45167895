package compliance

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"billexact/internal/billing"
)

// Check is one operator-defined CEL predicate over a single entry. The
// expression must evaluate to bool; true raises an issue.
type Check struct {
	ID         string   `yaml:"id" json:"id"`
	Expr       string   `yaml:"expr" json:"expr"`
	Message    string   `yaml:"message" json:"message"`
	Suggestion string   `yaml:"suggestion" json:"suggestion"`
	Severity   Severity `yaml:"severity" json:"severity"`
}

// Expression evaluates compiled checks against each entry. Issues are
// reported as "expression:<check id>".
type Expression struct {
	checks []compiledCheck
}

type compiledCheck struct {
	Check
	program cel.Program
}

var programCache sync.Map

func newCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("duration_hours", cel.DoubleType),
		cel.Variable("rate", cel.DoubleType),
		cel.Variable("total", cel.DoubleType),
		cel.Variable("task_code", cel.StringType),
		cel.Variable("activity_code", cel.StringType),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("client_id", cel.StringType),
		cel.Variable("matter_id", cel.StringType),
		cel.Variable("timekeeper_id", cel.StringType),
		cel.Variable("work_date", cel.StringType),
		cel.Variable("source", cel.StringType),
	)
}

// NewExpression compiles every check. Any invalid check fails the whole rule.
func NewExpression(checks []Check) (Expression, error) {
	if len(checks) == 0 {
		return Expression{}, errors.New("no checks configured")
	}
	compiled := make([]compiledCheck, 0, len(checks))
	seen := map[string]struct{}{}
	for i, check := range checks {
		check.ID = strings.TrimSpace(check.ID)
		if check.ID == "" {
			check.ID = fmt.Sprintf("check%d", i+1)
		}
		if _, dup := seen[check.ID]; dup {
			return Expression{}, fmt.Errorf("duplicate check id %q", check.ID)
		}
		seen[check.ID] = struct{}{}
		switch check.Severity {
		case "":
			check.Severity = SeverityWarning
		case SeverityWarning, SeverityError:
		default:
			return Expression{}, fmt.Errorf("check %s: unknown severity %q", check.ID, check.Severity)
		}
		if strings.TrimSpace(check.Message) == "" {
			check.Message = fmt.Sprintf("Entry matched check %s.", check.ID)
		}
		program, err := compileBool(check.Expr)
		if err != nil {
			return Expression{}, fmt.Errorf("check %s: %w", check.ID, err)
		}
		compiled = append(compiled, compiledCheck{Check: check, program: program})
	}
	return Expression{checks: compiled}, nil
}

func compileBool(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := programCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	programCache.Store(expr, program)
	return program, nil
}

func (Expression) ID() string { return RuleExpression }

// Apply evaluates the checks and drops all findings if any evaluation fails.
func (r Expression) Apply(entries []billing.TimeEntry) []Issue {
	issues, err := r.Evaluate(entries)
	if err != nil {
		return nil
	}
	return issues
}

// Evaluate runs every check against every entry in order.
func (r Expression) Evaluate(entries []billing.TimeEntry) ([]Issue, error) {
	var issues []Issue
	for _, e := range entries {
		vars := entryVars(e)
		for _, check := range r.checks {
			out, _, err := check.program.Eval(vars)
			if err != nil {
				return nil, fmt.Errorf("check %s on entry %s: %w", check.ID, e.ID, err)
			}
			hit, ok := out.Value().(bool)
			if !ok || !hit {
				continue
			}
			issues = append(issues, Issue{
				RuleID:     RuleExpression + ":" + check.ID,
				EntryID:    e.ID,
				Severity:   check.Severity,
				Message:    check.Message,
				Suggestion: check.Suggestion,
			})
		}
	}
	return issues, nil
}

func entryVars(e billing.TimeEntry) map[string]any {
	return map[string]any{
		"id":             e.ID,
		"description":    e.Description,
		"duration_hours": e.DurationHours,
		"rate":           e.Rate,
		"total":          e.Total(),
		"task_code":      e.TaskCode,
		"activity_code":  e.ActivityCode,
		"confidence":     e.Confidence,
		"client_id":      e.ClientID,
		"matter_id":      e.MatterID,
		"timekeeper_id":  e.TimekeeperID,
		"work_date":      e.WorkDate.String(),
		"source":         string(e.Source),
	}
}
