package compliance

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"billexact/internal/billing"
)

// Built-in rule identifiers.
const (
	RuleDescriptionLength = "description_length"
	RuleVaguePhrase       = "vague_phrase"
	RuleBlockBilling      = "block_billing"
	RuleDailyHoursCap     = "daily_hours_cap"
	RuleTravelTime        = "travel_time"
	RuleMaxEntryDuration  = "max_entry_duration"
	RuleForbiddenPhrase   = "forbidden_phrase"
	RuleExpression        = "expression"
)

const (
	defaultMinChars      = 20
	defaultDailyMaxHours = 12.0
	defaultTravelNote    = "Many carriers pay 50% for travel time."
)

var (
	defaultVaguePhrases = []string{
		"work on", "misc", "general", "review docs", "review documents",
		"admin", "administrative", "follow up", "follow-up",
	}
	defaultTravelKeywords = []string{"travel", "drive", "commute", "flight", "uber", "lyft", "cab", "taxi"}
	defaultForbidden      = []string{`\bvarious tasks\b`, `\betc\.`, `\badmin(istrative)?\b`}

	blockSeparators = []string{";", " & ", " and ", ", "}
	taskVerbs       = []string{
		"draft", "revise", "review", "research", "analyze", "email", "call",
		"meet", "prepare", "edit", "summarize", "outline", "negotiate",
	}
	taskVerbPatterns = compileVerbs(taskVerbs)
)

func compileVerbs(verbs []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(verbs))
	for i, verb := range verbs {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(verb) + `(ing)?\b`)
	}
	return out
}

// DescriptionLength flags entries whose trimmed description is shorter than MinChars.
type DescriptionLength struct {
	MinChars int
}

func (DescriptionLength) ID() string { return RuleDescriptionLength }

func (r DescriptionLength) Apply(entries []billing.TimeEntry) []Issue {
	var issues []Issue
	for _, e := range entries {
		n := utf8.RuneCountInString(strings.TrimSpace(e.Description))
		if n >= r.MinChars {
			continue
		}
		issues = append(issues, Issue{
			RuleID:     RuleDescriptionLength,
			EntryID:    e.ID,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Description too short (%d chars).", n),
			Suggestion: fmt.Sprintf("Add specifics (who/what/why); ≥%d chars.", r.MinChars),
		})
	}
	return issues
}

// VaguePhrase flags short descriptions (under six words) containing a vague phrase.
type VaguePhrase struct {
	Phrases []string
}

func (VaguePhrase) ID() string { return RuleVaguePhrase }

func (r VaguePhrase) Apply(entries []billing.TimeEntry) []Issue {
	var issues []Issue
	for _, e := range entries {
		desc := strings.ToLower(strings.TrimSpace(e.Description))
		if len(strings.Fields(desc)) >= 6 {
			continue
		}
		for _, phrase := range r.Phrases {
			if !strings.Contains(desc, phrase) {
				continue
			}
			issues = append(issues, Issue{
				RuleID:     RuleVaguePhrase,
				EntryID:    e.ID,
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("Vague phrase %q without specifics.", phrase),
				Suggestion: "Specify document names, parties, dates, or purpose.",
			})
			break
		}
	}
	return issues
}

// BlockBilling flags entries that look like several tasks billed together.
type BlockBilling struct{}

func (BlockBilling) ID() string { return RuleBlockBilling }

func (BlockBilling) Apply(entries []billing.TimeEntry) []Issue {
	var issues []Issue
	for _, e := range entries {
		if !looksBlockBilled(strings.ToLower(e.Description)) {
			continue
		}
		issues = append(issues, Issue{
			RuleID:     RuleBlockBilling,
			EntryID:    e.ID,
			Severity:   SeverityWarning,
			Message:    "Possible block billing (multiple tasks).",
			Suggestion: "Split into discrete entries per task.",
		})
	}
	return issues
}

func looksBlockBilled(desc string) bool {
	separators := 0
	for _, sep := range blockSeparators {
		if strings.Contains(desc, sep) {
			separators++
		}
	}
	if separators >= 2 {
		return true
	}
	verbs := 0
	for _, re := range taskVerbPatterns {
		if re.MatchString(desc) {
			verbs++
			if verbs >= 2 {
				return true
			}
		}
	}
	return false
}

// DailyHoursCap emits one batch-level issue per work date whose total
// exceeds MaxHours. Undated entries are ignored.
type DailyHoursCap struct {
	MaxHours float64
}

func (DailyHoursCap) ID() string { return RuleDailyHoursCap }

func (r DailyHoursCap) Apply(entries []billing.TimeEntry) []Issue {
	totals := make(map[billing.Date]decimal.Decimal)
	for _, e := range entries {
		if e.WorkDate.IsZero() {
			continue
		}
		totals[e.WorkDate] = totals[e.WorkDate].Add(decimal.NewFromFloat(e.DurationHours))
	}
	limit := decimal.NewFromFloat(r.MaxHours)
	dates := make([]billing.Date, 0, len(totals))
	for d := range totals {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b billing.Date) int { return a.Time().Compare(b.Time()) })

	var issues []Issue
	for _, d := range dates {
		total := totals[d]
		if total.LessThanOrEqual(limit) {
			continue
		}
		issues = append(issues, Issue{
			RuleID:     RuleDailyHoursCap,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Total billed %sh on %s > %.1fh cap.", total.StringFixed(2), d, r.MaxHours),
			Suggestion: "Add justification or reallocate if appropriate.",
		})
	}
	return issues
}

// TravelTime flags entries mentioning travel. Advisory only.
type TravelTime struct {
	Keywords []string
	Note     string
}

func (TravelTime) ID() string { return RuleTravelTime }

func (r TravelTime) Apply(entries []billing.TimeEntry) []Issue {
	note := r.Note
	if note == "" {
		note = defaultTravelNote
	}
	var issues []Issue
	for _, e := range entries {
		desc := strings.ToLower(e.Description)
		if !slices.ContainsFunc(r.Keywords, func(k string) bool { return strings.Contains(desc, k) }) {
			continue
		}
		issues = append(issues, Issue{
			RuleID:     RuleTravelTime,
			EntryID:    e.ID,
			Severity:   SeverityWarning,
			Message:    "Travel time detected.",
			Suggestion: note + " Consider separate entry and reduced rate if required.",
		})
	}
	return issues
}

// MaxEntryDuration flags single entries longer than MaxHours. A zero
// MaxHours makes the rule inert.
type MaxEntryDuration struct {
	MaxHours float64
}

func (MaxEntryDuration) ID() string { return RuleMaxEntryDuration }

func (r MaxEntryDuration) Apply(entries []billing.TimeEntry) []Issue {
	if r.MaxHours <= 0 {
		return nil
	}
	var issues []Issue
	for _, e := range entries {
		if e.DurationHours <= r.MaxHours {
			continue
		}
		issues = append(issues, Issue{
			RuleID:     RuleMaxEntryDuration,
			EntryID:    e.ID,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Entry %.2fh > %.2fh guideline.", e.DurationHours, r.MaxHours),
			Suggestion: "Split into smaller tasks.",
		})
	}
	return issues
}

// ForbiddenPhrase flags narratives matching terms reviewers reject outright.
type ForbiddenPhrase struct {
	Patterns []*regexp.Regexp
}

// NewForbiddenPhrase compiles case-insensitive patterns.
func NewForbiddenPhrase(patterns []string) (ForbiddenPhrase, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return ForbiddenPhrase{}, fmt.Errorf("pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return ForbiddenPhrase{Patterns: compiled}, nil
}

func (ForbiddenPhrase) ID() string { return RuleForbiddenPhrase }

func (r ForbiddenPhrase) Apply(entries []billing.TimeEntry) []Issue {
	var issues []Issue
	for _, e := range entries {
		for _, re := range r.Patterns {
			match := re.FindString(e.Description)
			if match == "" {
				continue
			}
			issues = append(issues, Issue{
				RuleID:     RuleForbiddenPhrase,
				EntryID:    e.ID,
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("Forbidden term %q in narrative.", match),
				Suggestion: "Avoid vague terms like 'various tasks' or 'etc.'; name the task.",
			})
			break
		}
	}
	return issues
}
