package compliance

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// buildRule turns one enabled spec into a rule. Errors describe invalid
// parameters; the caller treats the rule as inert.
func buildRule(spec RuleSpec) (Rule, error) {
	p := params(spec.Params)
	switch spec.Kind {
	case RuleDescriptionLength:
		n, err := p.intParam("min_chars", defaultMinChars)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("min_chars must not be negative, got %d", n)
		}
		return DescriptionLength{MinChars: n}, nil
	case RuleVaguePhrase:
		phrases, err := p.listParam("phrases", defaultVaguePhrases)
		if err != nil {
			return nil, err
		}
		return VaguePhrase{Phrases: lowerAll(phrases)}, nil
	case RuleBlockBilling:
		return BlockBilling{}, nil
	case RuleDailyHoursCap:
		limit, err := p.floatParam("max_hours", defaultDailyMaxHours)
		if err != nil {
			return nil, err
		}
		if limit <= 0 {
			return nil, fmt.Errorf("max_hours must be positive, got %v", limit)
		}
		return DailyHoursCap{MaxHours: limit}, nil
	case RuleTravelTime:
		kws, err := p.listParam("keywords", defaultTravelKeywords)
		if err != nil {
			return nil, err
		}
		note, err := p.stringParam("note", defaultTravelNote)
		if err != nil {
			return nil, err
		}
		return TravelTime{Keywords: lowerAll(kws), Note: note}, nil
	case RuleMaxEntryDuration:
		if raw, ok := spec.Params["max_hours"]; !ok || raw == nil {
			return MaxEntryDuration{}, nil
		}
		limit, err := p.floatParam("max_hours", 0)
		if err != nil {
			return nil, err
		}
		if limit <= 0 {
			return nil, fmt.Errorf("max_hours must be positive, got %v", limit)
		}
		return MaxEntryDuration{MaxHours: limit}, nil
	case RuleForbiddenPhrase:
		patterns, err := p.listParam("patterns", defaultForbidden)
		if err != nil {
			return nil, err
		}
		return NewForbiddenPhrase(patterns)
	case RuleExpression:
		raw, ok := spec.Params["checks"]
		if !ok {
			return nil, fmt.Errorf("checks are required")
		}
		var checks []Check
		if err := remarshal(raw, &checks); err != nil {
			return nil, fmt.Errorf("checks: %w", err)
		}
		return NewExpression(checks)
	default:
		return nil, fmt.Errorf("unknown rule %q", spec.Kind)
	}
}

type params map[string]any

func (p params) floatParam(key string, fallback float64) (float64, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	var v float64
	switch n := raw.(type) {
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint64:
		v = float64(n)
	case float64:
		v = n
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be finite", key)
	}
	return v, nil
}

func (p params) intParam(key string, fallback int) (int, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch n := raw.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%s must be a whole number, got %v", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, raw)
	}
}

func (p params) stringParam(key, fallback string) (string, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	s, isString := raw.(string)
	if !isString {
		return "", fmt.Errorf("%s must be a string, got %T", key, raw)
	}
	return s, nil
}

// listParam returns a list parameter. An empty list selects the fallback.
func (p params) listParam(key string, fallback []string) ([]string, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	items, isList := raw.([]any)
	if !isList {
		return nil, fmt.Errorf("%s must be a list, got %T", key, raw)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, isString := item.(string)
		if !isString {
			return nil, fmt.Errorf("%s[%d] must be a string, got %T", key, i, item)
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return fallback, nil
	}
	return out, nil
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func remarshal(in any, out any) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
