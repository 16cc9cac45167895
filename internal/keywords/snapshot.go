package keywords

// Snapshot is an immutable, ordered view of the rule tables. Overrides and
// keywords keep insertion order; that order is the categorizer's final
// tie-break.
type Snapshot struct {
	overrides []OverrideRule
	keywords  []KeywordRule
}

// NewSnapshot normalizes and validates the rules. A phrase that repeats
// (case-insensitively) replaces the earlier rule at the earlier position.
func NewSnapshot(overrides []OverrideRule, keywords []KeywordRule) (*Snapshot, error) {
	snap := &Snapshot{}
	overrideIndex := make(map[string]int, len(overrides))
	for _, rule := range overrides {
		if err := rule.Normalize(); err != nil {
			return nil, err
		}
		if idx, ok := overrideIndex[rule.Phrase]; ok {
			snap.overrides[idx] = rule
			continue
		}
		overrideIndex[rule.Phrase] = len(snap.overrides)
		snap.overrides = append(snap.overrides, rule)
	}
	keywordIndex := make(map[string]int, len(keywords))
	for _, rule := range keywords {
		if err := rule.Normalize(); err != nil {
			return nil, err
		}
		if idx, ok := keywordIndex[rule.Phrase]; ok {
			snap.keywords[idx] = rule
			continue
		}
		keywordIndex[rule.Phrase] = len(snap.keywords)
		snap.keywords = append(snap.keywords, rule)
	}
	return snap, nil
}

// Overrides returns the override rules in insertion order.
func (s *Snapshot) Overrides() []OverrideRule {
	if s == nil {
		return nil
	}
	return append([]OverrideRule(nil), s.overrides...)
}

// Keywords returns the keyword rules in insertion order.
func (s *Snapshot) Keywords() []KeywordRule {
	if s == nil {
		return nil
	}
	return append([]KeywordRule(nil), s.keywords...)
}

// EachOverride visits overrides in order until fn returns false.
func (s *Snapshot) EachOverride(fn func(OverrideRule) bool) {
	if s == nil {
		return
	}
	for _, rule := range s.overrides {
		if !fn(rule) {
			return
		}
	}
}

// EachKeyword visits keywords in order with their position.
func (s *Snapshot) EachKeyword(fn func(int, KeywordRule)) {
	if s == nil {
		return
	}
	for i, rule := range s.keywords {
		fn(i, rule)
	}
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.overrides) + len(s.keywords)
}
