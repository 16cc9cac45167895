package ingest

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"billexact/internal/billing"
)

// Filter keeps activities at least minFocus long whose app is not ignored.
// App names compare case-insensitively.
func Filter(activities []Activity, minFocus time.Duration, ignoreApps []string) []Activity {
	ignored := make(map[string]struct{}, len(ignoreApps))
	for _, app := range ignoreApps {
		ignored[strings.ToLower(strings.TrimSpace(app))] = struct{}{}
	}
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if a.Duration() < minFocus {
			continue
		}
		if _, skip := ignored[strings.ToLower(a.App)]; skip {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Merge joins activities on the same app and subject whose gap to the
// previous interval is at most window. The result is sorted by start.
func Merge(activities []Activity, window time.Duration) []Activity {
	sorted := make([]Activity, len(activities))
	copy(sorted, activities)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var merged []Activity
	for _, a := range sorted {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.App == a.App && last.Subject == a.Subject && a.Start.Sub(last.End) <= window {
				if a.End.After(last.End) {
					last.End = a.End
				}
				continue
			}
		}
		merged = append(merged, a)
	}
	return merged
}

// Route is the outcome of matching an activity against the bindings.
type Route struct {
	DoNotBill bool
	MatterID  string
	BindingID int64
}

// Router evaluates bindings in order; the first match decides.
type Router struct {
	bindings []compiledBinding
}

type compiledBinding struct {
	binding billing.Binding
	re      *regexp.Regexp
}

// NewRouter compiles bindings, failing on the first invalid one.
func NewRouter(bindings []billing.Binding) (*Router, error) {
	r := &Router{bindings: make([]compiledBinding, 0, len(bindings))}
	for _, b := range bindings {
		re, err := b.Compile()
		if err != nil {
			return nil, err
		}
		r.bindings = append(r.bindings, compiledBinding{binding: b, re: re})
	}
	return r, nil
}

// Resolve reports how a should be billed. ok is false when no binding matches.
func (r *Router) Resolve(a Activity) (Route, bool) {
	if r == nil {
		return Route{}, false
	}
	text := a.MatchText()
	for _, cb := range r.bindings {
		if !cb.re.MatchString(text) {
			continue
		}
		switch cb.binding.Kind {
		case billing.BindingDoNotBill:
			return Route{DoNotBill: true, BindingID: cb.binding.ID}, true
		case billing.BindingMatter:
			return Route{MatterID: cb.binding.Target, BindingID: cb.binding.ID}, true
		}
	}
	return Route{}, false
}
