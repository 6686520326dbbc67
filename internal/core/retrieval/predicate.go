package retrieval

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type Comparison struct {
	Field string
	Op    string
	Value float64
}

// Predicate is a value filter read from the question, e.g. "effect size > 1"
// or "decreased in CSF". All parts must hold for a fact to pass.
type Predicate struct {
	Comparisons []Comparison
	Direction   string
	Fluid       string
}

var (
	comparisonRe = regexp.MustCompile(`(effect[ _]sizes?|p[- _]?values?|fold[ _]changes?|odds[ _]ratios?|\bp\b)\s*(?:of\s+)?(>=|<=|>|<|=|greater than|more than|less than|above|below|over|under|at least|at most)\s*(-?\d+(?:\.\d+)?)`)

	increasedRe = regexp.MustCompile(`\b(increased?|elevated|higher|raised|upregulated)\b`)
	decreasedRe = regexp.MustCompile(`\b(decreased?|reduced|lower|lowered|downregulated)\b`)
	noChangeRe  = regexp.MustCompile(`\b(unchanged|no change|not changed)\b`)
	csfRe       = regexp.MustCompile(`\b(csf|cerebrospinal)\b`)
	bloodRe     = regexp.MustCompile(`\b(plasma|serum|blood)\b`)
)

var opWords = map[string]string{
	"greater than": ">", "more than": ">", "above": ">", "over": ">",
	"less than": "<", "below": "<", "under": "<",
	"at least": ">=", "at most": "<=",
}

func ParsePredicate(text string) Predicate {
	s := strings.ToLower(text)
	var p Predicate

	for _, m := range comparisonRe.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		op := m[2]
		if w, ok := opWords[op]; ok {
			op = w
		}
		p.Comparisons = append(p.Comparisons, Comparison{Field: fieldName(m[1]), Op: op, Value: v})
	}
	rest := comparisonRe.ReplaceAllString(s, " ")

	switch {
	case noChangeRe.MatchString(rest):
		p.Direction = "no_change"
	case increasedRe.MatchString(rest):
		p.Direction = "increased"
	case decreasedRe.MatchString(rest):
		p.Direction = "decreased"
	}

	switch {
	case csfRe.MatchString(rest):
		p.Fluid = FluidCSF
	case bloodRe.MatchString(rest):
		p.Fluid = FluidBlood
	}
	return p
}

func fieldName(raw string) string {
	switch {
	case strings.HasPrefix(raw, "effect"):
		return "effect_size"
	case strings.HasPrefix(raw, "fold"):
		return "fold_change"
	case strings.HasPrefix(raw, "odds"):
		return "odds_ratio"
	default:
		return "p_value"
	}
}

func (p Predicate) Empty() bool {
	return len(p.Comparisons) == 0 && p.Direction == "" && p.Fluid == ""
}

// String is a canonical form, stable across equivalent questions.
func (p Predicate) String() string {
	parts := make([]string, 0, len(p.Comparisons)+2)
	for _, c := range p.Comparisons {
		parts = append(parts, fmt.Sprintf("%s%s%g", c.Field, c.Op, c.Value))
	}
	sort.Strings(parts)
	if p.Direction != "" {
		parts = append(parts, "direction="+p.Direction)
	}
	if p.Fluid != "" {
		parts = append(parts, "fluid="+p.Fluid)
	}
	return strings.Join(parts, ";")
}

// Match evaluates the predicate on a fact. Edge properties take precedence
// over the neighbor's attributes. A missing value fails the predicate.
func (p Predicate) Match(edgeProps, nodeAttrs map[string]interface{}) bool {
	lookup := func(key string) (interface{}, bool) {
		if v, ok := edgeProps[key]; ok && v != nil {
			return v, true
		}
		if v, ok := nodeAttrs[key]; ok && v != nil {
			return v, true
		}
		return nil, false
	}

	for _, c := range p.Comparisons {
		raw, ok := lookup(c.Field)
		if !ok {
			return false
		}
		v, ok := toFloat(raw)
		if !ok || !compare(v, c.Op, c.Value) {
			return false
		}
	}
	if p.Direction != "" {
		raw, ok := lookup("direction")
		if !ok || NormalizeDirection(fmt.Sprint(raw)) != p.Direction {
			return false
		}
	}
	if p.Fluid != "" {
		raw, ok := lookup("fluid")
		if !ok || FluidBucket(fmt.Sprint(raw)) != p.Fluid {
			return false
		}
	}
	return true
}

func compare(v float64, op string, want float64) bool {
	switch op {
	case ">":
		return v > want
	case ">=":
		return v >= want
	case "<":
		return v < want
	case "<=":
		return v <= want
	case "=":
		return v == want
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

const (
	FluidCSF   = "CSF"
	FluidBlood = "Plasma/Serum"
	FluidOther = "Other/unspecified"
)

// NormalizeDirection folds the direction strings found on biomarker edges
// into increased, decreased, no_change or unknown.
func NormalizeDirection(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "" || s == "<nil>":
		return "unknown"
	case strings.Contains(s, "increase") || strings.Contains(s, "higher") || s == "up" || s == "upregulated":
		return "increased"
	case strings.Contains(s, "decrease") || strings.Contains(s, "lower") || s == "down" || s == "downregulated":
		return "decreased"
	case strings.Contains(s, "no") && strings.Contains(s, "change"):
		return "no_change"
	}
	return s
}

func FluidBucket(raw string) string {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "csf") || strings.Contains(s, "cerebrospinal"):
		return FluidCSF
	case strings.Contains(s, "plasma") || strings.Contains(s, "serum") || strings.Contains(s, "blood"):
		return FluidBlood
	}
	return FluidOther
}
