// Package intent classifies questions and picks a retrieval plan for them.
package intent

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/agenthands/graphrag/internal/core/model"
)

type bucket struct {
	category model.IntentCategory
	keywords []string
}

// Scored in this order; on equal hits the earlier bucket wins.
var buckets = []bucket{
	{model.IntentBiomarker, []string{
		"biomarker", "marker", "csf", "plasma", "serum", "fluid", "cutoff", "cut off",
		"sensitivity", "specificity",
	}},
	{model.IntentDrugTrial, []string{
		"drug", "treat", "treated", "treating", "treatment", "therapy", "therapies",
		"therapeutic", "compound", "trial", "phase", "approved", "approval", "status",
		"dosage", "dose", "company", "companies", "medication", "medicine",
	}},
	{model.IntentPhenotype, []string{
		"symptom", "sign", "clinical feature", "cognitive", "memory", "language",
		"aphasia", "behavior", "behaviour", "behavioral", "behavioural", "phenotype",
		"presentation",
	}},
	{model.IntentPathway, []string{
		"pathway", "go:", "signaling", "signalling", "microglial", "synaptic",
		"amyloid cascade", "mechanism", "neuroinflammation",
	}},
	{model.IntentGeneProtein, []string{
		"gene", "protein", "encode", "encoded", "mutation", "variant", "allele",
		"hgnc", "uniprot",
	}},
}

var (
	idPattern = regexp.MustCompile(`\b(MONDO|CHEBI|HP|GO|HGNC|PR):\d+\b`)

	idCategory = map[string]model.IntentCategory{
		"MONDO": model.IntentGeneralDisease,
		"CHEBI": model.IntentDrugTrial,
		"HP":    model.IntentPhenotype,
		"GO":    model.IntentPathway,
		"HGNC":  model.IntentGeneProtein,
		"PR":    model.IntentGeneProtein,
	}

	quantitative = []*regexp.Regexp{
		regexp.MustCompile(`(>=|<=|>|<|=)\s*-?\d`),
		regexp.MustCompile(`\b(p[- ]?values?|effect sizes?|cut-?offs?|thresholds?|fold changes?|odds ratios?)\b`),
		regexp.MustCompile(`\b(greater|less|more|higher|lower|above|below|at least|at most)\s+(than\s+)?-?\d`),
	}
)

type Router struct{}

func NewRouter() *Router { return &Router{} }

// Classify is a pure function of text. It never fails: questions that match
// no rule become open questions.
func (r *Router) Classify(text string) model.Intent {
	folded := cases.Fold().String(text)
	words := wordsOf(folded)
	padded := " " + strings.Join(words, " ") + " "

	hits := make([]int, len(buckets))
	byCategory := make(map[model.IntentCategory]int, len(buckets))
	best := 0
	for i, b := range buckets {
		hits[i] = countHits(b.keywords, words, padded)
		byCategory[b.category] = hits[i]
		if hits[i] > hits[best] {
			best = i
		}
	}

	focus := uniqueIDs(idPattern.FindAllString(text, -1))

	var category model.IntentCategory
	var notes string
	if hits[best] == 0 {
		category, notes = fallback(folded, focus)
	} else {
		category = buckets[best].category
		notes = fmt.Sprintf("selected %s from keyword hits %s", category, formatHits(hits))
	}

	if hasWord(words, "biomarker") && category != model.IntentBiomarker {
		notes += "; overridden to biomarker by explicit biomarker mention"
		category = model.IntentBiomarker
	}
	if (hasWord(words, "trial") || hasWord(words, "phase")) && category != model.IntentDrugTrial && byCategory[model.IntentDrugTrial] > 0 {
		notes += "; overridden to drug_trial by trial/phase mention"
		category = model.IntentDrugTrial
	}
	if category == model.IntentBiomarker && isQuantitative(folded) {
		notes += "; value predicate present, using attribute filter"
		category = model.IntentBiomarkerValues
	}

	return withPlan(model.Intent{Category: category, Notes: notes, FocusIDs: focus})
}

// Route finalises the plan once linking is done. With nothing linked there
// is no seed to traverse from, so the question falls back to keyword search.
func (r *Router) Route(in model.Intent, mentions []model.LinkedMention) model.Intent {
	if len(mentions) > 0 {
		return withPlan(in)
	}
	out := withPlan(model.Intent{
		Category: model.IntentOpenQuestion,
		FocusIDs: in.FocusIDs,
		Notes:    fmt.Sprintf("%s; no entities linked, falling back to keyword search (classified as %s)", in.Notes, in.Category),
	})
	out.Strategy = model.StrategyKeywordFallback
	return out
}

func withPlan(in model.Intent) model.Intent {
	p := PlanFor(in.Category)
	in.Strategy = p.Strategy
	in.EdgeTypes = p.EdgeTypes
	in.PromptKey = p.PromptKey
	return in
}

func fallback(folded string, focus []string) (model.IntentCategory, string) {
	for _, id := range focus {
		prefix := id[:strings.IndexByte(id, ':')]
		if c, ok := idCategory[prefix]; ok {
			return c, fmt.Sprintf("no domain keywords; %s identifier %s suggests %s", prefix, id, c)
		}
	}
	if strings.Contains(folded, "alzheimer") {
		return model.IntentGeneralDisease, "no domain keywords; treated as a general Alzheimer's question"
	}
	return model.IntentOpenQuestion, "no rule matched; treated as an open question"
}

func wordsOf(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == ':' || r == '\'')
	})
}

// countHits counts distinct keywords present. Single words match a whole
// word or its plural; phrases and prefixed forms like "go:" match at a word
// boundary.
func countHits(keywords, words []string, padded string) int {
	n := 0
	for _, kw := range keywords {
		if strings.ContainsAny(kw, " :") {
			if strings.Contains(padded, " "+kw) {
				n++
			}
			continue
		}
		if hasWord(words, kw) {
			n++
		}
	}
	return n
}

// IsKeyword reports whether a normalized word is one of the routing keywords.
// Such words describe the kind of question, not the subject of it.
func IsKeyword(word string) bool {
	for _, b := range buckets {
		for _, kw := range b.keywords {
			if word == kw || word == kw+"s" || word == kw+"es" {
				return true
			}
		}
	}
	return false
}

func hasWord(words []string, kw string) bool {
	for _, w := range words {
		if w == kw || w == kw+"s" || w == kw+"es" {
			return true
		}
	}
	return false
}

func isQuantitative(folded string) bool {
	for _, re := range quantitative {
		if re.MatchString(folded) {
			return true
		}
	}
	return false
}

func uniqueIDs(found []string) []string {
	if len(found) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, id := range found {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func formatHits(hits []int) string {
	parts := make([]string, len(buckets))
	for i, b := range buckets {
		parts[i] = fmt.Sprintf("%s=%d", b.category, hits[i])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
