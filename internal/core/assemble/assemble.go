// Package assemble turns a retrieval result into the bounded, provenance
// tagged context handed to the generator.
package assemble

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agenthands/graphrag/internal/core/model"
	"github.com/agenthands/graphrag/internal/core/retrieval"
)

// EmptyMarker stands in for the context when no fact is available.
const EmptyMarker = "NO_DATA_FOUND: the knowledge graph returned no facts for this question."

// Fact properties shown inline, in this order.
var shownProps = []string{"direction", "fluid", "effect_size", "p_value", "fold_change", "odds_ratio", "phase", "status"}

type Assembler struct {
	budget  int
	counter Counter
}

func New(budget int, counter Counter) *Assembler {
	if budget < 0 {
		budget = 0
	}
	if counter == nil {
		counter = Chars
	}
	return &Assembler{budget: budget, counter: counter}
}

// Assemble renders one line per distinct fact, in rank order, and stops at
// the first line that would overflow the budget. Lines are never cut.
func (a *Assembler) Assemble(res *model.RetrievalResult) model.Context {
	ctx := model.Context{Budget: a.budget}
	if res.Empty() {
		return emptyContext(ctx)
	}

	var b strings.Builder
	seen := make(map[string]struct{}, len(res.Items))
	for _, it := range res.Items {
		if _, dup := seen[it.Key()]; dup {
			continue
		}
		seen[it.Key()] = struct{}{}

		line := Line(it)
		cost := a.counter.Count(line)
		if ctx.Facts > 0 {
			cost += a.counter.Count("\n")
		}
		if ctx.Used+cost > a.budget {
			ctx.Truncated = true
			break
		}
		if ctx.Facts > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		ctx.Used += cost
		ctx.Facts++
	}

	if ctx.Facts == 0 {
		return emptyContext(ctx)
	}
	ctx.Text = b.String()
	ctx.Truncated = ctx.Truncated || res.Truncated
	return ctx
}

func emptyContext(c model.Context) model.Context {
	c.Text = EmptyMarker
	c.Empty = true
	c.Facts = 0
	c.Used = 0
	return c
}

// Line renders a fact as
// "Subject (Type) RELATION Object (Type) {props} [src: X; conf: Y]".
func Line(it model.Item) string {
	var b strings.Builder
	writeEntity(&b, it.Subject)

	props := it.Properties
	if it.Object != nil {
		b.WriteString(" ")
		b.WriteString(it.Relation)
		b.WriteString(" ")
		writeEntity(&b, *it.Object)
	} else {
		props = it.Subject.Attributes
	}

	if p := renderProps(props); p != "" {
		b.WriteString(" {")
		b.WriteString(p)
		b.WriteString("}")
	}

	b.WriteString(" ")
	b.WriteString(Tag(it.Provenance))
	return b.String()
}

// Tag is the provenance suffix; unknown values render as n/a.
func Tag(p model.Provenance) string {
	src := p.Source
	if src == "" {
		src = "n/a"
	}
	conf := "n/a"
	if p.Confidence != nil {
		conf = strconv.FormatFloat(*p.Confidence, 'f', 2, 64)
	}
	return fmt.Sprintf("[src: %s; conf: %s]", src, conf)
}

func writeEntity(b *strings.Builder, e model.Entity) {
	b.WriteString(e.DisplayName())
	if e.Type != "" && e.Type != model.TypeUnknown {
		b.WriteString(" (")
		b.WriteString(string(e.Type))
		b.WriteString(")")
	}
}

func renderProps(props map[string]interface{}) string {
	var parts []string
	for _, k := range shownProps {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" {
			continue
		}
		if k == "direction" {
			s = retrieval.NormalizeDirection(s)
		}
		parts = append(parts, k+"="+s)
	}
	return strings.Join(parts, ", ")
}
