// Package query parses and executes dot-path query expressions such as
// "jobs[state=open].site.name" against schema records.
package query

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// SyntaxError reports a malformed query expression.
type SyntaxError struct {
	Query string
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s in query %q", e.Msg, e.Query)
}

// Operator is a filter comparison operator.
type Operator string

// Filter operators.
const (
	OpEq Operator = "="
	OpNe Operator = "!="
	OpLt Operator = "<"
	OpLe Operator = "<="
	OpGt Operator = ">"
	OpGe Operator = ">="
)

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Clause is one filter: Field Op Value. For = and != the value may be a
// comma-separated list (membership) or an inclusive min..max range.
type Clause struct {
	Field   string
	Op      Operator
	Value   string
	List    []string
	Between []string // [min, max] when the value is a range
}

func (c Clause) String() string {
	return c.Field + string(c.Op) + c.Value
}

// Step is one dot-segment of an expression.
type Step struct {
	Field    string
	Args     []string
	Nullable bool
	Filters  []Clause
	Selector string
	// Last marks the final step carrying a field.
	Last bool
}

// String renders the step in canonical form field(args)[f1][f2]{selector}?.
func (s Step) String() string {
	var b strings.Builder
	b.WriteString(s.Field)
	if s.Args != nil {
		b.WriteString("(" + strings.Join(s.Args, ",") + ")")
	}
	for _, c := range s.Filters {
		b.WriteString("[" + c.String() + "]")
	}
	if s.Selector != "" {
		b.WriteString("{" + s.Selector + "}")
	}
	if s.Nullable {
		b.WriteString("?")
	}
	return b.String()
}

// Sequence is a parsed expression. It is shared between callers and must
// not be modified.
type Sequence struct {
	Query string
	Steps []Step
}

// String renders the sequence in canonical form.
func (s *Sequence) String() string {
	parts := make([]string, len(s.Steps))
	for i, st := range s.Steps {
		parts[i] = st.String()
	}
	return strings.Join(parts, ".")
}

// Tail returns the expression made of the steps after the first n.
func (s *Sequence) Tail(n int) string {
	if n >= len(s.Steps) {
		return ""
	}
	parts := make([]string, 0, len(s.Steps)-n)
	for _, st := range s.Steps[n:] {
		parts = append(parts, st.String())
	}
	return strings.Join(parts, ".")
}

var (
	bracesRe   = regexp.MustCompile(`[^()\[\]{}]+`)
	pairsRe    = regexp.MustCompile(`\(\)|\[\]|\{\}`)
	fieldRe    = regexp.MustCompile(`^\w+(?:@\w+)?`)
	argsRe     = regexp.MustCompile(`^\(([\w,.-]+)\)`)
	selectorRe = regexp.MustCompile(`\{(\w+)\}$`)
	filterRe   = regexp.MustCompile(`([!=<>]+)([\w$.,-]+)$`)
)

// Parser turns expressions into sequences. Results are memoised per
// expression string.
type Parser struct {
	selectors *Selectors
	cache     sync.Map // string -> *Sequence
}

// NewParser creates a parser that accepts the selectors of sel. A nil sel
// accepts the built-in selectors only.
func NewParser(sel *Selectors) *Parser {
	if sel == nil {
		sel = NewSelectors(nil)
	}
	return &Parser{selectors: sel}
}

// Selectors returns the selector registry of the parser.
func (p *Parser) Selectors() *Selectors {
	return p.selectors
}

// Parse parses expr, returning a cached sequence when expr was seen before.
func (p *Parser) Parse(expr string) (*Sequence, error) {
	if cached, ok := p.cache.Load(expr); ok {
		return cached.(*Sequence), nil
	}

	seq, err := p.parse(expr)
	if err != nil {
		return nil, err
	}

	actual, _ := p.cache.LoadOrStore(expr, seq)
	return actual.(*Sequence), nil
}

func (p *Parser) parse(expr string) (*Sequence, error) {
	if expr == "" {
		return nil, &SyntaxError{Query: expr, Msg: "empty expression"}
	}

	braces := bracesRe.ReplaceAllString(expr, "")
	for {
		reduced := pairsRe.ReplaceAllString(braces, "")
		if len(reduced) == len(braces) {
			break
		}
		braces = reduced
	}
	if braces != "" {
		return nil, &SyntaxError{Query: expr, Msg: "unbalanced grouping"}
	}

	seq := &Sequence{Query: expr}
	for _, chunk := range split(expr) {
		step, err := p.parseStep(expr, chunk)
		if err != nil {
			return nil, err
		}
		seq.Steps = append(seq.Steps, step)
	}

	for i := len(seq.Steps) - 1; i >= 0; i-- {
		if seq.Steps[i].Field != "" {
			seq.Steps[i].Last = true
			break
		}
	}

	return seq, nil
}

// split cuts expr on dots outside of any grouping.
func split(expr string) []string {
	var chunks []string
	depth, prev := 0, 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '.':
			if depth == 0 {
				chunks = append(chunks, expr[prev:i])
				prev = i + 1
			}
		}
	}
	return append(chunks, expr[prev:])
}

func (p *Parser) parseStep(expr, chunk string) (Step, error) {
	var step Step
	if chunk == "" {
		return step, &SyntaxError{Query: expr, Msg: "empty segment"}
	}

	if m := fieldRe.FindString(chunk); m != "" {
		step.Field = m
		chunk = chunk[len(m):]
	}

	if m := argsRe.FindStringSubmatch(chunk); m != nil {
		step.Args = strings.Split(m[1], ",")
		chunk = chunk[len(m[0]):]
	}

	if strings.HasSuffix(chunk, "?") {
		step.Nullable = true
		chunk = chunk[:len(chunk)-1]
	}

	if m := selectorRe.FindStringSubmatch(chunk); m != nil {
		if !p.selectors.Has(m[1]) {
			return step, &SyntaxError{Query: expr, Msg: fmt.Sprintf("unknown selector %q", m[1])}
		}
		step.Selector = m[1]
		chunk = chunk[:len(chunk)-len(m[0])]
	}

	if chunk == "" {
		return step, nil
	}
	if !strings.HasPrefix(chunk, "[") || !strings.HasSuffix(chunk, "]") {
		return step, &SyntaxError{Query: expr, Msg: fmt.Sprintf("unexpected %q", chunk)}
	}

	for _, f := range strings.Split(chunk[1:len(chunk)-1], "][") {
		c, err := parseClause(expr, f)
		if err != nil {
			return step, err
		}
		step.Filters = append(step.Filters, c)
	}

	return step, nil
}

func parseClause(expr, f string) (Clause, error) {
	loc := filterRe.FindStringSubmatchIndex(f)
	if loc == nil || loc[0] == 0 {
		return Clause{}, &SyntaxError{Query: expr, Msg: fmt.Sprintf("field, operator and value are required in filter %q", f)}
	}

	c := Clause{
		Field: f[:loc[0]],
		Op:    Operator(f[loc[2]:loc[3]]),
		Value: f[loc[4]:loc[5]],
	}
	if !c.Op.valid() {
		return c, &SyntaxError{Query: expr, Msg: fmt.Sprintf("unknown operator %q in filter %q", c.Op, f)}
	}

	if c.Op == OpEq || c.Op == OpNe {
		if between := strings.Split(c.Value, ".."); len(between) == 2 {
			c.Between = between
		} else {
			c.List = strings.Split(c.Value, ",")
		}
	}

	return c, nil
}
