package cypher

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Expr is any Cypher expression. Rendering is purely structural: an
// expression renders its children and never consults anything but the
// Environment for names.
type Expr interface {
	Cypher(env *Environment) string
}

// Literal is an inline constant value.
type Literal struct {
	Value any
}

// Lit returns a literal expression.
func Lit(value any) Literal {
	return Literal{Value: value}
}

// Null is the Cypher NULL literal.
var Null = Literal{}

// Cypher renders the literal.
func (l Literal) Cypher(env *Environment) string {
	return renderLiteral(l.Value)
}

func renderLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return QuoteString(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = QuoteString(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = renderLiteral(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, len(keys))
		for i, k := range keys {
			items[i] = escapeName(k) + ": " + renderLiteral(v[k])
		}
		return "{ " + strings.Join(items, ", ") + " }"
	default:
		return QuoteString(fmt.Sprint(v))
	}
}

// PropertyRef is a property access such as this.title or $jwt.roles.
type PropertyRef struct {
	of   Expr
	path []string
}

// Prop returns a property access on of.
func Prop(of Expr, path ...string) *PropertyRef {
	return &PropertyRef{of: of, path: path}
}

// Cypher renders the property access.
func (p *PropertyRef) Cypher(env *Environment) string {
	var b strings.Builder
	b.WriteString(p.of.Cypher(env))
	for _, segment := range p.path {
		b.WriteByte('.')
		b.WriteString(escapeName(segment))
	}
	return b.String()
}

// Function is a function or procedure-style call expression.
type Function struct {
	name     string
	distinct bool
	args     []Expr
}

// Fn returns a call of the named function.
func Fn(name string, args ...Expr) *Function {
	return &Function{name: name, args: args}
}

// Cypher renders the call.
func (f *Function) Cypher(env *Environment) string {
	args := make([]string, len(f.args))
	for i, arg := range f.args {
		args[i] = arg.Cypher(env)
	}
	inner := strings.Join(args, ", ")
	if f.distinct {
		inner = "DISTINCT " + inner
	}
	return f.name + "(" + inner + ")"
}

// Collect returns collect(expr).
func Collect(expr Expr) *Function { return Fn("collect", expr) }

// CollectDistinct returns collect(DISTINCT expr).
func CollectDistinct(expr Expr) *Function {
	return &Function{name: "collect", distinct: true, args: []Expr{expr}}
}

// Count returns count(expr).
func Count(expr Expr) *Function { return Fn("count", expr) }

// CountAll returns count(*).
func CountAll() Expr { return Raw("count(*)") }

// Head returns head(expr).
func Head(expr Expr) *Function { return Fn("head", expr) }

// Last returns last(expr).
func Last(expr Expr) *Function { return Fn("last", expr) }

// Size returns size(expr).
func Size(expr Expr) *Function { return Fn("size", expr) }

// Coalesce returns coalesce(exprs...).
func Coalesce(exprs ...Expr) *Function { return Fn("coalesce", exprs...) }

// Min returns min(expr).
func Min(expr Expr) *Function { return Fn("min", expr) }

// Max returns max(expr).
func Max(expr Expr) *Function { return Fn("max", expr) }

// Avg returns avg(expr).
func Avg(expr Expr) *Function { return Fn("avg", expr) }

// Sum returns sum(expr).
func Sum(expr Expr) *Function { return Fn("sum", expr) }

// ElementID returns elementId(expr).
func ElementID(expr Expr) *Function { return Fn("elementId", expr) }

// Timestamp returns timestamp().
func Timestamp() *Function { return Fn("timestamp") }

// RandomUUID returns randomUUID().
func RandomUUID() *Function { return Fn("randomUUID") }

// Raw is a verbatim fragment. It is only used for fixed keywords and
// operator-free constructs; user input must never reach it.
type Raw string

// Cypher renders the fragment as-is.
func (r Raw) Cypher(env *Environment) string {
	return string(r)
}

// RawFunc renders a fragment with access to the Environment.
type RawFunc func(env *Environment) string

// Cypher renders the fragment.
func (f RawFunc) Cypher(env *Environment) string {
	return f(env)
}

type mapEntry struct {
	key  string
	expr Expr
}

// Map is a map literal with ordered keys.
type Map struct {
	entries []mapEntry
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{}
}

// Set adds or replaces key.
func (m *Map) Set(key string, expr Expr) *Map {
	for i := range m.entries {
		if m.entries[i].key == key {
			m.entries[i].expr = expr
			return m
		}
	}
	m.entries = append(m.entries, mapEntry{key: key, expr: expr})
	return m
}

// Len returns the number of keys.
func (m *Map) Len() int {
	return len(m.entries)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}
	return keys
}

// Cypher renders the map literal.
func (m *Map) Cypher(env *Environment) string {
	if len(m.entries) == 0 {
		return "{}"
	}
	items := make([]string, len(m.entries))
	for i, e := range m.entries {
		items[i] = escapeName(e.key) + ": " + e.expr.Cypher(env)
	}
	return "{ " + strings.Join(items, ", ") + " }"
}

// MapProjection renders var { .prop, key: expr }.
type MapProjection struct {
	of      Expr
	entries []projectionEntry
}

type projectionEntry struct {
	key      string
	property string
	expr     Expr
	all      bool
}

// NewMapProjection returns an empty projection of of.
func NewMapProjection(of Expr) *MapProjection {
	return &MapProjection{of: of}
}

// Property projects a property under key. When key equals property the
// shorthand ".prop" form is used.
func (p *MapProjection) Property(key, property string) *MapProjection {
	p.entries = append(p.entries, projectionEntry{key: key, property: property})
	return p
}

// Field projects expr under key.
func (p *MapProjection) Field(key string, expr Expr) *MapProjection {
	p.entries = append(p.entries, projectionEntry{key: key, expr: expr})
	return p
}

// All projects every property (".*").
func (p *MapProjection) All() *MapProjection {
	p.entries = append(p.entries, projectionEntry{all: true})
	return p
}

// Cypher renders the projection.
func (p *MapProjection) Cypher(env *Environment) string {
	of := p.of.Cypher(env)
	if len(p.entries) == 0 {
		return of + " { }"
	}
	items := make([]string, len(p.entries))
	for i, e := range p.entries {
		switch {
		case e.all:
			items[i] = ".*"
		case e.expr != nil:
			items[i] = escapeName(e.key) + ": " + e.expr.Cypher(env)
		case e.key == e.property:
			items[i] = "." + escapeName(e.property)
		default:
			items[i] = escapeName(e.key) + ": " + of + "." + escapeName(e.property)
		}
	}
	return of + " { " + strings.Join(items, ", ") + " }"
}

// ListExpr is a list literal of expressions.
type ListExpr []Expr

// List returns a list expression.
func List(items ...Expr) ListExpr {
	return ListExpr(items)
}

// Cypher renders the list.
func (l ListExpr) Cypher(env *Environment) string {
	items := make([]string, len(l))
	for i, item := range l {
		items[i] = item.Cypher(env)
	}
	return "[" + strings.Join(items, ", ") + "]"
}

// ListComprehension renders [x IN list WHERE pred | mapping].
type ListComprehension struct {
	Variable *Variable
	In       Expr
	Where    Expr
	Map      Expr
}

// Cypher renders the comprehension.
func (c *ListComprehension) Cypher(env *Environment) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(c.Variable.Cypher(env))
	b.WriteString(" IN ")
	b.WriteString(c.In.Cypher(env))
	if c.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(c.Where.Cypher(env))
	}
	if c.Map != nil {
		b.WriteString(" | ")
		b.WriteString(c.Map.Cypher(env))
	}
	b.WriteByte(']')
	return b.String()
}

// PatternComprehension renders [pattern WHERE pred | mapping].
type PatternComprehension struct {
	Pattern *Pattern
	Where   Expr
	Map     Expr
}

// Cypher renders the comprehension.
func (c *PatternComprehension) Cypher(env *Environment) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(c.Pattern.Cypher(env))
	if c.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(c.Where.Cypher(env))
	}
	b.WriteString(" | ")
	b.WriteString(c.Map.Cypher(env))
	b.WriteByte(']')
	return b.String()
}

// Reduce renders reduce(acc = init, x IN list | expr).
type Reduce struct {
	Accumulator *Variable
	Init        Expr
	Variable    *Variable
	In          Expr
	Expr        Expr
}

// Cypher renders the reduction.
func (r *Reduce) Cypher(env *Environment) string {
	return fmt.Sprintf("reduce(%s = %s, %s IN %s | %s)",
		r.Accumulator.Cypher(env), r.Init.Cypher(env),
		r.Variable.Cypher(env), r.In.Cypher(env), r.Expr.Cypher(env))
}

// Index renders list[index].
type Index struct {
	Of    Expr
	Index Expr
}

// Cypher renders the index access.
func (i Index) Cypher(env *Environment) string {
	return i.Of.Cypher(env) + "[" + i.Index.Cypher(env) + "]"
}

// Plus renders left + right.
func Plus(left, right Expr) Expr {
	return &binary{left: left, op: "+", right: right}
}

// Minus renders left - right.
func Minus(left, right Expr) Expr {
	return &binary{left: left, op: "-", right: right}
}

// Multiply renders left * right.
func Multiply(left, right Expr) Expr {
	return &binary{left: left, op: "*", right: right}
}

// Divide renders left / right.
func Divide(left, right Expr) Expr {
	return &binary{left: left, op: "/", right: right}
}

// Slice renders list[from..to]; a nil bound is left open.
type Slice struct {
	Of   Expr
	From Expr
	To   Expr
}

// Cypher renders the slice.
func (s Slice) Cypher(env *Environment) string {
	from, to := "", ""
	if s.From != nil {
		from = s.From.Cypher(env)
	}
	if s.To != nil {
		to = s.To.Cypher(env)
	}
	return s.Of.Cypher(env) + "[" + from + ".." + to + "]"
}

// CaseBranch is one WHEN ... THEN ... arm of a Case.
type CaseBranch struct {
	When Expr
	Then Expr
}

// Case renders a generic CASE expression. A nil Else is left out.
type Case struct {
	Branches []CaseBranch
	Else     Expr
}

// Cypher renders the expression.
func (c *Case) Cypher(env *Environment) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, br := range c.Branches {
		b.WriteString(" WHEN ")
		b.WriteString(br.When.Cypher(env))
		b.WriteString(" THEN ")
		b.WriteString(br.Then.Cypher(env))
	}
	if c.Else != nil {
		b.WriteString(" ELSE ")
		b.WriteString(c.Else.Cypher(env))
	}
	b.WriteString(" END")
	return b.String()
}
