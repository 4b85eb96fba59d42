package cypher

import "strings"

// Clause is one statement fragment (MATCH, WITH, CALL, ...).
type Clause interface {
	Render(env *Environment) string
}

// updating marks clauses that write to the graph. A read clause following
// one of these needs a WITH carry-over.
type updating interface {
	updatesGraph()
}

// Item is one projection item: expr or expr AS alias.
type Item struct {
	Expr  Expr
	Alias Expr
}

// As returns an aliased projection item.
func As(expr, alias Expr) Item {
	return Item{Expr: expr, Alias: alias}
}

// Items returns unaliased projection items.
func Items(exprs ...Expr) []Item {
	items := make([]Item, len(exprs))
	for i, e := range exprs {
		items[i] = Item{Expr: e}
	}
	return items
}

func (i Item) render(env *Environment) string {
	expr := i.Expr.Cypher(env)
	if i.Alias == nil {
		return expr
	}
	alias := i.Alias.Cypher(env)
	if alias == expr {
		return expr
	}
	return expr + " AS " + alias
}

// Order is one ORDER BY entry.
type Order struct {
	Expr       Expr
	Descending bool
}

// Asc orders by expr ascending.
func Asc(expr Expr) Order { return Order{Expr: expr} }

// Desc orders by expr descending.
func Desc(expr Expr) Order { return Order{Expr: expr, Descending: true} }

// Match is a MATCH or OPTIONAL MATCH clause with an optional WHERE.
type Match struct {
	patterns []*Pattern
	optional bool
	where    Expr
}

// NewMatch returns MATCH patterns.
func NewMatch(patterns ...*Pattern) *Match {
	return &Match{patterns: patterns}
}

// NewOptionalMatch returns OPTIONAL MATCH patterns.
func NewOptionalMatch(patterns ...*Pattern) *Match {
	return &Match{patterns: patterns, optional: true}
}

// Where ANDs pred into the clause's WHERE. A nil pred is ignored.
func (m *Match) Where(pred Expr) *Match {
	m.where = And(m.where, pred)
	return m
}

// Render renders the clause.
func (m *Match) Render(env *Environment) string {
	var b strings.Builder
	if m.optional {
		b.WriteString("OPTIONAL ")
	}
	b.WriteString("MATCH ")
	parts := make([]string, len(m.patterns))
	for i, p := range m.patterns {
		parts[i] = p.Cypher(env)
	}
	b.WriteString(strings.Join(parts, ", "))
	if m.where != nil {
		b.WriteString("\nWHERE ")
		b.WriteString(m.where.Cypher(env))
	}
	return b.String()
}

type projectionBody struct {
	star     bool
	distinct bool
	items    []Item
	where    Expr
	orderBy  []Order
	skip     Expr
	limit    Expr
}

func (p *projectionBody) render(keyword string, env *Environment) string {
	var b strings.Builder
	b.WriteString(keyword)
	b.WriteByte(' ')
	if p.distinct {
		b.WriteString("DISTINCT ")
	}
	parts := make([]string, 0, len(p.items)+1)
	if p.star || len(p.items) == 0 {
		parts = append(parts, "*")
	}
	for _, item := range p.items {
		parts = append(parts, item.render(env))
	}
	b.WriteString(strings.Join(parts, ", "))
	if p.where != nil {
		b.WriteString("\nWHERE ")
		b.WriteString(p.where.Cypher(env))
	}
	if len(p.orderBy) > 0 {
		orders := make([]string, len(p.orderBy))
		for i, o := range p.orderBy {
			dir := " ASC"
			if o.Descending {
				dir = " DESC"
			}
			orders[i] = o.Expr.Cypher(env) + dir
		}
		b.WriteString("\nORDER BY ")
		b.WriteString(strings.Join(orders, ", "))
	}
	if p.skip != nil {
		b.WriteString("\nSKIP ")
		b.WriteString(p.skip.Cypher(env))
	}
	if p.limit != nil {
		b.WriteString("\nLIMIT ")
		b.WriteString(p.limit.Cypher(env))
	}
	return b.String()
}

// With is a WITH clause.
type With struct {
	body projectionBody
}

// NewWith returns WITH items. With no items it renders WITH *.
func NewWith(items ...Item) *With {
	return &With{body: projectionBody{items: items}}
}

// WithAll returns WITH * followed by any extra items.
func WithAll(items ...Item) *With {
	return &With{body: projectionBody{star: true, items: items}}
}

// Distinct renders WITH DISTINCT.
func (w *With) Distinct() *With { w.body.distinct = true; return w }

// Where ANDs pred into the WHERE following this WITH.
func (w *With) Where(pred Expr) *With { w.body.where = And(w.body.where, pred); return w }

// OrderBy appends sort entries.
func (w *With) OrderBy(orders ...Order) *With {
	w.body.orderBy = append(w.body.orderBy, orders...)
	return w
}

// Skip sets SKIP.
func (w *With) Skip(expr Expr) *With { w.body.skip = expr; return w }

// Limit sets LIMIT.
func (w *With) Limit(expr Expr) *With { w.body.limit = expr; return w }

// Render renders the clause.
func (w *With) Render(env *Environment) string {
	return w.body.render("WITH", env)
}

// Return is a RETURN clause.
type Return struct {
	body projectionBody
}

// NewReturn returns RETURN items.
func NewReturn(items ...Item) *Return {
	return &Return{body: projectionBody{items: items}}
}

// Distinct renders RETURN DISTINCT.
func (r *Return) Distinct() *Return { r.body.distinct = true; return r }

// OrderBy appends sort entries.
func (r *Return) OrderBy(orders ...Order) *Return {
	r.body.orderBy = append(r.body.orderBy, orders...)
	return r
}

// Skip sets SKIP.
func (r *Return) Skip(expr Expr) *Return { r.body.skip = expr; return r }

// Limit sets LIMIT.
func (r *Return) Limit(expr Expr) *Return { r.body.limit = expr; return r }

// Render renders the clause.
func (r *Return) Render(env *Environment) string {
	return r.body.render("RETURN", env)
}

// Unwind is UNWIND expr AS variable.
type Unwind struct {
	Expr Expr
	As   *Variable
}

// Render renders the clause.
func (u *Unwind) Render(env *Environment) string {
	return "UNWIND " + u.Expr.Cypher(env) + " AS " + u.As.Cypher(env)
}

// Call is a CALL { ... } subquery. Imports lists the outer variables the
// body sees; nothing is imported implicitly.
type Call struct {
	body      Clause
	imports   []Expr
	importAll bool
}

// NewCall wraps body in a subquery importing the given variables.
func NewCall(body Clause, imports ...Expr) *Call {
	return &Call{body: body, imports: imports}
}

// NewCallAll wraps body in a subquery importing every outer variable.
func NewCallAll(body Clause) *Call {
	return &Call{body: body, importAll: true}
}

// Render renders the clause.
func (c *Call) Render(env *Environment) string {
	var inner strings.Builder
	switch {
	case c.importAll:
		inner.WriteString("WITH *\n")
	case len(c.imports) > 0:
		inner.WriteString(NewWith(Items(c.imports...)...).Render(env))
		inner.WriteByte('\n')
	}
	inner.WriteString(c.body.Render(env))
	return "CALL {\n" + indent(inner.String()) + "\n}"
}

// Union joins branches with UNION.
type Union struct {
	Branches []Clause
	All      bool
}

// Render renders the clause.
func (u *Union) Render(env *Environment) string {
	sep := "\nUNION\n"
	if u.All {
		sep = "\nUNION ALL\n"
	}
	parts := make([]string, len(u.Branches))
	for i, b := range u.Branches {
		parts[i] = b.Render(env)
	}
	return strings.Join(parts, sep)
}

// Create is a CREATE clause.
type Create struct {
	Patterns []*Pattern
}

func (*Create) updatesGraph() {}

// Render renders the clause.
func (c *Create) Render(env *Environment) string {
	parts := make([]string, len(c.Patterns))
	for i, p := range c.Patterns {
		parts[i] = p.Cypher(env)
	}
	return "CREATE " + strings.Join(parts, ", ")
}

// Merge is a MERGE clause.
type Merge struct {
	Pattern  *Pattern
	OnCreate []SetItem
}

func (*Merge) updatesGraph() {}

// Render renders the clause.
func (m *Merge) Render(env *Environment) string {
	out := "MERGE " + m.Pattern.Cypher(env)
	if len(m.OnCreate) > 0 {
		out += "\nON CREATE SET\n" + indent(renderSetItems(m.OnCreate, ",\n", env))
	}
	return out
}

// SetItem is one SET assignment. Merge renders target += value.
type SetItem struct {
	Target Expr
	Value  Expr
	Merge  bool
}

func renderSetItems(items []SetItem, sep string, env *Environment) string {
	parts := make([]string, len(items))
	for i, item := range items {
		op := " = "
		if item.Merge {
			op = " += "
		}
		parts[i] = item.Target.Cypher(env) + op + item.Value.Cypher(env)
	}
	return strings.Join(parts, sep)
}

// Set is a SET clause.
type Set struct {
	Items []SetItem
}

func (*Set) updatesGraph() {}

// Render renders the clause.
func (s *Set) Render(env *Environment) string {
	if len(s.Items) == 1 {
		return "SET " + renderSetItems(s.Items, "", env)
	}
	return "SET\n" + indent(renderSetItems(s.Items, ",\n", env))
}

// Delete is a DELETE or DETACH DELETE clause.
type Delete struct {
	Exprs  []Expr
	Detach bool
}

func (*Delete) updatesGraph() {}

// Render renders the clause.
func (d *Delete) Render(env *Environment) string {
	parts := make([]string, len(d.Exprs))
	for i, e := range d.Exprs {
		parts[i] = e.Cypher(env)
	}
	keyword := "DELETE "
	if d.Detach {
		keyword = "DETACH DELETE "
	}
	return keyword + strings.Join(parts, ", ")
}

// CallProcedure is a standalone procedure call, e.g. CALL apoc.util.validate(...).
type CallProcedure struct {
	Call *Function
}

// Render renders the clause.
func (c *CallProcedure) Render(env *Environment) string {
	return "CALL " + c.Call.Cypher(env)
}

// RawClause renders a caller-provided fragment. It is used for user-declared
// @cypher statements, which are embedded verbatim.
type RawClause func(env *Environment) string

// Render renders the fragment.
func (r RawClause) Render(env *Environment) string {
	return r(env)
}

// Sequence is an ordered list of clauses rendered one per line.
type Sequence []Clause

// Concat returns the clauses in order, dropping nils and flattening nested
// sequences.
func Concat(clauses ...Clause) Sequence {
	out := make(Sequence, 0, len(clauses))
	for _, c := range clauses {
		switch v := c.(type) {
		case nil:
			continue
		case Sequence:
			out = append(out, v...)
		default:
			if isNilClause(c) {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// Render renders the clauses, inserting WITH * where a read follows a write.
func (s Sequence) Render(env *Environment) string {
	parts := make([]string, 0, len(s))
	var prev Clause
	for _, c := range s {
		if needsCarryOver(prev, c) {
			parts = append(parts, "WITH *")
		}
		rendered := c.Render(env)
		if rendered == "" {
			continue
		}
		parts = append(parts, rendered)
		prev = c
	}
	return strings.Join(parts, "\n")
}

func needsCarryOver(prev, next Clause) bool {
	if prev == nil {
		return false
	}
	if _, ok := prev.(updating); !ok {
		return false
	}
	_, isMatch := next.(*Match)
	return isMatch
}

func isNilClause(c Clause) bool {
	switch v := c.(type) {
	case *Match:
		return v == nil
	case *With:
		return v == nil
	case *Return:
		return v == nil
	case *Call:
		return v == nil
	case *Unwind:
		return v == nil
	}
	return false
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = "    " + line
		}
	}
	return strings.Join(lines, "\n")
}
