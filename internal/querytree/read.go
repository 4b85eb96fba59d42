package querytree

import (
	"neo4j-graphql/internal/cypher"
)

// Read is one selection centred on Target: an optional match, its filters,
// the subqueries feeding the projection, sorting and paging.
//
// Emission order is fixed: imports, Before, MATCH with WHERE, pre-filter
// calls and their WHERE, children, ORDER BY/SKIP/LIMIT, then the output.
type Read struct {
	Target *cypher.Node
	// Pattern is matched when set. A nil pattern reads an already bound Target.
	Pattern  *cypher.Pattern
	Optional bool
	// Imports opens the read with WITH imports. Union branches use it.
	Imports []cypher.Expr
	Before  []cypher.Clause

	Filters []cypher.Expr
	// PreFilter binds values the filters depend on, such as @cypher fields.
	PreFilter []cypher.Clause
	Children  []Node

	Sort  []cypher.Order
	Skip  cypher.Expr
	Limit cypher.Expr

	Projection *Projection
	Output     OutputKind
	// As names the returned column. It defaults to Target.
	As cypher.Expr
}

// NewRead returns a read matching pattern with a map projection of target.
func NewRead(target *cypher.Node, pattern *cypher.Pattern) *Read {
	return &Read{
		Target:     target,
		Pattern:    pattern,
		Projection: NewProjection(target),
	}
}

// AddFilter ANDs pred into the read's WHERE. Nil predicates are ignored.
func (r *Read) AddFilter(pred cypher.Expr) {
	if pred != nil {
		r.Filters = append(r.Filters, pred)
	}
}

// AddChild appends a child subquery.
func (r *Read) AddChild(n Node) {
	r.Children = append(r.Children, n)
}

// Emit renders the read.
func (r *Read) Emit() (cypher.Clause, error) {
	clauses, err := r.emitBody()
	if err != nil {
		return nil, err
	}
	clauses = append(clauses, r.emitOutput()...)
	return cypher.Concat(clauses...), nil
}

func (r *Read) emitBody() ([]cypher.Clause, error) {
	clauses := r.emitMatch()
	children, err := emitAll(r.Children)
	if err != nil {
		return nil, err
	}
	clauses = append(clauses, children...)
	clauses = append(clauses, paging(r.Sort, r.Skip, r.Limit))
	return clauses, nil
}

func (r *Read) emitMatch() []cypher.Clause {
	var clauses []cypher.Clause
	if len(r.Imports) > 0 {
		clauses = append(clauses, cypher.NewWith(cypher.Items(r.Imports...)...))
	}
	clauses = append(clauses, r.Before...)
	where := cypher.And(r.Filters...)
	if r.Pattern != nil {
		var m *cypher.Match
		if r.Optional {
			m = cypher.NewOptionalMatch(r.Pattern)
		} else {
			m = cypher.NewMatch(r.Pattern)
		}
		if len(r.PreFilter) == 0 {
			m.Where(where)
			where = nil
		}
		clauses = append(clauses, m)
	}
	clauses = append(clauses, r.PreFilter...)
	if where != nil {
		clauses = append(clauses, cypher.WithAll().Where(where))
	}
	return clauses
}

func (r *Read) emitOutput() []cypher.Clause {
	as := r.As
	if as == nil {
		as = r.Target
	}
	proj := r.projection()
	if r.Output == OutputRows {
		return []cypher.Clause{output(OutputRows, proj, as)}
	}
	return []cypher.Clause{
		cypher.NewWith(cypher.As(proj, r.Target)),
		output(r.Output, r.Target, as),
	}
}

func (r *Read) projection() cypher.Expr {
	if r.Projection == nil {
		return r.Target
	}
	return r.Projection
}
