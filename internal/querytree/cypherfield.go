package querytree

import (
	"neo4j-graphql/internal/cypher"
)

// CypherField runs a user-declared @cypher statement with the parent bound
// as "this" and returns the statement's column. When Nested is set the
// column holds nodes, and Nested (a read with a nil pattern over Result)
// filters and projects them.
type CypherField struct {
	Parent    cypher.Expr
	Statement string
	Column    string
	// Result is the variable the column is bound to.
	Result *cypher.Node
	Nested *Read
	List   bool
	As     cypher.Expr
}

// NewCypherField returns a field returning a scalar column into as.
func NewCypherField(parent cypher.Expr, statement, column string, list bool, as cypher.Expr) *CypherField {
	return &CypherField{
		Parent:    parent,
		Statement: statement,
		Column:    column,
		Result:    cypher.NewNode(),
		List:      list,
		As:        as,
	}
}

// Emit renders the statement wrapper. The enclosing Assign supplies the
// import of Parent.
func (f *CypherField) Emit() (cypher.Clause, error) {
	this := cypher.NamedVariable("this")
	statement := f.Statement
	user := cypher.Concat(
		cypher.NewWith(cypher.As(f.Parent, this)),
		cypher.RawClause(func(*cypher.Environment) string { return statement }),
	)
	column := cypher.NamedVariable(f.Column)
	clauses := []cypher.Clause{
		cypher.NewCall(user, f.Parent),
		cypher.NewWith(cypher.As(column, f.Result)),
	}

	kind := OutputHead
	if f.List {
		kind = OutputCollect
	}
	if f.Nested == nil {
		clauses = append(clauses, output(kind, f.Result, f.As))
		return cypher.Concat(clauses...), nil
	}

	f.Nested.Target = f.Result
	f.Nested.Pattern = nil
	f.Nested.Output = kind
	f.Nested.As = f.As
	nested, err := f.Nested.Emit()
	if err != nil {
		return nil, err
	}
	return cypher.Concat(append(clauses, nested)...), nil
}
