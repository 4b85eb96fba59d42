package querytree

import (
	"fmt"

	"neo4j-graphql/internal/cypher"
)

// ResolveTypeKey is the projected key carrying the concrete type name of
// an abstract selection.
const ResolveTypeKey = "__resolveType"

// SortKey returns the projected key holding the value a union result is
// sorted on. It never collides with a response key.
func SortKey(field string) string {
	return "__sort_" + field
}

// Union reads an interface or union target. Every concrete type is its own
// branch with its own filters and a __resolveType literal; the branches are
// combined with UNION inside one subquery, then sorted, paged and returned.
type Union struct {
	Branches []*Read
	// Out is the column every branch returns.
	Out *cypher.Variable

	Sort  []cypher.Order
	Skip  cypher.Expr
	Limit cypher.Expr

	Output OutputKind
	As     cypher.Expr
}

// AddBranch projects the concrete type name into branch and appends it.
func (u *Union) AddBranch(typeName string, branch *Read) error {
	if err := branch.Projection.AddField(ResolveTypeKey, cypher.Lit(typeName)); err != nil {
		return fmt.Errorf("branch %s: %w", typeName, err)
	}
	u.Branches = append(u.Branches, branch)
	return nil
}

// Emit renders the union.
func (u *Union) Emit() (cypher.Clause, error) {
	if len(u.Branches) == 0 {
		return nil, fmt.Errorf("union has no branches")
	}
	branches := make([]cypher.Clause, len(u.Branches))
	for i, b := range u.Branches {
		b.Output = OutputRows
		b.As = u.Out
		c, err := b.Emit()
		if err != nil {
			return nil, err
		}
		branches[i] = c
	}
	var inner cypher.Clause = branches[0]
	if len(branches) > 1 {
		inner = &cypher.Union{Branches: branches}
	}
	as := u.As
	if as == nil {
		as = u.Out
	}
	return cypher.Concat(
		cypher.NewCall(inner),
		paging(u.Sort, u.Skip, u.Limit, cypher.Items(u.Out)...),
		output(u.Output, u.Out, as),
	), nil
}
