package filter

import (
	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/schema"
)

// operatorSuffixes is ordered longest first so that e.g. _NOT_IN wins over _IN.
var operatorSuffixes = []string{
	"NOT_STARTS_WITH", "NOT_ENDS_WITH", "NOT_CONTAINS", "NOT_INCLUDES",
	"STARTS_WITH", "ENDS_WITH", "NOT_IN", "CONTAINS", "INCLUDES", "MATCHES",
	"SINGLE", "SOME", "NONE", "ALL",
	"GTE", "LTE", "NOT", "GT", "LT", "EQ", "IN",
}

// Compare builds the predicate for one scalar operator. op "" and "EQ" are
// equality. A nil rhs turns equality into IS NULL and NOT into IS NOT NULL.
func Compare(op string, lhs, rhs cypher.Expr) (cypher.Expr, bool) {
	switch op {
	case "", "EQ":
		if rhs == nil {
			return cypher.IsNull(lhs), true
		}
		return cypher.Eq(lhs, rhs), true
	case "NOT":
		if rhs == nil {
			return cypher.IsNotNull(lhs), true
		}
		return cypher.Not(cypher.Eq(lhs, rhs)), true
	}
	if rhs == nil {
		return nil, false
	}
	switch op {
	case "GT":
		return cypher.Gt(lhs, rhs), true
	case "GTE":
		return cypher.Gte(lhs, rhs), true
	case "LT":
		return cypher.Lt(lhs, rhs), true
	case "LTE":
		return cypher.Lte(lhs, rhs), true
	case "IN":
		return cypher.In(lhs, rhs), true
	case "NOT_IN":
		return cypher.Not(cypher.In(lhs, rhs)), true
	case "CONTAINS":
		return cypher.Contains(lhs, rhs), true
	case "NOT_CONTAINS":
		return cypher.Not(cypher.Contains(lhs, rhs)), true
	case "STARTS_WITH":
		return cypher.StartsWith(lhs, rhs), true
	case "NOT_STARTS_WITH":
		return cypher.Not(cypher.StartsWith(lhs, rhs)), true
	case "ENDS_WITH":
		return cypher.EndsWith(lhs, rhs), true
	case "NOT_ENDS_WITH":
		return cypher.Not(cypher.EndsWith(lhs, rhs)), true
	case "MATCHES":
		return cypher.Matches(lhs, rhs), true
	case "INCLUDES":
		return cypher.In(rhs, lhs), true
	case "NOT_INCLUDES":
		return cypher.Not(cypher.In(rhs, lhs)), true
	}
	return nil, false
}

func (b *Builder) scalarPredicate(typeName string, field *schema.Field, lhs cypher.Expr, op string, value any) (cypher.Expr, error) {
	var rhs cypher.Expr
	if value != nil {
		var err error
		if rhs, err = b.Value(field.Type.Name, value); err != nil {
			return nil, err
		}
	}
	if field.Type.Name == "Duration" {
		switch op {
		case "GT", "GTE", "LT", "LTE":
			// Durations are only ordered relative to a point in time.
			lhs = cypher.Plus(cypher.Fn("datetime"), lhs)
			rhs = cypher.Plus(cypher.Fn("datetime"), rhs)
		}
	}
	pred, ok := Compare(op, lhs, rhs)
	if !ok {
		if rhs == nil {
			return nil, gqlerrors.InvalidInput("%s.%s_%s does not accept null", typeName, field.Name, op)
		}
		return nil, gqlerrors.SchemaMismatch(typeName, "operator %s is not valid on field %s", op, field.Name)
	}
	return pred, nil
}
