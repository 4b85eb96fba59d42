package authz

import (
	"strings"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
)

// ClaimsWhere compiles a jwt where input against $jwt. Claim names may be
// dotted paths into nested claims.
func (i *Injector) ClaimsWhere(where map[string]any) (cypher.Expr, error) {
	preds := make([]cypher.Expr, 0, len(where))
	for _, key := range filter.SortedKeys(where) {
		value := where[key]
		if key == "AND" || key == "OR" || key == "NOT" {
			pred, err := filter.Combine(key, value, i.ClaimsWhere)
			if err != nil {
				return nil, err
			}
			preds = append(preds, pred)
			continue
		}
		claim, op := filter.SplitOperator(nil, key)
		lhs := cypher.Prop(i.ctx.JWT, strings.Split(claim, ".")...)
		var rhs cypher.Expr
		if value != nil {
			var err error
			if rhs, err = i.filters.Value("", value); err != nil {
				return nil, err
			}
		}
		pred, ok := filter.Compare(op, lhs, rhs)
		if !ok {
			return nil, gqlerrors.SchemaMismatch("jwt", "operator %s is not valid on claim %s", op, claim)
		}
		preds = append(preds, pred)
	}
	return cypher.And(preds...), nil
}
