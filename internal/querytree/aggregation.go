package querytree

import (
	"fmt"

	"neo4j-graphql/internal/cypher"
)

// AggregationKind selects the aggregate computed by an Aggregation.
type AggregationKind int

const (
	// AggregateCount counts the matched targets.
	AggregateCount AggregationKind = iota
	// AggregateNumeric computes min, max, average and sum.
	AggregateNumeric
	// AggregateString computes the longest and shortest value.
	AggregateString
)

// Aggregation computes one aggregate over its own match so that no other
// selection multiplies the rows it sees. Ops names the requested
// components, e.g. "min" and "sum", or "longest".
type Aggregation struct {
	Source *Read
	Kind   AggregationKind
	Expr   cypher.Expr
	Ops    []string
	As     *cypher.Variable
}

// Emit renders the aggregation.
func (a *Aggregation) Emit() (cypher.Clause, error) {
	clauses := a.Source.emitMatch()
	switch a.Kind {
	case AggregateCount:
		clauses = append(clauses, cypher.NewReturn(cypher.As(cypher.Count(a.Source.Target), a.As)))
	case AggregateNumeric:
		m := cypher.NewMap()
		for _, op := range a.Ops {
			switch op {
			case "min":
				m.Set(op, cypher.Min(a.Expr))
			case "max":
				m.Set(op, cypher.Max(a.Expr))
			case "average":
				m.Set(op, cypher.Avg(a.Expr))
			case "sum":
				m.Set(op, cypher.Sum(a.Expr))
			default:
				return nil, fmt.Errorf("unknown aggregate %s", op)
			}
		}
		clauses = append(clauses, cypher.NewReturn(cypher.As(m, a.As)))
	case AggregateString:
		list := cypher.NewVariable()
		m := cypher.NewMap()
		for _, op := range a.Ops {
			switch op {
			case "longest":
				m.Set(op, cypher.Head(list))
			case "shortest":
				m.Set(op, cypher.Last(list))
			default:
				return nil, fmt.Errorf("unknown aggregate %s", op)
			}
		}
		clauses = append(clauses,
			cypher.WithAll().OrderBy(cypher.Desc(cypher.Size(a.Expr))),
			cypher.NewWith(cypher.As(cypher.Collect(a.Expr), list)),
			cypher.NewReturn(cypher.As(m, a.As)),
		)
	default:
		return nil, fmt.Errorf("unknown aggregation kind %d", a.Kind)
	}
	return cypher.Concat(clauses...), nil
}
