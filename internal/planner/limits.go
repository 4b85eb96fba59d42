package planner

import (
	"strconv"
	"strings"

	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/gqlerrors"
)

// DefaultListLimit is the list size cost estimation assumes for a list
// without an explicit limit.
const DefaultListLimit = 100

// PlanLimits defines cost limits applied during planning.
type PlanLimits struct {
	MaxDepth      int
	MaxComplexity int
	MaxRows       int
}

// PlanCost captures estimated cost for a query.
type PlanCost struct {
	Depth      int
	Complexity int
	Rows       int
}

// EstimateCost estimates cost based on the field selection and arguments.
// Fragment spreads are expanded through fragments.
func EstimateCost(field *ast.Field, args map[string]any, fallbackLimit int, fragments map[string]*ast.FragmentDefinition) PlanCost {
	if field == nil {
		return PlanCost{}
	}
	e := costEstimator{fragments: fragments, fallback: fallbackLimit}
	return PlanCost{
		Depth:      e.depth(field, 1),
		Complexity: e.complexity(field, args),
		Rows:       e.rows(field, args),
	}
}

func validateLimits(cost PlanCost, limits PlanLimits) error {
	if limits.MaxDepth > 0 && cost.Depth > limits.MaxDepth {
		return gqlerrors.InvalidInput("query exceeds maximum depth of %d (depth: %d)", limits.MaxDepth, cost.Depth)
	}
	if limits.MaxComplexity > 0 && cost.Complexity > limits.MaxComplexity {
		return gqlerrors.InvalidInput("query exceeds maximum complexity of %d (complexity: %d)", limits.MaxComplexity, cost.Complexity)
	}
	if limits.MaxRows > 0 && cost.Rows > limits.MaxRows {
		return gqlerrors.InvalidInput("query exceeds maximum rows of %d (estimated: %d)", limits.MaxRows, cost.Rows)
	}
	return nil
}

type costEstimator struct {
	fragments map[string]*ast.FragmentDefinition
	fallback  int
}

// isConnectionField returns true for generated connection fields, whose
// children are Relay wrappers rather than data fields.
func isConnectionField(field *ast.Field) bool {
	return strings.HasSuffix(field.Name.Value, "Connection") || hasArgNamed(field, "first")
}

// fields flattens a selection set into its fields, expanding fragments.
func (e costEstimator) fields(set *ast.SelectionSet, seen map[string]bool) []*ast.Field {
	if set == nil {
		return nil
	}
	var out []*ast.Field
	for _, sel := range set.Selections {
		switch s := sel.(type) {
		case *ast.Field:
			if s.Name != nil {
				out = append(out, s)
			}
		case *ast.InlineFragment:
			out = append(out, e.fields(s.SelectionSet, seen)...)
		case *ast.FragmentSpread:
			if s.Name == nil || seen[s.Name.Value] {
				continue
			}
			def, ok := e.fragments[s.Name.Value]
			if !ok {
				continue
			}
			seen[s.Name.Value] = true
			out = append(out, e.fields(def.SelectionSet, seen)...)
			delete(seen, s.Name.Value)
		}
	}
	return out
}

// dataFields returns the fields that cost something to fetch. For a
// connection it unwraps edges, node and properties; pageInfo, cursor and
// totalCount come for free.
func (e costEstimator) dataFields(field *ast.Field) []*ast.Field {
	children := e.fields(field.SelectionSet, map[string]bool{})
	if !isConnectionField(field) {
		return children
	}
	var result []*ast.Field
	for _, sub := range children {
		if sub.Name.Value != "edges" {
			continue
		}
		for _, edgeField := range e.fields(sub.SelectionSet, map[string]bool{}) {
			switch edgeField.Name.Value {
			case "node", "properties":
				result = append(result, e.fields(edgeField.SelectionSet, map[string]bool{})...)
			}
		}
	}
	return result
}

func (e costEstimator) depth(field *ast.Field, current int) int {
	maxDepth := current
	for _, sub := range e.dataFields(field) {
		if d := e.depth(sub, current+1); d > maxDepth {
			maxDepth = d
		}
	}
	return maxDepth
}

func (e costEstimator) rows(field *ast.Field, args map[string]any) int {
	limit := e.listLimit(field, args)
	rows := limit
	for _, sub := range e.dataFields(field) {
		rows += limit * e.rows(sub, nil)
	}
	return rows
}

func (e costEstimator) complexity(field *ast.Field, args map[string]any) int {
	limit := e.listLimit(field, args)
	children := e.dataFields(field)
	if len(children) == 0 {
		return limit
	}
	complexity := 1
	for _, sub := range children {
		complexity += limit * e.complexity(sub, nil)
	}
	return complexity
}

// listLimit returns the number of rows a field is expected to produce. A
// field without paging arguments counts as one row unless it is a
// selection with children, which is a list of unknown size.
func (e costEstimator) listLimit(field *ast.Field, args map[string]any) int {
	for _, name := range []string{"limit", "first"} {
		if n, ok := argInt(args, name); ok {
			return n
		}
		if n, ok := intFromAST(field, name); ok {
			return n
		}
	}
	if options, ok := args["options"].(map[string]any); ok {
		if n, ok := argInt(options, "limit"); ok {
			return n
		}
	}
	if hasArgNamed(field, "options") || hasArgNamed(field, "where") || isConnectionField(field) {
		return e.fallback
	}
	return 1
}

func argInt(args map[string]any, key string) (int, bool) {
	if args == nil {
		return 0, false
	}
	switch v := args[key].(type) {
	case int:
		return v, v >= 0
	case int64:
		return int(v), v >= 0
	case float64:
		return int(v), v >= 0 && v == float64(int(v))
	}
	return 0, false
}

func intFromAST(field *ast.Field, name string) (int, bool) {
	for _, arg := range field.Arguments {
		if arg == nil || arg.Name == nil || arg.Name.Value != name {
			continue
		}
		if v, ok := arg.Value.(*ast.IntValue); ok {
			if n, err := strconv.Atoi(v.Value); err == nil && n >= 0 {
				return n, true
			}
		}
	}
	return 0, false
}

func hasArgNamed(field *ast.Field, name string) bool {
	if field == nil {
		return false
	}
	for _, arg := range field.Arguments {
		if arg != nil && arg.Name != nil && arg.Name.Value == name {
			return true
		}
	}
	return false
}
