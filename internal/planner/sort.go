package planner

import (
	"strings"

	"neo4j-graphql/internal/cursor"
	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/schema"
)

// window is the resolved sort and paging of one list selection.
type window struct {
	sort  []cypher.Order
	skip  cypher.Expr
	limit cypher.Expr
	// offset is the skip applied to a connection, used for cursors.
	offset int
}

// sortKey is one requested sort entry.
type sortKey struct {
	field      string
	descending bool
}

// parseSort reads [{field: ASC|DESC}] input. Keys inside one entry are
// taken in name order.
func parseSort(name string, v any) ([]sortKey, error) {
	entries, err := objectList(name, v)
	if err != nil {
		return nil, err
	}
	var out []sortKey
	for _, entry := range entries {
		for _, field := range filter.SortedKeys(entry) {
			dir, ok := entry[field].(string)
			if !ok {
				return nil, gqlerrors.InvalidInput("%s.%s must be ASC or DESC", name, field)
			}
			switch strings.ToUpper(dir) {
			case "ASC":
				out = append(out, sortKey{field: field})
			case "DESC":
				out = append(out, sortKey{field: field, descending: true})
			default:
				return nil, gqlerrors.InvalidInput("%s.%s must be ASC or DESC", name, field)
			}
		}
	}
	return out, nil
}

func (k sortKey) order(expr cypher.Expr) cypher.Order {
	if k.descending {
		return cypher.Desc(expr)
	}
	return cypher.Asc(expr)
}

// clampLimit applies a @limit directive to a requested page size. Without
// a request the directive's default applies, falling back to its max.
func clampLimit(requested int, has bool, limit *schema.Limit) (int, bool) {
	if limit == nil {
		return requested, has
	}
	if !has {
		if limit.Default > 0 {
			return limit.Default, true
		}
		if limit.Max > 0 {
			return limit.Max, true
		}
		return 0, false
	}
	if limit.Max > 0 && requested > limit.Max {
		return limit.Max, true
	}
	return requested, true
}

// entityLimit returns the @limit of a node or interface type.
func (p *planner) entityLimit(typeName string) *schema.Limit {
	if n := p.schema.Node(typeName); n != nil {
		return n.Limit
	}
	if i := p.schema.Interface(typeName); i != nil {
		return i.Limit
	}
	return nil
}

// listWindow reads sort, limit and offset for a list field, either from
// options or from top-level arguments. sortExpr resolves a sort field.
func (p *planner) listWindow(args map[string]any, typeName string, sortExpr func(string) (cypher.Expr, error)) (window, error) {
	var w window
	source := args
	options, err := objectArg(args, "options")
	if err != nil {
		return w, err
	}
	if options != nil {
		source = options
	}

	if w.sort, err = orders("sort", source["sort"], sortExpr); err != nil {
		return w, err
	}

	offset, hasOffset, err := intValue("offset", source["offset"])
	if err != nil {
		return w, err
	}
	if hasOffset && offset > 0 {
		w.skip = cypher.NewParam(int64(offset))
	}
	requested, hasLimit, err := intValue("limit", source["limit"])
	if err != nil {
		return w, err
	}
	if limit, ok := clampLimit(requested, hasLimit, p.entityLimit(typeName)); ok {
		w.limit = cypher.NewParam(int64(limit))
	}
	return w, nil
}

// orders resolves the sort keys of one [{field: ASC|DESC}] entry.
func orders(name string, entry any, resolve func(string) (cypher.Expr, error)) ([]cypher.Order, error) {
	keys, err := parseSort(name, entry)
	if err != nil {
		return nil, err
	}
	out := make([]cypher.Order, 0, len(keys))
	for _, k := range keys {
		expr, err := resolve(k.field)
		if err != nil {
			return nil, err
		}
		out = append(out, k.order(expr))
	}
	return out, nil
}

// connectionWindow reads first, after and sort for a connection field.
// sortEntry resolves one sort input entry.
func (p *planner) connectionWindow(args map[string]any, typeName string, sortEntry func(map[string]any) ([]cypher.Order, error)) (window, error) {
	var w window
	entries, err := objectList("sort", args["sort"])
	if err != nil {
		return w, err
	}
	for _, entry := range entries {
		o, err := sortEntry(entry)
		if err != nil {
			return w, err
		}
		w.sort = append(w.sort, o...)
	}

	if after, ok := args["after"].(string); ok && after != "" {
		start, err := cursor.StartAfter(after)
		if err != nil {
			return w, gqlerrors.InvalidInput("after: %v", err)
		}
		w.offset = start
		if start > 0 {
			w.skip = cypher.NewParam(int64(start))
		}
	}
	first, hasFirst, err := intValue("first", args["first"])
	if err != nil {
		return w, err
	}
	if limit, ok := clampLimit(first, hasFirst, p.entityLimit(typeName)); ok {
		w.limit = cypher.NewParam(int64(limit))
	}
	return w, nil
}
