package querytree

import (
	"neo4j-graphql/internal/cypher"
)

// Connection reads a Relay connection. Matches are collected into an edge
// list first so totalCount is taken before paging, then the list is
// unwound, sorted, paged and collected again into the returned edges.
type Connection struct {
	Target *cypher.Node
	// Rel is the traversed relationship, nil for a root connection.
	Rel     *cypher.Relationship
	Pattern *cypher.Pattern

	Filters   []cypher.Expr
	PreFilter []cypher.Clause
	// Children run per edge, after unwinding and before paging.
	Children []Node

	Sort  []cypher.Order
	Skip  cypher.Expr
	Limit cypher.Expr

	Node *Projection
	// Edge projects relationship properties. Nil leaves them out.
	Edge *Projection
	As   cypher.Expr
}

// NewConnection returns a connection over pattern with an empty node projection.
func NewConnection(target *cypher.Node, rel *cypher.Relationship, pattern *cypher.Pattern) *Connection {
	return &Connection{
		Target:  target,
		Rel:     rel,
		Pattern: pattern,
		Node:    NewProjection(target),
	}
}

// Emit renders the connection.
func (c *Connection) Emit() (cypher.Clause, error) {
	match := (&Read{
		Target:    c.Target,
		Pattern:   c.Pattern,
		Filters:   c.Filters,
		PreFilter: c.PreFilter,
	}).emitMatch()

	edges := cypher.NewVariable()
	total := cypher.NewVariable()
	edge := cypher.NewVariable()
	page := cypher.NewVariable()

	collected := cypher.NewMap().Set("node", c.Target)
	rebind := []cypher.Item{cypher.As(edge.Property("node"), c.Target)}
	if c.Rel != nil {
		collected.Set("relationship", c.Rel)
		rebind = append(rebind, cypher.As(edge.Property("relationship"), c.Rel))
	}

	children, err := emitAll(c.Children)
	if err != nil {
		return nil, err
	}

	var node cypher.Expr = c.Target
	if c.Node != nil {
		node = c.Node
	}
	result := cypher.NewMap().Set("node", node)
	if c.Edge != nil && c.Rel != nil {
		result.Set("properties", c.Edge)
	}

	perEdge := append([]cypher.Clause{
		&cypher.Unwind{Expr: edges, As: edge},
		cypher.NewWith(rebind...),
	}, children...)
	perEdge = append(perEdge,
		paging(c.Sort, c.Skip, c.Limit),
		cypher.NewReturn(cypher.As(cypher.Collect(result), page)),
	)

	as := c.As
	if as == nil {
		as = c.Target
	}
	clauses := append(match,
		cypher.NewWith(cypher.As(cypher.Collect(collected), edges)),
		cypher.NewWith(cypher.Item{Expr: edges}, cypher.As(cypher.Size(edges), total)),
		cypher.NewCall(cypher.Concat(perEdge...), edges),
		cypher.NewReturn(cypher.As(cypher.NewMap().Set("edges", page).Set("totalCount", total), as)),
	)
	return cypher.Concat(clauses...), nil
}
