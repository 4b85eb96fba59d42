// Package querytree is the intermediate representation between the GraphQL
// translators and the cypher builder. A tree is assembled top-down while the
// selection set is walked and emitted bottom-up exactly once.
package querytree

import (
	"errors"
	"fmt"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/gqlerrors"
)

// ErrProjectionKind is returned when a projection holding a value is given
// fields, or the other way round.
var ErrProjectionKind = errors.New("projection holds either a value or fields")

// Node is one step of a Cypher tree.
type Node interface {
	Emit() (cypher.Clause, error)
}

// OutputKind selects how a read hands its rows to the enclosing scope.
type OutputKind int

const (
	// OutputRows returns one row per match.
	OutputRows OutputKind = iota
	// OutputCollect aggregates the rows into a list.
	OutputCollect
	// OutputHead aggregates the rows and keeps the first element.
	OutputHead
)

// Assign binds the RETURN items of Body into the enclosing scope through an
// isolated CALL subquery importing only Imports.
type Assign struct {
	Body    Node
	Imports []cypher.Expr
}

// Emit renders CALL { WITH imports ... }.
func (a *Assign) Emit() (cypher.Clause, error) {
	body, err := a.Body.Emit()
	if err != nil {
		return nil, err
	}
	return cypher.NewCall(body, a.Imports...), nil
}

// Steps emits its nodes in order.
type Steps []Node

// Emit concatenates the children.
func (s Steps) Emit() (cypher.Clause, error) {
	clauses := make([]cypher.Clause, 0, len(s))
	for _, n := range s {
		c, err := n.Emit()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return cypher.Concat(clauses...), nil
}

// Clauses is a node made of already-built clauses.
type Clauses []cypher.Clause

// Emit returns the clauses.
func (c Clauses) Emit() (cypher.Clause, error) {
	return cypher.Concat(c...), nil
}

// Tree owns a root node and renders it once.
type Tree struct {
	root    Node
	opts    []cypher.BuildOption
	emitted bool
}

// NewTree wraps root. Build options are applied when the tree is emitted.
func NewTree(root Node, opts ...cypher.BuildOption) *Tree {
	return &Tree{root: root, opts: opts}
}

// Emit renders the tree into a statement. A second call fails with
// gqlerrors.ErrAlreadyEmitted.
func (t *Tree) Emit() (cypher.Statement, error) {
	if t.emitted {
		return cypher.Statement{}, gqlerrors.ErrAlreadyEmitted
	}
	t.emitted = true
	if t.root == nil {
		return cypher.Statement{}, fmt.Errorf("empty cypher tree")
	}
	clause, err := t.root.Emit()
	if err != nil {
		return cypher.Statement{}, err
	}
	return cypher.Build(clause, t.opts...), nil
}

func paging(sort []cypher.Order, skip, limit cypher.Expr, items ...cypher.Item) cypher.Clause {
	if len(sort) == 0 && skip == nil && limit == nil {
		return nil
	}
	var w *cypher.With
	if len(items) > 0 {
		w = cypher.NewWith(items...)
	} else {
		w = cypher.WithAll()
	}
	w.OrderBy(sort...)
	if skip != nil {
		w.Skip(skip)
	}
	if limit != nil {
		w.Limit(limit)
	}
	return w
}

func output(kind OutputKind, expr cypher.Expr, as cypher.Expr) cypher.Clause {
	switch kind {
	case OutputCollect:
		return cypher.NewReturn(cypher.As(cypher.Collect(expr), as))
	case OutputHead:
		return cypher.NewReturn(cypher.As(cypher.Head(cypher.Collect(expr)), as))
	default:
		return cypher.NewReturn(cypher.As(expr, as))
	}
}

func emitAll(nodes []Node) ([]cypher.Clause, error) {
	out := make([]cypher.Clause, 0, len(nodes))
	for _, n := range nodes {
		c, err := n.Emit()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
