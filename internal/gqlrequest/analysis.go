package gqlrequest

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// Analysis stores parsed and derived GraphQL request metadata.
type Analysis struct {
	Envelope               Envelope
	RequestedOperationName string

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string

	// RootFieldCount is the number of root selections, each of which is
	// translated into its own Cypher statement.
	RootFieldCount int
	FieldCount     int
	SelectionDepth int
	VariableCount  int

	CanonicalOperation string
	OperationHash      string

	DecodeError     error
	ParseError      error
	SelectionError  error
	CanonicalizeErr error
}

var errNoOperation = errors.New("request does not include an operation")

// AnalyzeRequest decodes and analyzes a GraphQL request payload.
func AnalyzeRequest(r *http.Request) *Analysis {
	envelope, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(envelope)
	analysis.DecodeError = err
	return analysis
}

// AnalyzeEnvelope parses the query, selects the operation and measures it.
// An empty query yields an Analysis with no operation and no errors.
func AnalyzeEnvelope(env Envelope) *Analysis {
	a := &Analysis{
		Envelope:               env,
		RequestedOperationName: env.OperationName,
		Fragments:              map[string]*ast.FragmentDefinition{},
	}
	if strings.TrimSpace(env.Query) == "" {
		return a
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(env.Query), Name: "graphql"}),
	})
	if err != nil {
		a.ParseError = err
		return a
	}
	a.Document = doc

	var operations []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition:
			operations = append(operations, d)
		case *ast.FragmentDefinition:
			if d.Name != nil && d.Name.Value != "" {
				a.Fragments[d.Name.Value] = d
			}
		}
	}

	op, err := pickOperation(operations, env.OperationName)
	if err != nil {
		a.SelectionError = err
		return a
	}
	a.Operation = op
	a.OperationName = effectiveOperationName(op)
	a.OperationType = string(op.Operation)
	a.VariableCount = len(op.VariableDefinitions)

	w := newSelectionWalker(a.Fragments)
	a.RootFieldCount = w.walk(op.SelectionSet, 1)
	a.FieldCount = w.fields
	a.SelectionDepth = w.depth

	a.CanonicalOperation, a.OperationHash, a.CanonicalizeErr = canonicalize(op, a.Fragments, w.spreadNames())
	return a
}

func pickOperation(operations []*ast.OperationDefinition, name string) (*ast.OperationDefinition, error) {
	if name != "" {
		for _, op := range operations {
			if op.Name != nil && op.Name.Value == name {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", name)
	}
	switch len(operations) {
	case 0:
		return nil, errNoOperation
	case 1:
		return operations[0], nil
	default:
		return nil, errors.New("operationName is required when request has multiple operations")
	}
}

// selectionWalker measures a selection set. Each named fragment is expanded
// the first time it is spread and skipped afterwards, which also makes
// cyclic fragments safe.
type selectionWalker struct {
	fragments map[string]*ast.FragmentDefinition
	spread    map[string]bool

	fields int
	depth  int
}

func newSelectionWalker(fragments map[string]*ast.FragmentDefinition) *selectionWalker {
	return &selectionWalker{fragments: fragments, spread: map[string]bool{}}
}

// walk visits set at level and returns the number of fields selected
// directly at that level, fragments included.
func (w *selectionWalker) walk(set *ast.SelectionSet, level int) int {
	if set == nil {
		return 0
	}
	direct := 0
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			direct++
			w.fields++
			if level > w.depth {
				w.depth = level
			}
			w.walk(sel.SelectionSet, level+1)
		case *ast.InlineFragment:
			direct += w.walk(sel.SelectionSet, level)
		case *ast.FragmentSpread:
			if sel.Name == nil || w.spread[sel.Name.Value] {
				continue
			}
			w.spread[sel.Name.Value] = true
			if fragment := w.fragments[sel.Name.Value]; fragment != nil {
				direct += w.walk(fragment.SelectionSet, level)
			}
		}
	}
	return direct
}

// spreadNames returns the fragments reached from the operation, sorted.
func (w *selectionWalker) spreadNames() []string {
	names := make([]string, 0, len(w.spread))
	for name := range w.spread {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
