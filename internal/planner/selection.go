package planner

import (
	"math"

	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/gqlrequest"
	"neo4j-graphql/internal/schema"
)

// selectedField is one response key of a selection set, with every
// occurrence of the field merged.
type selectedField struct {
	key   string
	name  string
	field *ast.Field
	set   *ast.SelectionSet
	// types is set by abstractFields: the concrete types selecting the key.
	types []string
}

// collectFields returns the fields selected on objects of typeName, in
// document order. Fragments apply when their type condition is typeName,
// an interface it implements or a union it belongs to. @skip and @include
// are honoured.
func (p *planner) collectFields(set *ast.SelectionSet, typeName string) []*selectedField {
	var out []*selectedField
	index := map[string]*selectedField{}
	p.walkSelections(set, typeName, map[string]bool{}, func(f *ast.Field) {
		key := responseKey(f)
		if existing, ok := index[key]; ok {
			if f.SelectionSet != nil {
				existing.set.Selections = append(existing.set.Selections, f.SelectionSet.Selections...)
			}
			return
		}
		sf := &selectedField{key: key, name: f.Name.Value, field: f, set: &ast.SelectionSet{}}
		if f.SelectionSet != nil {
			sf.set.Selections = append(sf.set.Selections, f.SelectionSet.Selections...)
		}
		index[key] = sf
		out = append(out, sf)
	})
	return out
}

// RootFields returns the fields of an operation's selection set on the
// root type, one per response key in document order. Repeated keys are
// merged into a single field.
func RootFields(s *schema.Schema, set *ast.SelectionSet, rootType string, fragments map[string]*ast.FragmentDefinition, vars map[string]any) []*ast.Field {
	p := &planner{schema: s, fragments: fragments, vars: vars}
	var out []*ast.Field
	for _, sf := range p.collectFields(set, rootType) {
		field := *sf.field
		if len(sf.set.Selections) > 0 {
			field.SelectionSet = sf.set
		}
		out = append(out, &field)
	}
	return out
}

func (p *planner) walkSelections(set *ast.SelectionSet, typeName string, spreading map[string]bool, visit func(*ast.Field)) {
	if set == nil {
		return
	}
	for _, sel := range set.Selections {
		switch s := sel.(type) {
		case *ast.Field:
			if s.Name != nil && p.included(s.Directives) {
				visit(s)
			}
		case *ast.InlineFragment:
			if !p.included(s.Directives) {
				continue
			}
			if s.TypeCondition != nil && !p.matchesType(s.TypeCondition.Name.Value, typeName) {
				continue
			}
			p.walkSelections(s.SelectionSet, typeName, spreading, visit)
		case *ast.FragmentSpread:
			if s.Name == nil || spreading[s.Name.Value] || !p.included(s.Directives) {
				continue
			}
			def, ok := p.fragments[s.Name.Value]
			if !ok {
				continue
			}
			if def.TypeCondition != nil && !p.matchesType(def.TypeCondition.Name.Value, typeName) {
				continue
			}
			spreading[s.Name.Value] = true
			p.walkSelections(def.SelectionSet, typeName, spreading, visit)
			delete(spreading, s.Name.Value)
		}
	}
}

// matchesType reports whether a fragment on condition applies to typeName.
// An empty typeName is a generated wrapper type, such as a connection,
// that every fragment in its selection targets.
func (p *planner) matchesType(condition, typeName string) bool {
	if condition == typeName || typeName == "" {
		return true
	}
	if n := p.schema.Node(typeName); n != nil {
		for _, iface := range n.Interfaces {
			if iface == condition {
				return true
			}
		}
		if u := p.schema.Union(condition); u != nil {
			for _, m := range u.Members {
				if m == typeName {
					return true
				}
			}
		}
	}
	return false
}

// abstractFields merges the fields selected on every concrete type behind
// an interface or union. Keys selected on only some types record them.
func (p *planner) abstractFields(set *ast.SelectionSet, typeName string) []*selectedField {
	concrete := p.schema.ConcreteTypes(typeName)
	var out []*selectedField
	index := map[string]*selectedField{}
	for _, n := range concrete {
		for _, sf := range p.collectFields(set, n.Name) {
			if existing, ok := index[sf.key]; ok {
				existing.types = append(existing.types, n.Name)
				continue
			}
			sf.types = []string{n.Name}
			index[sf.key] = sf
			out = append(out, sf)
		}
	}
	for _, sf := range out {
		if len(sf.types) == len(concrete) {
			sf.types = nil
		}
	}
	return out
}

func (p *planner) included(directives []*ast.Directive) bool {
	for _, d := range directives {
		if d == nil || d.Name == nil {
			continue
		}
		args := gqlrequest.ArgumentValues(d.Arguments, p.vars)
		cond, _ := args["if"].(bool)
		switch d.Name.Value {
		case "skip":
			if cond {
				return false
			}
		case "include":
			if !cond {
				return false
			}
		}
	}
	return true
}

func (p *planner) args(field *ast.Field) map[string]any {
	return gqlrequest.ArgumentValues(field.Arguments, p.vars)
}

// intValue converts an argument to int. JSON variables arrive as float64.
func intValue(name string, v any) (int, bool, error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case int:
		return checkNonNegative(name, int64(n))
	case int64:
		return checkNonNegative(name, n)
	case float64:
		if n != math.Trunc(n) {
			return 0, false, gqlerrors.InvalidInput("%s must be an integer", name)
		}
		return checkNonNegative(name, int64(n))
	}
	return 0, false, gqlerrors.InvalidInput("%s must be an integer", name)
}

func checkNonNegative(name string, n int64) (int, bool, error) {
	if n < 0 {
		return 0, false, gqlerrors.InvalidInput("%s must be non-negative", name)
	}
	return int(n), true, nil
}

func objectArg(args map[string]any, name string) (map[string]any, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, gqlerrors.InvalidInput("%s must be an object", name)
	}
	return m, nil
}

// objectList accepts a list of objects or a single object.
func objectList(name string, v any) ([]map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			m, ok := item.(map[string]any)
			if !ok {
				return nil, gqlerrors.InvalidInput("%s must contain objects", name)
			}
			out = append(out, m)
		}
		return out, nil
	case []map[string]any:
		return t, nil
	}
	return nil, gqlerrors.InvalidInput("%s must be an object or a list of objects", name)
}
