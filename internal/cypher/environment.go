// Package cypher builds parameterized Cypher statements from composable
// expressions, patterns and clauses. It has no knowledge of GraphQL: callers
// assemble primitives into clauses and Build renders them into a single
// statement with a parameter map.
package cypher

import (
	"fmt"
	"sort"
)

const (
	defaultVariablePrefix = "var"
	nodeVariablePrefix    = "this"
	paramPrefix           = "param"
)

// Environment holds the naming state for one statement. Variables and
// parameters are named lazily, in the order they are first rendered, from a
// single counter per kind. An Environment must not be shared between statements.
type Environment struct {
	variableCount int
	paramCount    int

	variables map[*Variable]string
	params    map[*Param]string
	values    map[string]any
}

// NewEnvironment returns an empty naming environment.
func NewEnvironment() *Environment {
	return &Environment{
		variables: make(map[*Variable]string),
		params:    make(map[*Param]string),
		values:    make(map[string]any),
	}
}

func (e *Environment) variableName(v *Variable) string {
	if v.name != "" {
		return v.name
	}
	if name, ok := e.variables[v]; ok {
		return name
	}
	prefix := v.prefix
	if prefix == "" {
		prefix = defaultVariablePrefix
	}
	name := fmt.Sprintf("%s%d", prefix, e.variableCount)
	e.variableCount++
	e.variables[v] = name
	return name
}

func (e *Environment) paramName(p *Param) string {
	if name, ok := e.params[p]; ok {
		return name
	}
	name := fmt.Sprintf("%s%d", paramPrefix, e.paramCount)
	e.paramCount++
	e.params[p] = name
	e.values[name] = p.value
	return name
}

func (e *Environment) bindNamed(name string, value any) {
	e.values[name] = value
}

// Params returns a copy of the parameters bound so far.
func (e *Environment) Params() map[string]any {
	out := make(map[string]any, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// ParamNames returns the bound parameter names in sorted order.
func (e *Environment) ParamNames() []string {
	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
