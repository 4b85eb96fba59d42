package schema

import (
	"fmt"
	"strings"

	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/gqlrequest"
)

// directiveArgs is the decoded argument map of one directive.
type directiveArgs map[string]any

func findDirective(directives []*ast.Directive, name string) (directiveArgs, bool) {
	for _, d := range directives {
		if d == nil || d.Name == nil || d.Name.Value != name {
			continue
		}
		return directiveArgs(gqlrequest.ArgumentValues(d.Arguments, nil)), true
	}
	return nil, false
}

func (a directiveArgs) string(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a directiveArgs) int(name string) (int, bool) {
	switch v := a[name].(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func (a directiveArgs) bool(name string, fallback bool) bool {
	if b, ok := a[name].(bool); ok {
		return b
	}
	return fallback
}

func (a directiveArgs) strings(name string) []string {
	switch v := a[name].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (a directiveArgs) has(name string) bool {
	_, ok := a[name]
	return ok
}

// parseOperations keeps unknown names so the validation gate can report them.
func parseOperations(values []string, fallback []Operation) []Operation {
	if values == nil {
		return fallback
	}
	ops := make([]Operation, 0, len(values))
	for _, v := range values {
		ops = append(ops, Operation(strings.ToUpper(v)))
	}
	return ops
}

// IsKnownOperation reports whether op is a recognised operation name.
func IsKnownOperation(op Operation) bool {
	for _, known := range AllOperations {
		if op == known {
			return true
		}
	}
	return false
}

// filterRuleDefaults excludes CREATE: there is nothing to filter before a node exists.
var filterRuleDefaults = []Operation{
	OpRead, OpAggregate, OpUpdate, OpDelete,
	OpCreateRelationship, OpDeleteRelationship, OpSubscribe,
}

func parseAuthorization(directives []*ast.Directive) (*Authorization, error) {
	args, ok := findDirective(directives, "authorization")
	if !ok {
		return nil, nil
	}
	auth := &Authorization{}
	for _, raw := range listOf(args["filter"]) {
		rule, err := parseRule(raw, RuleFilter)
		if err != nil {
			return nil, fmt.Errorf("@authorization filter: %w", err)
		}
		auth.Filter = append(auth.Filter, rule)
	}
	for _, raw := range listOf(args["validate"]) {
		rule, err := parseRule(raw, RuleValidate)
		if err != nil {
			return nil, fmt.Errorf("@authorization validate: %w", err)
		}
		auth.Validate = append(auth.Validate, rule)
	}
	return auth, nil
}

func listOf(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	default:
		return []any{x}
	}
}

func parseRule(raw any, kind RuleKind) (AuthorizationRule, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return AuthorizationRule{}, fmt.Errorf("rule must be an object, got %T", raw)
	}
	args := directiveArgs(m)
	fallback := AllOperations
	if kind == RuleFilter {
		fallback = filterRuleDefaults
	}
	ops := parseOperations(args.strings("operations"), fallback)
	rule := AuthorizationRule{
		Kind:                  kind,
		Operations:            ops,
		RequireAuthentication: args.bool("requireAuthentication", true),
	}
	if where, ok := m["where"].(map[string]any); ok {
		rule.Where = where
	}
	if kind == RuleValidate {
		rule.When = []When{Before, After}
		if whens := args.strings("when"); whens != nil {
			rule.When = nil
			for _, w := range whens {
				switch When(strings.ToUpper(w)) {
				case Before:
					rule.When = append(rule.When, Before)
				case After:
					rule.When = append(rule.When, After)
				default:
					return AuthorizationRule{}, fmt.Errorf("unknown when %q", w)
				}
			}
		}
	}
	return rule, nil
}

func parseAuthentication(directives []*ast.Directive) *Authentication {
	args, ok := findDirective(directives, "authentication")
	if !ok {
		return nil
	}
	auth := &Authentication{Operations: parseOperations(args.strings("operations"), AllOperations)}
	if jwt, ok := args["jwt"].(map[string]any); ok {
		auth.JWT = jwt
	}
	return auth
}

func parseLimit(directives []*ast.Directive) *Limit {
	args, ok := findDirective(directives, "limit")
	if !ok {
		return nil
	}
	limit := &Limit{}
	limit.Default, _ = args.int("default")
	limit.Max, _ = args.int("max")
	return limit
}
