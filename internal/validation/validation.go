// Package validation is the directive validation gate run after schema
// compilation. A schema with any error is never served.
package validation

import (
	"fmt"
	"strings"

	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/schema"
)

// Issue is one problem found in the type definitions.
type Issue struct {
	Type    string
	Field   string
	Message string
}

func (i Issue) Error() string {
	if i.Field != "" {
		return fmt.Sprintf("%s.%s: %s", i.Type, i.Field, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Type, i.Message)
}

// Result holds the validation outcome.
type Result struct {
	Errors   []Issue
	Warnings []Issue
}

// HasErrors returns true if there are any validation errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Err returns nil when the schema passed, otherwise a schema mismatch error
// listing every issue.
func (r *Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%w: %s", gqlerrors.ErrSchemaMismatch, strings.Join(msgs, "; "))
}

func (r *Result) errorf(typeName, field, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Type: typeName, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(typeName, field, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Type: typeName, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks directive usage across the compiled schema.
func Validate(s *schema.Schema) *Result {
	result := &Result{}
	for _, node := range s.Nodes() {
		validateEntity(result, s, node.Name, node.Fields())
		validateAuthorization(result, node.Name, "", node.Authorization)
		validateAuthentication(result, node.Name, "", node.Authentication)
		validateLimit(result, node.Name, node.Limit)
		for _, name := range node.Interfaces {
			validateImplementation(result, s, node, name)
		}
		if len(node.Labels) == 0 {
			result.errorf(node.Name, "", "@node requires at least one label")
		}
	}
	for _, iface := range s.Interfaces() {
		validateEntity(result, s, iface.Name, iface.Fields())
		validateAuthorization(result, iface.Name, "", iface.Authorization)
		validateLimit(result, iface.Name, iface.Limit)
		if len(iface.Implementations) == 0 {
			result.warnf(iface.Name, "", "interface has no implementations")
		}
	}
	return result
}

func validateEntity(result *Result, s *schema.Schema, typeName string, fields []*schema.Field) {
	for _, f := range fields {
		validateAuthorization(result, typeName, f.Name, f.Authorization)
		validateAuthentication(result, typeName, f.Name, f.Authentication)
		if f.Property == "" {
			result.errorf(typeName, f.Name, "@alias property must not be empty")
		}
		if f.ID && f.Type.Name != "ID" && f.Type.Name != "String" {
			result.errorf(typeName, f.Name, "@id requires an ID or String field, got %s", f.Type.Name)
		}
		if len(f.Timestamps) > 0 {
			if f.Type.Name != "DateTime" {
				result.errorf(typeName, f.Name, "@timestamp requires a DateTime field, got %s", f.Type.Name)
			}
			for _, op := range f.Timestamps {
				if op != schema.OpCreate && op != schema.OpUpdate {
					result.errorf(typeName, f.Name, "@timestamp operation %s must be CREATE or UPDATE", op)
				}
			}
		}
		switch f.Kind {
		case schema.KindRelationship:
			validateRelationship(result, s, typeName, f)
		case schema.KindCypher:
			if strings.TrimSpace(f.Cypher.Statement) == "" {
				result.errorf(typeName, f.Name, "@cypher statement must not be empty")
			}
			if f.Cypher.ColumnName == "" {
				result.errorf(typeName, f.Name, "@cypher columnName is required")
			}
		}
	}
}

func validateRelationship(result *Result, s *schema.Schema, typeName string, f *schema.Field) {
	rel := f.Relationship
	if rel.Type == "" {
		result.errorf(typeName, f.Name, "@relationship type must not be empty")
	}
	switch rel.Direction {
	case schema.DirectionIn, schema.DirectionOut, schema.DirectionUndirected:
	default:
		result.errorf(typeName, f.Name, "@relationship direction %q must be IN, OUT or UNDIRECTED", rel.Direction)
	}
	if s.Node(rel.Target) == nil && !s.IsAbstract(rel.Target) {
		result.errorf(typeName, f.Name, "relationship target %s is not a node, interface or union", rel.Target)
	}
	if rel.Properties != "" && s.RelationshipProperties(rel.Properties) == nil {
		result.errorf(typeName, f.Name, "relationship properties type %s is not declared with @relationshipProperties", rel.Properties)
	}
}

func validateImplementation(result *Result, s *schema.Schema, node *schema.Node, ifaceName string) {
	iface := s.Interface(ifaceName)
	if iface == nil {
		result.errorf(node.Name, "", "implements unknown interface %s", ifaceName)
		return
	}
	for _, want := range iface.Fields() {
		got := node.Field(want.Name)
		if got == nil {
			result.errorf(node.Name, want.Name, "missing field required by interface %s", ifaceName)
			continue
		}
		if got.Type.Name != want.Type.Name || got.Type.List != want.Type.List {
			result.errorf(node.Name, want.Name, "type does not match interface %s", ifaceName)
		}
		if want.Relationship != nil {
			if got.Relationship == nil {
				result.errorf(node.Name, want.Name, "missing @relationship required by interface %s", ifaceName)
				continue
			}
			if got.Relationship.Type != want.Relationship.Type || got.Relationship.Direction != want.Relationship.Direction {
				result.errorf(node.Name, want.Name, "@relationship type or direction differs from interface %s", ifaceName)
			}
		}
	}
}

func validateAuthorization(result *Result, typeName, field string, auth *schema.Authorization) {
	if auth == nil {
		return
	}
	if len(auth.Filter) == 0 && len(auth.Validate) == 0 {
		result.errorf(typeName, field, "@authorization requires at least one filter or validate rule")
	}
	rules := append(append([]schema.AuthorizationRule{}, auth.Filter...), auth.Validate...)
	for _, rule := range rules {
		for _, op := range rule.Operations {
			if !schema.IsKnownOperation(op) {
				result.errorf(typeName, field, "@authorization unknown operation %s", op)
			}
		}
		if len(rule.Where) == 0 {
			result.errorf(typeName, field, "@authorization rule requires where")
		}
		for key := range rule.Where {
			switch key {
			case "node", "jwt", "AND", "OR", "NOT":
			default:
				result.errorf(typeName, field, "@authorization where key %q must be node, jwt, AND, OR or NOT", key)
			}
		}
	}
}

func validateAuthentication(result *Result, typeName, field string, auth *schema.Authentication) {
	if auth == nil {
		return
	}
	for _, op := range auth.Operations {
		if !schema.IsKnownOperation(op) {
			result.errorf(typeName, field, "@authentication unknown operation %s", op)
		}
	}
}

func validateLimit(result *Result, typeName string, limit *schema.Limit) {
	if limit == nil {
		return
	}
	if limit.Default < 0 || limit.Max < 0 {
		result.errorf(typeName, "", "@limit values must be positive")
	}
	if limit.Default == 0 && limit.Max == 0 {
		result.errorf(typeName, "", "@limit requires default or max")
	}
	if limit.Max > 0 && limit.Default > limit.Max {
		result.errorf(typeName, "", "@limit default %d exceeds max %d", limit.Default, limit.Max)
	}
}
