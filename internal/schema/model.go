// Package schema holds the compiled, read-only model of the GraphQL type
// definitions: node types with their labels, fields, relationships and
// authorization rules. A Schema is built once by Compile and then shared by
// every translation without further mutation.
package schema

import (
	"sort"

	"neo4j-graphql/internal/naming"
)

// Direction is a declared relationship direction.
type Direction string

const (
	DirectionOut        Direction = "OUT"
	DirectionIn         Direction = "IN"
	DirectionUndirected Direction = "UNDIRECTED"
)

// Operation names an operation authorization rules can apply to.
type Operation string

const (
	OpRead               Operation = "READ"
	OpAggregate          Operation = "AGGREGATE"
	OpCreate             Operation = "CREATE"
	OpUpdate             Operation = "UPDATE"
	OpDelete             Operation = "DELETE"
	OpCreateRelationship Operation = "CREATE_RELATIONSHIP"
	OpDeleteRelationship Operation = "DELETE_RELATIONSHIP"
	OpSubscribe          Operation = "SUBSCRIBE"
)

// AllOperations lists every operation, the default for rules that do not
// declare their own.
var AllOperations = []Operation{
	OpRead, OpAggregate, OpCreate, OpUpdate, OpDelete,
	OpCreateRelationship, OpDeleteRelationship, OpSubscribe,
}

// When is the timing of a validate rule relative to the mutating clause.
type When string

const (
	Before When = "BEFORE"
	After  When = "AFTER"
)

// RuleKind distinguishes validate rules from filter rules.
type RuleKind int

const (
	// RuleFilter silently excludes rows that do not satisfy the rule.
	RuleFilter RuleKind = iota
	// RuleValidate fails the whole statement when the rule does not hold.
	RuleValidate
)

// AuthorizationRule is one entry of an @authorization directive.
type AuthorizationRule struct {
	Kind                  RuleKind
	Operations            []Operation
	When                  []When
	RequireAuthentication bool
	// Where is the raw rule predicate: {node, jwt, AND, OR, NOT}.
	Where map[string]any
}

// AppliesTo reports whether the rule covers op.
func (r AuthorizationRule) AppliesTo(op Operation) bool {
	for _, o := range r.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// AppliesWhen reports whether the rule runs at timing w.
func (r AuthorizationRule) AppliesWhen(w When) bool {
	for _, x := range r.When {
		if x == w {
			return true
		}
	}
	return false
}

// Authorization is the parsed @authorization directive.
type Authorization struct {
	Filter   []AuthorizationRule
	Validate []AuthorizationRule
}

// Authentication is the parsed @authentication directive.
type Authentication struct {
	Operations []Operation
	// JWT optionally constrains the claims, using the same operators as
	// authorization jwt filters.
	JWT map[string]any
}

// Requires reports whether op needs an authenticated principal.
func (a *Authentication) Requires(op Operation) bool {
	if a == nil {
		return false
	}
	for _, o := range a.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// TypeRef is a GraphQL type reference.
type TypeRef struct {
	Name        string
	List        bool
	NonNull     bool
	ElemNonNull bool
}

// FieldKind classifies a field for translation.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindEnum
	KindTemporal
	KindRelationship
	KindCypher
)

// Relationship is the metadata of a @relationship field.
type Relationship struct {
	Type       string
	Direction  Direction
	Target     string
	Properties string
}

// CypherStatement is the metadata of a @cypher field.
type CypherStatement struct {
	Statement  string
	ColumnName string
}

// Limit is the parsed @limit directive. Zero means unset.
type Limit struct {
	Default int
	Max     int
}

// Field is one field of a node, interface or relationship properties type.
type Field struct {
	Name     string
	Type     TypeRef
	Kind     FieldKind
	Property string

	Coalesce    any
	HasCoalesce bool
	Default     any
	HasDefault  bool

	ID         bool
	Unique     bool
	Timestamps []Operation

	Relationship   *Relationship
	Cypher         *CypherStatement
	Authorization  *Authorization
	Authentication *Authentication
}

// IsList reports whether the field holds a list.
func (f *Field) IsList() bool { return f.Type.List }

// Required reports whether the field is non-null.
func (f *Field) Required() bool { return f.Type.NonNull }

// Entity is anything with fields that can be filtered on: node types,
// interfaces and relationship properties types.
type Entity interface {
	TypeName() string
	Field(name string) *Field
	Fields() []*Field
}

type fieldSet struct {
	fields []*Field
	byName map[string]*Field
}

func newFieldSet(fields []*Field) fieldSet {
	byName := make(map[string]*Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	return fieldSet{fields: fields, byName: byName}
}

// Field returns the named field or nil.
func (s fieldSet) Field(name string) *Field { return s.byName[name] }

// Fields returns the fields in declaration order.
func (s fieldSet) Fields() []*Field { return s.fields }

// Node is a compiled object type backed by graph label(s).
type Node struct {
	fieldSet
	Name           string
	Labels         []string
	Interfaces     []string
	Authorization  *Authorization
	Authentication *Authentication
	Limit          *Limit
	Root           naming.RootNames
}

// TypeName returns the GraphQL type name.
func (n *Node) TypeName() string { return n.Name }

// RelationshipFields returns the relationship fields in declaration order.
func (n *Node) RelationshipFields() []*Field {
	var out []*Field
	for _, f := range n.fields {
		if f.Kind == KindRelationship {
			out = append(out, f)
		}
	}
	return out
}

// Interface is a compiled GraphQL interface implemented by node types.
type Interface struct {
	fieldSet
	Name            string
	Implementations []string
	Authorization   *Authorization
	Limit           *Limit
	Root            naming.RootNames
}

// TypeName returns the GraphQL type name.
func (i *Interface) TypeName() string { return i.Name }

// Union is a compiled GraphQL union of node types.
type Union struct {
	Name    string
	Members []string
}

// RelationshipProperties is a @relationshipProperties type.
type RelationshipProperties struct {
	fieldSet
	Name string
}

// TypeName returns the GraphQL type name.
func (r *RelationshipProperties) TypeName() string { return r.Name }

// RootKind classifies a generated root field.
type RootKind int

const (
	RootList RootKind = iota
	RootConnection
	RootAggregate
	RootCreate
	RootUpdate
	RootDelete
)

// RootField is a generated Query or Mutation field.
type RootField struct {
	Kind RootKind
	// Type is the node or interface the field operates on.
	Type string
}

// Schema is the compiled model.
type Schema struct {
	nodes      map[string]*Node
	nodeOrder  []string
	interfaces map[string]*Interface
	ifaceOrder []string
	unions     map[string]*Union
	relProps   map[string]*RelationshipProperties
	enums      map[string][]string
	scalars    map[string]bool

	queries   map[string]RootField
	mutations map[string]RootField
}

// Node returns the named node type or nil.
func (s *Schema) Node(name string) *Node { return s.nodes[name] }

// Nodes returns every node type in declaration order.
func (s *Schema) Nodes() []*Node {
	out := make([]*Node, len(s.nodeOrder))
	for i, name := range s.nodeOrder {
		out[i] = s.nodes[name]
	}
	return out
}

// Interface returns the named interface or nil.
func (s *Schema) Interface(name string) *Interface { return s.interfaces[name] }

// Interfaces returns every interface in declaration order.
func (s *Schema) Interfaces() []*Interface {
	out := make([]*Interface, len(s.ifaceOrder))
	for i, name := range s.ifaceOrder {
		out[i] = s.interfaces[name]
	}
	return out
}

// Union returns the named union or nil.
func (s *Schema) Union(name string) *Union { return s.unions[name] }

// RelationshipProperties returns the named properties type or nil.
func (s *Schema) RelationshipProperties(name string) *RelationshipProperties {
	return s.relProps[name]
}

// Entity returns the node or interface with the given name.
func (s *Schema) Entity(name string) Entity {
	if n, ok := s.nodes[name]; ok {
		return n
	}
	if i, ok := s.interfaces[name]; ok {
		return i
	}
	return nil
}

// IsAbstract reports whether name is an interface or union.
func (s *Schema) IsAbstract(name string) bool {
	_, isInterface := s.interfaces[name]
	_, isUnion := s.unions[name]
	return isInterface || isUnion
}

// ConcreteTypes returns the node types behind name: the node itself, the
// implementations of an interface, or the members of a union.
func (s *Schema) ConcreteTypes(name string) []*Node {
	if n, ok := s.nodes[name]; ok {
		return []*Node{n}
	}
	var names []string
	if i, ok := s.interfaces[name]; ok {
		names = i.Implementations
	} else if u, ok := s.unions[name]; ok {
		names = u.Members
	}
	out := make([]*Node, 0, len(names))
	for _, n := range names {
		if node, ok := s.nodes[n]; ok {
			out = append(out, node)
		}
	}
	return out
}

// Labels returns the graph labels declared for a type name.
func (s *Schema) Labels(name string) []string {
	if n, ok := s.nodes[name]; ok {
		return n.Labels
	}
	return nil
}

// EnumValues returns the values of a declared enum.
func (s *Schema) EnumValues(name string) ([]string, bool) {
	values, ok := s.enums[name]
	return values, ok
}

// QueryField resolves a generated Query field name.
func (s *Schema) QueryField(name string) (RootField, bool) {
	f, ok := s.queries[name]
	return f, ok
}

// MutationField resolves a generated Mutation field name.
func (s *Schema) MutationField(name string) (RootField, bool) {
	f, ok := s.mutations[name]
	return f, ok
}

// QueryFieldNames returns the generated Query field names, sorted.
func (s *Schema) QueryFieldNames() []string {
	return sortedKeys(s.queries)
}

// MutationFieldNames returns the generated Mutation field names, sorted.
func (s *Schema) MutationFieldNames() []string {
	return sortedKeys(s.mutations)
}

func sortedKeys(m map[string]RootField) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
