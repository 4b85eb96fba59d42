package schema

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"

	"neo4j-graphql/internal/naming"
)

// TemporalTypes are the scalar names backed by driver temporal values.
var TemporalTypes = map[string]bool{
	"DateTime":      true,
	"LocalDateTime": true,
	"Time":          true,
	"LocalTime":     true,
	"Date":          true,
	"Duration":      true,
}

var builtinScalars = map[string]bool{
	"ID": true, "String": true, "Int": true, "Float": true, "Boolean": true, "BigInt": true,
}

// Option configures Compile.
type Option func(*compileOptions)

type compileOptions struct {
	namer  *naming.Namer
	logger *slog.Logger
}

// WithNamer sets the namer used for root field names.
func WithNamer(n *naming.Namer) Option {
	return func(o *compileOptions) { o.namer = n }
}

// WithLogger sets the logger used for compile warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *compileOptions) { o.logger = l }
}

// Compile parses type definitions and builds the schema model. It performs
// structural checks only; directive semantics are checked by the
// validation package.
func Compile(sdl string, opts ...Option) (*Schema, error) {
	options := compileOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.namer == nil {
		options.namer = naming.New(naming.DefaultConfig(), options.logger)
	}
	options.namer.Reset()

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(sdl),
			Name: "typedefs",
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("parse type definitions: %w", err)
	}

	c := &compiler{
		schema: &Schema{
			nodes:      map[string]*Node{},
			interfaces: map[string]*Interface{},
			unions:     map[string]*Union{},
			relProps:   map[string]*RelationshipProperties{},
			enums:      map[string][]string{},
			scalars:    map[string]bool{},
			queries:    map[string]RootField{},
			mutations:  map[string]RootField{},
		},
		namer:  options.namer,
		logger: options.logger,
	}
	if err := c.compile(doc); err != nil {
		return nil, err
	}
	return c.schema, nil
}

type compiler struct {
	schema *Schema
	namer  *naming.Namer
	logger *slog.Logger

	objects    []*ast.ObjectDefinition
	interfaces []*ast.InterfaceDefinition
	plurals    map[string]string
}

func (c *compiler) compile(doc *ast.Document) error {
	c.plurals = map[string]string{}
	if err := c.collect(doc); err != nil {
		return err
	}
	for _, def := range c.interfaces {
		if err := c.compileInterface(def); err != nil {
			return err
		}
	}
	for _, def := range c.objects {
		if err := c.compileObject(def); err != nil {
			return err
		}
	}
	for _, name := range c.schema.nodeOrder {
		node := c.schema.nodes[name]
		for _, iface := range node.Interfaces {
			if i, ok := c.schema.interfaces[iface]; ok {
				i.Implementations = append(i.Implementations, node.Name)
			}
		}
	}
	c.registerRootFields()
	return nil
}

// collect records every named type first so field kinds can be resolved
// regardless of declaration order.
func (c *compiler) collect(doc *ast.Document) error {
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectDefinition:
			name := d.Name.Value
			switch name {
			case "Query", "Mutation", "Subscription":
				return fmt.Errorf("type %s: custom root types are not supported", name)
			}
			if naming.IsReservedTypeName(name) {
				return fmt.Errorf("type %s: reserved type name", name)
			}
			c.objects = append(c.objects, d)
		case *ast.InterfaceDefinition:
			c.interfaces = append(c.interfaces, d)
		case *ast.UnionDefinition:
			u := &Union{Name: d.Name.Value}
			for _, member := range d.Types {
				u.Members = append(u.Members, member.Name.Value)
			}
			c.schema.unions[u.Name] = u
		case *ast.EnumDefinition:
			values := make([]string, 0, len(d.Values))
			for _, v := range d.Values {
				values = append(values, v.Name.Value)
			}
			c.schema.enums[d.Name.Value] = values
		case *ast.ScalarDefinition:
			c.schema.scalars[d.Name.Value] = true
		case *ast.InputObjectDefinition, *ast.DirectiveDefinition, *ast.SchemaDefinition:
			// Accepted for SDL compatibility; inputs are generated.
		default:
			return fmt.Errorf("unsupported definition %T", def)
		}
	}
	return nil
}

func (c *compiler) compileInterface(def *ast.InterfaceDefinition) error {
	name := def.Name.Value
	fields, err := c.compileFields(name, def.Fields)
	if err != nil {
		return err
	}
	auth, err := parseAuthorization(def.Directives)
	if err != nil {
		return fmt.Errorf("interface %s: %w", name, err)
	}
	c.schema.interfaces[name] = &Interface{
		fieldSet:      newFieldSet(fields),
		Name:          name,
		Authorization: auth,
		Limit:         parseLimit(def.Directives),
	}
	c.schema.ifaceOrder = append(c.schema.ifaceOrder, name)
	if args, ok := findDirective(def.Directives, "plural"); ok {
		c.plurals[name] = args.string("value")
	}
	return nil
}

func (c *compiler) compileObject(def *ast.ObjectDefinition) error {
	name := def.Name.Value
	fields, err := c.compileFields(name, def.Fields)
	if err != nil {
		return err
	}

	if _, ok := findDirective(def.Directives, "relationshipProperties"); ok {
		c.schema.relProps[name] = &RelationshipProperties{fieldSet: newFieldSet(fields), Name: name}
		return nil
	}

	auth, err := parseAuthorization(def.Directives)
	if err != nil {
		return fmt.Errorf("type %s: %w", name, err)
	}
	node := &Node{
		fieldSet:       newFieldSet(fields),
		Name:           name,
		Labels:         []string{name},
		Authorization:  auth,
		Authentication: parseAuthentication(def.Directives),
		Limit:          parseLimit(def.Directives),
	}
	if args, ok := findDirective(def.Directives, "node"); ok {
		if labels := args.strings("labels"); len(labels) > 0 {
			node.Labels = labels
		}
	}
	if args, ok := findDirective(def.Directives, "plural"); ok {
		c.plurals[name] = args.string("value")
	}
	for _, iface := range def.Interfaces {
		node.Interfaces = append(node.Interfaces, iface.Name.Value)
	}
	c.schema.nodes[name] = node
	c.schema.nodeOrder = append(c.schema.nodeOrder, name)
	return nil
}

func (c *compiler) compileFields(typeName string, defs []*ast.FieldDefinition) ([]*Field, error) {
	fields := make([]*Field, 0, len(defs))
	for _, def := range defs {
		f, err := c.compileField(def)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typeName, def.Name.Value, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (c *compiler) compileField(def *ast.FieldDefinition) (*Field, error) {
	f := &Field{
		Name:     def.Name.Value,
		Type:     typeRef(def.Type),
		Property: def.Name.Value,
	}

	if args, ok := findDirective(def.Directives, "alias"); ok {
		f.Property = args.string("property")
	}
	if args, ok := findDirective(def.Directives, "coalesce"); ok && args.has("value") {
		f.Coalesce, f.HasCoalesce = args["value"], true
	}
	if args, ok := findDirective(def.Directives, "default"); ok && args.has("value") {
		f.Default, f.HasDefault = args["value"], true
	}
	if args, ok := findDirective(def.Directives, "id"); ok {
		f.ID = args.bool("autogenerate", true)
		f.Unique = true
	}
	if _, ok := findDirective(def.Directives, "unique"); ok {
		f.Unique = true
	}
	if args, ok := findDirective(def.Directives, "timestamp"); ok {
		f.Timestamps = parseOperations(args.strings("operations"), []Operation{OpCreate, OpUpdate})
	}

	auth, err := parseAuthorization(def.Directives)
	if err != nil {
		return nil, err
	}
	f.Authorization = auth
	f.Authentication = parseAuthentication(def.Directives)

	if args, ok := findDirective(def.Directives, "relationship"); ok {
		f.Kind = KindRelationship
		f.Relationship = &Relationship{
			Type:       args.string("type"),
			Direction:  Direction(strings.ToUpper(args.string("direction"))),
			Target:     f.Type.Name,
			Properties: args.string("properties"),
		}
		return f, nil
	}
	if args, ok := findDirective(def.Directives, "cypher"); ok {
		f.Kind = KindCypher
		f.Cypher = &CypherStatement{
			Statement:  args.string("statement"),
			ColumnName: args.string("columnName"),
		}
		return f, nil
	}

	switch {
	case TemporalTypes[f.Type.Name]:
		f.Kind = KindTemporal
	case c.isEnum(f.Type.Name):
		f.Kind = KindEnum
	case builtinScalars[f.Type.Name] || c.schema.scalars[f.Type.Name]:
		f.Kind = KindScalar
	default:
		return nil, fmt.Errorf("object type %s requires @relationship or @cypher", f.Type.Name)
	}
	return f, nil
}

func (c *compiler) isEnum(name string) bool {
	_, ok := c.schema.enums[name]
	return ok
}

func (c *compiler) registerRootFields() {
	for _, name := range c.schema.nodeOrder {
		node := c.schema.nodes[name]
		node.Root = c.namer.RootNames(name, c.plurals[name])
		c.schema.queries[node.Root.List] = RootField{Kind: RootList, Type: name}
		c.schema.queries[node.Root.Connection] = RootField{Kind: RootConnection, Type: name}
		c.schema.queries[node.Root.Aggregate] = RootField{Kind: RootAggregate, Type: name}
		c.schema.mutations[node.Root.Create] = RootField{Kind: RootCreate, Type: name}
		c.schema.mutations[node.Root.Update] = RootField{Kind: RootUpdate, Type: name}
		c.schema.mutations[node.Root.Delete] = RootField{Kind: RootDelete, Type: name}
	}
	for _, iface := range c.schema.Interfaces() {
		iface.Root = c.namer.RootNames(iface.Name, c.plurals[iface.Name])
		c.schema.queries[iface.Root.List] = RootField{Kind: RootList, Type: iface.Name}
		c.schema.queries[iface.Root.Connection] = RootField{Kind: RootConnection, Type: iface.Name}
		c.schema.queries[iface.Root.Aggregate] = RootField{Kind: RootAggregate, Type: iface.Name}
	}
	c.logger.Debug("schema compiled",
		slog.Int("nodes", len(c.schema.nodes)),
		slog.Int("interfaces", len(c.schema.interfaces)),
		slog.Int("query_fields", len(c.schema.queries)),
		slog.Int("mutation_fields", len(c.schema.mutations)),
	)
}

func typeRef(t ast.Type) TypeRef {
	ref := TypeRef{}
	if nn, ok := t.(*ast.NonNull); ok {
		ref.NonNull = true
		t = nn.Type
	}
	if list, ok := t.(*ast.List); ok {
		ref.List = true
		t = list.Type
		if nn, ok := t.(*ast.NonNull); ok {
			ref.ElemNonNull = true
			t = nn.Type
		}
	}
	if named, ok := t.(*ast.Named); ok && named.Name != nil {
		ref.Name = named.Name.Value
	}
	return ref
}
