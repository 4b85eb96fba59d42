package cypher

// Variable is a Cypher variable. Unnamed variables receive a generated name
// the first time they are rendered.
type Variable struct {
	prefix string
	name   string
}

// NewVariable returns a fresh generated variable ("var0", "var1", ...).
func NewVariable() *Variable {
	return &Variable{prefix: defaultVariablePrefix}
}

// NewPrefixedVariable returns a fresh generated variable using prefix.
func NewPrefixedVariable(prefix string) *Variable {
	return &Variable{prefix: prefix}
}

// NamedVariable returns a variable with a fixed name. The caller is
// responsible for keeping fixed names unique within their scope.
func NamedVariable(name string) *Variable {
	return &Variable{name: name}
}

// Cypher renders the variable name.
func (v *Variable) Cypher(env *Environment) string {
	return escapeName(env.variableName(v))
}

// Property returns a property access on the variable.
func (v *Variable) Property(path ...string) *PropertyRef {
	return Prop(v, path...)
}

// Node is a node variable with the labels it is matched against.
type Node struct {
	*Variable
	Labels []string
}

// NewNode returns a fresh node variable ("this0", "this1", ...).
func NewNode(labels ...string) *Node {
	return &Node{Variable: &Variable{prefix: nodeVariablePrefix}, Labels: labels}
}

// NamedNode returns a node variable with a fixed name.
func NamedNode(name string, labels ...string) *Node {
	return &Node{Variable: NamedVariable(name), Labels: labels}
}

// NodeFrom returns a node view over an existing variable, typically one bound
// by UNWIND or WITH ... AS.
func NodeFrom(v *Variable, labels ...string) *Node {
	return &Node{Variable: v, Labels: labels}
}

// Relationship is a relationship variable with its type.
type Relationship struct {
	*Variable
	Type string
}

// NewRelationship returns a fresh relationship variable.
func NewRelationship(relType string) *Relationship {
	return &Relationship{Variable: &Variable{prefix: nodeVariablePrefix}, Type: relType}
}

// Param is a statement parameter. Every Param is named independently, even
// when two params hold equal values.
type Param struct {
	value any
}

// NewParam binds value to a fresh parameter.
func NewParam(value any) *Param {
	return &Param{value: value}
}

// Value returns the bound value.
func (p *Param) Value() any {
	return p.value
}

// Cypher renders the "$paramN" placeholder.
func (p *Param) Cypher(env *Environment) string {
	return "$" + env.paramName(p)
}

// Property returns a property access on the parameter.
func (p *Param) Property(path ...string) *PropertyRef {
	return Prop(p, path...)
}

// NamedParam is a parameter with a fixed name, such as $jwt.
type NamedParam struct {
	name     string
	value    any
	hasValue bool
}

// NewNamedParam returns a named parameter bound to value.
func NewNamedParam(name string, value any) *NamedParam {
	return &NamedParam{name: name, value: value, hasValue: true}
}

// ParamRef references a named parameter without binding a value.
func ParamRef(name string) *NamedParam {
	return &NamedParam{name: name}
}

// Name returns the parameter name without the leading "$".
func (p *NamedParam) Name() string {
	return p.name
}

// Cypher renders the "$name" placeholder and binds the value if present.
func (p *NamedParam) Cypher(env *Environment) string {
	if p.hasValue {
		env.bindNamed(p.name, p.value)
	}
	return "$" + escapeName(p.name)
}

// Property returns a property access on the parameter.
func (p *NamedParam) Property(path ...string) *PropertyRef {
	return Prop(p, path...)
}
