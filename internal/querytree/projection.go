package querytree

import (
	"fmt"

	"neo4j-graphql/internal/cypher"
)

type projectionField struct {
	key      string
	property string
	expr     cypher.Expr
}

// Projection is the output shape of a tree node. It either holds one value
// expression or a set of named fields, never both. Fields over a nil
// subject render as a plain map.
type Projection struct {
	of     cypher.Expr
	value  cypher.Expr
	fields []projectionField
}

// NewProjection returns an empty projection over of.
func NewProjection(of cypher.Expr) *Projection {
	return &Projection{of: of}
}

// NewMapProjection returns an empty projection rendered as a map literal.
func NewMapProjection() *Projection {
	return &Projection{}
}

// SetValue makes the projection a single value.
func (p *Projection) SetValue(expr cypher.Expr) error {
	if len(p.fields) > 0 || p.value != nil {
		return fmt.Errorf("set value: %w", ErrProjectionKind)
	}
	p.value = expr
	return nil
}

// AddProperty projects a property of the subject under key.
func (p *Projection) AddProperty(key, property string) error {
	if p.of == nil {
		return fmt.Errorf("property %s on a map projection: %w", key, ErrProjectionKind)
	}
	return p.add(projectionField{key: key, property: property})
}

// AddField projects expr under key.
func (p *Projection) AddField(key string, expr cypher.Expr) error {
	return p.add(projectionField{key: key, expr: expr})
}

func (p *Projection) add(f projectionField) error {
	if p.value != nil {
		return fmt.Errorf("field %s: %w", f.key, ErrProjectionKind)
	}
	for i := range p.fields {
		if p.fields[i].key == f.key {
			p.fields[i] = f
			return nil
		}
	}
	p.fields = append(p.fields, f)
	return nil
}

// Has reports whether key is projected.
func (p *Projection) Has(key string) bool {
	for _, f := range p.fields {
		if f.key == key {
			return true
		}
	}
	return false
}

// Keys returns the projected keys in order.
func (p *Projection) Keys() []string {
	keys := make([]string, len(p.fields))
	for i, f := range p.fields {
		keys[i] = f.key
	}
	return keys
}

// Cypher renders the projection.
func (p *Projection) Cypher(env *cypher.Environment) string {
	if p.value != nil {
		return p.value.Cypher(env)
	}
	if p.of == nil {
		m := cypher.NewMap()
		for _, f := range p.fields {
			m.Set(f.key, f.expr)
		}
		return m.Cypher(env)
	}
	mp := cypher.NewMapProjection(p.of)
	for _, f := range p.fields {
		if f.expr != nil {
			mp.Field(f.key, f.expr)
		} else {
			mp.Property(f.key, f.property)
		}
	}
	return mp.Cypher(env)
}
