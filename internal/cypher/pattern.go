package cypher

import "strings"

// Direction is the direction of a relationship hop, relative to the node
// on its left.
type Direction int

const (
	// Outgoing renders (a)-[r]->(b).
	Outgoing Direction = iota
	// Incoming renders (a)<-[r]-(b).
	Incoming
	// Undirected renders (a)-[r]-(b).
	Undirected
)

// NodeElement is one node position in a pattern.
type NodeElement struct {
	node   *Node
	labels []string
	props  *Map
}

// Labeled renders the node with its labels: (this0:Movie).
func Labeled(n *Node) NodeElement {
	return NodeElement{node: n, labels: n.Labels}
}

// Bound renders an already-bound node without labels: (this0).
func Bound(n *Node) NodeElement {
	return NodeElement{node: n}
}

// Anonymous renders a node without a variable: (:Movie).
func Anonymous(labels ...string) NodeElement {
	return NodeElement{labels: labels}
}

// WithProperties attaches an inline property map.
func (e NodeElement) WithProperties(props *Map) NodeElement {
	e.props = props
	return e
}

func (e NodeElement) render(env *Environment) string {
	var b strings.Builder
	b.WriteByte('(')
	if e.node != nil {
		b.WriteString(e.node.Cypher(env))
	}
	b.WriteString(renderLabels(e.labels))
	if e.props != nil && e.props.Len() > 0 {
		b.WriteByte(' ')
		b.WriteString(e.props.Cypher(env))
	}
	b.WriteByte(')')
	return b.String()
}

type hop struct {
	rel       *Relationship
	relType   string
	direction Direction
	props     *Map
	to        NodeElement
}

// Pattern is a path pattern: a node followed by zero or more relationship hops.
type Pattern struct {
	start NodeElement
	hops  []hop
}

// NewPattern starts a pattern at start.
func NewPattern(start NodeElement) *Pattern {
	return &Pattern{start: start}
}

// Related appends a hop through rel. A nil rel renders an anonymous
// relationship of relType.
func (p *Pattern) Related(rel *Relationship, relType string, direction Direction, to NodeElement) *Pattern {
	if rel != nil && relType == "" {
		relType = rel.Type
	}
	p.hops = append(p.hops, hop{rel: rel, relType: relType, direction: direction, to: to})
	return p
}

// RelatedWithProperties appends a hop whose relationship carries inline properties.
func (p *Pattern) RelatedWithProperties(rel *Relationship, direction Direction, props *Map, to NodeElement) *Pattern {
	p.hops = append(p.hops, hop{rel: rel, relType: rel.Type, direction: direction, props: props, to: to})
	return p
}

// Cypher renders the pattern.
func (p *Pattern) Cypher(env *Environment) string {
	var b strings.Builder
	b.WriteString(p.start.render(env))
	for _, h := range p.hops {
		inner := "["
		if h.rel != nil {
			inner += h.rel.Cypher(env)
		}
		if h.relType != "" {
			inner += ":" + escapeName(h.relType)
		}
		if h.props != nil && h.props.Len() > 0 {
			inner += " " + h.props.Cypher(env)
		}
		inner += "]"
		switch h.direction {
		case Outgoing:
			b.WriteString("-" + inner + "->")
		case Incoming:
			b.WriteString("<-" + inner + "-")
		default:
			b.WriteString("-" + inner + "-")
		}
		b.WriteString(h.to.render(env))
	}
	return b.String()
}
