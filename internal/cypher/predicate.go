package cypher

import "strings"

type binary struct {
	left  Expr
	op    string
	right Expr
}

func (b *binary) Cypher(env *Environment) string {
	return b.left.Cypher(env) + " " + b.op + " " + b.right.Cypher(env)
}

// Eq renders left = right.
func Eq(left, right Expr) Expr { return &binary{left, "=", right} }

// Neq renders left <> right.
func Neq(left, right Expr) Expr { return &binary{left, "<>", right} }

// Gt renders left > right.
func Gt(left, right Expr) Expr { return &binary{left, ">", right} }

// Gte renders left >= right.
func Gte(left, right Expr) Expr { return &binary{left, ">=", right} }

// Lt renders left < right.
func Lt(left, right Expr) Expr { return &binary{left, "<", right} }

// Lte renders left <= right.
func Lte(left, right Expr) Expr { return &binary{left, "<=", right} }

// In renders left IN right.
func In(left, right Expr) Expr { return &binary{left, "IN", right} }

// Contains renders left CONTAINS right.
func Contains(left, right Expr) Expr { return &binary{left, "CONTAINS", right} }

// StartsWith renders left STARTS WITH right.
func StartsWith(left, right Expr) Expr { return &binary{left, "STARTS WITH", right} }

// EndsWith renders left ENDS WITH right.
func EndsWith(left, right Expr) Expr { return &binary{left, "ENDS WITH", right} }

// Matches renders left =~ right.
func Matches(left, right Expr) Expr { return &binary{left, "=~", right} }

type postfix struct {
	expr Expr
	op   string
}

func (p *postfix) Cypher(env *Environment) string {
	return p.expr.Cypher(env) + " " + p.op
}

// IsNull renders expr IS NULL.
func IsNull(expr Expr) Expr { return &postfix{expr, "IS NULL"} }

// IsNotNull renders expr IS NOT NULL.
func IsNotNull(expr Expr) Expr { return &postfix{expr, "IS NOT NULL"} }

type junction struct {
	op    string
	exprs []Expr
}

func (j *junction) Cypher(env *Environment) string {
	parts := make([]string, len(j.exprs))
	for i, e := range j.exprs {
		parts[i] = e.Cypher(env)
	}
	return "(" + strings.Join(parts, " "+j.op+" ") + ")"
}

// And combines predicates with AND. Nil predicates are dropped; zero
// remaining predicates yield nil and a single one is returned unwrapped.
func And(preds ...Expr) Expr {
	return combine("AND", preds)
}

// Or combines predicates with OR using the same rules as And.
func Or(preds ...Expr) Expr {
	return combine("OR", preds)
}

func combine(op string, preds []Expr) Expr {
	kept := make([]Expr, 0, len(preds))
	for _, p := range preds {
		if p == nil {
			continue
		}
		if j, ok := p.(*junction); ok && j.op == op {
			kept = append(kept, j.exprs...)
			continue
		}
		kept = append(kept, p)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return &junction{op: op, exprs: kept}
	}
}

type negation struct {
	expr Expr
}

func (n *negation) Cypher(env *Environment) string {
	return "NOT (" + n.expr.Cypher(env) + ")"
}

// Not negates pred. Not(nil) is nil.
func Not(pred Expr) Expr {
	if pred == nil {
		return nil
	}
	return &negation{expr: pred}
}

type hasLabels struct {
	node   *Node
	labels []string
}

func (h *hasLabels) Cypher(env *Environment) string {
	return h.node.Cypher(env) + renderLabels(h.labels)
}

// HasLabels renders node:Label1:Label2.
func HasLabels(node *Node, labels ...string) Expr {
	return &hasLabels{node: node, labels: labels}
}

// Subquery is an EXISTS { ... } or COUNT { ... } expression.
type Subquery struct {
	keyword string
	body    Clause
}

// Exists returns EXISTS { body }.
func Exists(body Clause) *Subquery {
	return &Subquery{keyword: "EXISTS", body: body}
}

// CountSubquery returns COUNT { body }.
func CountSubquery(body Clause) *Subquery {
	return &Subquery{keyword: "COUNT", body: body}
}

// Cypher renders the subquery expression.
func (s *Subquery) Cypher(env *Environment) string {
	return s.keyword + " {\n" + indent(s.body.Render(env)) + "\n}"
}

// ValidatePredicate renders apoc.util.validatePredicate(pred, message, [0]).
// It evaluates to true unless pred holds, in which case the statement fails
// with message.
func ValidatePredicate(pred Expr, message string) Expr {
	return Fn("apoc.util.validatePredicate", pred, Lit(message), List(Lit(0)))
}
