// Package authz compiles @authorization and @authentication rules into
// predicates. It decides nothing about placement: callers pass the scope the
// predicate is compiled against and insert the result where it belongs.
package authz

import (
	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/schema"
)

// Context is the authentication state of one request.
type Context struct {
	Claims        map[string]any
	Authenticated bool

	// JWT binds the claims as $jwt.
	JWT *cypher.NamedParam
	// IsAuthenticated binds $isAuthenticated.
	IsAuthenticated *cypher.NamedParam
}

// NewContext returns the context for claims. Nil claims mean the request
// is unauthenticated; $jwt is then bound to an empty map.
func NewContext(claims map[string]any) *Context {
	authenticated := claims != nil
	if claims == nil {
		claims = map[string]any{}
	}
	return &Context{
		Claims:          claims,
		Authenticated:   authenticated,
		JWT:             cypher.NewNamedParam("jwt", claims),
		IsAuthenticated: cypher.NewNamedParam("isAuthenticated", authenticated),
	}
}

// Injector compiles rules for one request.
type Injector struct {
	ctx     *Context
	filters *filter.Builder
}

// New returns an injector resolving claims from ctx.
func New(s *schema.Schema, ctx *Context) *Injector {
	if ctx == nil {
		ctx = NewContext(nil)
	}
	return &Injector{ctx: ctx, filters: filter.New(s, ctx.JWT)}
}

// Context returns the request context.
func (i *Injector) Context() *Context { return i.ctx }

// Filters returns the filter builder sharing this injector's $jwt binding.
func (i *Injector) Filters() *filter.Builder { return i.filters }

// Authentication checks an @authentication directive for op. Absent claims
// fail immediately; claim constraints become a statement-time assertion.
func (i *Injector) Authentication(auth *schema.Authentication, op schema.Operation) (cypher.Expr, error) {
	if !auth.Requires(op) {
		return nil, nil
	}
	if !i.ctx.Authenticated {
		return nil, gqlerrors.ErrUnauthenticated
	}
	if len(auth.JWT) == 0 {
		return nil, nil
	}
	pred, err := i.ClaimsWhere(auth.JWT)
	if err != nil || pred == nil {
		return nil, err
	}
	return cypher.ValidatePredicate(cypher.Not(pred), gqlerrors.UnauthenticatedMarker), nil
}

// Filter returns the predicate that hides rows failing the filter rules
// applicable to op. Rules are ORed; a rule requiring authentication only
// passes when $isAuthenticated is true.
func (i *Injector) Filter(scope *filter.Scope, typeName string, auth *schema.Authorization, op schema.Operation) (cypher.Expr, error) {
	if auth == nil {
		return nil, nil
	}
	var rules []schema.AuthorizationRule
	for _, r := range auth.Filter {
		if r.AppliesTo(op) {
			rules = append(rules, r)
		}
	}
	return i.rules(scope, typeName, rules)
}

// Validate returns an assertion failing the statement with the forbidden
// marker when none of the validate rules for op and when holds. When every
// such rule requires authentication and the request has none, it fails
// before any statement is built.
func (i *Injector) Validate(scope *filter.Scope, typeName string, auth *schema.Authorization, op schema.Operation, when schema.When) (cypher.Expr, error) {
	if auth == nil {
		return nil, nil
	}
	var rules []schema.AuthorizationRule
	requireAuth := true
	for _, r := range auth.Validate {
		if r.AppliesTo(op) && r.AppliesWhen(when) {
			rules = append(rules, r)
			requireAuth = requireAuth && r.RequireAuthentication
		}
	}
	if len(rules) == 0 {
		return nil, nil
	}
	if requireAuth && !i.ctx.Authenticated {
		return nil, gqlerrors.ErrUnauthenticated
	}
	pred, err := i.rules(scope, typeName, rules)
	if err != nil || pred == nil {
		return nil, err
	}
	return cypher.ValidatePredicate(cypher.Not(pred), gqlerrors.ForbiddenMarker), nil
}

// Fields checks field-level rules for the named fields only. Fields that are
// not selected or written never contribute a check.
func (i *Injector) Fields(scope *filter.Scope, entity schema.Entity, names []string, op schema.Operation, when schema.When) (cypher.Expr, error) {
	var preds []cypher.Expr
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		f := entity.Field(name)
		if f == nil {
			continue
		}
		authn, err := i.Authentication(f.Authentication, op)
		if err != nil {
			return nil, err
		}
		authz, err := i.Validate(scope, entity.TypeName(), f.Authorization, op, when)
		if err != nil {
			return nil, err
		}
		preds = append(preds, authn, authz)
	}
	return cypher.And(preds...), nil
}

func (i *Injector) rules(scope *filter.Scope, typeName string, rules []schema.AuthorizationRule) (cypher.Expr, error) {
	preds := make([]cypher.Expr, 0, len(rules))
	for _, r := range rules {
		pred, err := i.where(scope, typeName, r.Where)
		if err != nil {
			return nil, err
		}
		if r.RequireAuthentication {
			pred = cypher.And(cypher.Eq(i.ctx.IsAuthenticated, cypher.Lit(true)), pred)
		}
		if pred == nil {
			// A rule without conditions admits everything.
			return nil, nil
		}
		preds = append(preds, pred)
	}
	return cypher.Or(preds...), nil
}

func (i *Injector) where(scope *filter.Scope, typeName string, where map[string]any) (cypher.Expr, error) {
	preds := make([]cypher.Expr, 0, len(where))
	for _, key := range filter.SortedKeys(where) {
		value := where[key]
		var (
			pred cypher.Expr
			err  error
		)
		switch key {
		case "AND", "OR", "NOT":
			pred, err = filter.Combine(key, value, func(m map[string]any) (cypher.Expr, error) {
				return i.where(scope, typeName, m)
			})
		case "node":
			m, ok := value.(map[string]any)
			if !ok {
				return nil, gqlerrors.SchemaMismatch(typeName, "authorization node where must be an object")
			}
			pred, err = i.filters.Where(scope, typeName, m)
		case "jwt":
			m, ok := value.(map[string]any)
			if !ok {
				return nil, gqlerrors.SchemaMismatch(typeName, "authorization jwt where must be an object")
			}
			pred, err = i.ClaimsWhere(m)
		default:
			return nil, gqlerrors.SchemaMismatch(typeName, "unknown authorization where key %s", key)
		}
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return cypher.And(preds...), nil
}
