package cypher

// Statement is a rendered Cypher statement and its parameters.
type Statement struct {
	Cypher string
	Params map[string]any
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	params map[string]any
}

// WithExtraParams merges fixed parameters into the statement's parameter map.
// Generated names win on collision.
func WithExtraParams(params map[string]any) BuildOption {
	return func(o *buildOptions) {
		o.params = params
	}
}

// Build renders clause in a fresh Environment. Variables and parameters are
// named in the order they are first encountered.
func Build(clause Clause, opts ...BuildOption) Statement {
	options := buildOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	env := NewEnvironment()
	text := clause.Render(env)
	params := env.Params()
	for k, v := range options.params {
		if _, exists := params[k]; !exists {
			params[k] = v
		}
	}
	return Statement{Cypher: text, Params: params}
}
