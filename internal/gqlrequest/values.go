package gqlrequest

import (
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
)

// ValueFromAST converts a literal argument value into plain Go values:
// map[string]any, []any, string, bool, int64 and float64. Variables are
// substituted from vars; unbound variables become nil.
func ValueFromAST(value ast.Value, vars map[string]any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case *ast.Variable:
		if v.Name == nil {
			return nil
		}
		return vars[v.Name.Value]
	case *ast.IntValue:
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			f, _ := strconv.ParseFloat(v.Value, 64)
			return f
		}
		return n
	case *ast.FloatValue:
		f, _ := strconv.ParseFloat(v.Value, 64)
		return f
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.EnumValue:
		return v.Value
	case *ast.ListValue:
		out := make([]any, 0, len(v.Values))
		for _, item := range v.Values {
			out = append(out, ValueFromAST(item, vars))
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]any, len(v.Fields))
		for _, field := range v.Fields {
			if field == nil || field.Name == nil {
				continue
			}
			out[field.Name.Value] = ValueFromAST(field.Value, vars)
		}
		return out
	default:
		return value.GetValue()
	}
}

// ArgumentValues converts field arguments into a map keyed by argument name.
func ArgumentValues(args []*ast.Argument, vars map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		if arg == nil || arg.Name == nil {
			continue
		}
		out[arg.Name.Value] = ValueFromAST(arg.Value, vars)
	}
	return out
}
