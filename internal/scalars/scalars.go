// Package scalars converts values across the GraphQL/driver boundary:
// input coercion into statement parameters and serialization of returned
// driver values into JSON-able response values.
package scalars

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Int is the graph engine's native 64-bit integer split into two 32-bit halves.
type Int struct {
	Low  int32 `json:"low"`
	High int32 `json:"high"`
}

// IntFromInt64 splits n into its halves.
func IntFromInt64(n int64) Int {
	return Int{Low: int32(uint32(n)), High: int32(n >> 32)}
}

// Int64 joins the halves.
func (i Int) Int64() int64 {
	return int64(i.High)<<32 | int64(uint32(i.Low))
}

func intFromMap(m map[string]any) (int64, bool) {
	low, okLow := toInt64(m["low"])
	high, okHigh := toInt64(m["high"])
	if !okLow || !okHigh || len(m) != 2 {
		return 0, false
	}
	return Int{Low: int32(low), High: int32(high)}.Int64(), true
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		return parsed, err == nil
	case map[string]any:
		return intFromMap(v)
	}
	return 0, false
}

// BigInt is a 64-bit integer serialized as a string.
func BigInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "BigInt",
		Description: "64-bit integer value serialized as a string.",
		Serialize: func(value interface{}) interface{} {
			if n, ok := toInt64(value); ok {
				return strconv.FormatInt(n, 10)
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if n, ok := toInt64(value); ok {
				return n
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.IntValue:
				if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
					return n
				}
			case *ast.StringValue:
				if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
					return n
				}
			}
			return nil
		},
	})
}

func temporalScalar(name, description string, parse func(any) (any, bool)) *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        name,
		Description: description,
		Serialize: func(value interface{}) interface{} {
			return Serialize(value)
		},
		ParseValue: func(value interface{}) interface{} {
			if parsed, ok := parse(value); ok {
				return parsed
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				if parsed, ok := parse(sv.Value); ok {
					return parsed
				}
			}
			return nil
		},
	})
}

// DateTime is a zoned date and time.
func DateTime() *graphql.Scalar {
	return temporalScalar("DateTime", "Zoned date-time serialized as RFC 3339.", parseDateTime)
}

// LocalDateTime is a date and time without zone.
func LocalDateTime() *graphql.Scalar {
	return temporalScalar("LocalDateTime", "Local date-time serialized as YYYY-MM-DDTHH:MM:SS.", parseLocalDateTime)
}

// Date is a calendar date.
func Date() *graphql.Scalar {
	return temporalScalar("Date", "Date value serialized as YYYY-MM-DD.", parseDate)
}

// Time is a time of day with offset.
func Time() *graphql.Scalar {
	return temporalScalar("Time", "Time with offset serialized as HH:MM:SS+HH:MM.", parseTime)
}

// LocalTime is a time of day without offset.
func LocalTime() *graphql.Scalar {
	return temporalScalar("LocalTime", "Local time serialized as HH:MM:SS.", parseLocalTime)
}

// Duration is an ISO 8601 duration.
func Duration() *graphql.Scalar {
	return temporalScalar("Duration", "ISO 8601 duration.", parseDuration)
}

var registry = map[string]*graphql.Scalar{
	"BigInt":        BigInt(),
	"DateTime":      DateTime(),
	"LocalDateTime": LocalDateTime(),
	"Date":          Date(),
	"Time":          Time(),
	"LocalTime":     LocalTime(),
	"Duration":      Duration(),
}

// Lookup returns the custom scalar with the given name.
func Lookup(name string) (*graphql.Scalar, bool) {
	s, ok := registry[name]
	return s, ok
}

// Coerce converts a GraphQL input value of the named type into a statement
// parameter value. Lists are coerced element-wise. Unknown type names
// (enums, user scalars) pass through unchanged.
func Coerce(typeName string, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			coerced, err := Coerce(typeName, item)
			if err != nil {
				return nil, err
			}
			out[i] = coerced
		}
		return out, nil
	}

	switch typeName {
	case "Int":
		if n, ok := toInt64(value); ok {
			return n, nil
		}
	case "Float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		}
	case "String":
		if s, ok := value.(string); ok {
			return s, nil
		}
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
	default:
		scalar, ok := registry[typeName]
		if !ok {
			return value, nil
		}
		if parsed := scalar.ParseValue(value); parsed != nil {
			return parsed, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %T to %s", value, typeName)
}

// Serialize converts a driver value into a JSON-able response value.
func Serialize(value any) any {
	switch v := value.(type) {
	case dbtype.Date:
		return time.Time(v).Format("2006-01-02")
	case dbtype.LocalTime:
		return time.Time(v).Format("15:04:05.999999999")
	case dbtype.Time:
		return time.Time(v).Format("15:04:05.999999999Z07:00")
	case dbtype.LocalDateTime:
		return time.Time(v).Format("2006-01-02T15:04:05.999999999")
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case dbtype.Duration:
		return v.String()
	case dbtype.Node:
		return serializeMap(v.Props)
	case dbtype.Relationship:
		return serializeMap(v.Props)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Serialize(item)
		}
		return out
	case map[string]any:
		return serializeMap(v)
	default:
		return value
	}
}

func serializeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Serialize(v)
	}
	return out
}
