package scalars

import (
	"math"
	"testing"
	"time"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntHalvesRoundTrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 42, math.MaxInt32 + 1, math.MaxInt64, math.MinInt64, -1 << 40} {
		assert.Equal(t, n, IntFromInt64(n).Int64(), n)
	}
	assert.Equal(t, Int{Low: 0, High: 1}, IntFromInt64(1<<32))
}

func TestBigIntScalar(t *testing.T) {
	scalar := BigInt()

	assert.Equal(t, "9223372036854775807", scalar.Serialize(int64(math.MaxInt64)))
	assert.Equal(t, int64(42), scalar.ParseValue("42"))
	assert.Equal(t, int64(1<<32+5), scalar.ParseValue(map[string]any{"low": int64(5), "high": int64(1)}))
	assert.Nil(t, scalar.ParseValue("not-a-number"))
	assert.Nil(t, scalar.ParseValue(1.5))
	assert.Nil(t, scalar.ParseValue(float64(math.MaxInt64)))
	assert.Equal(t, int64(math.MinInt64), scalar.ParseValue(float64(math.MinInt64)))
	assert.Equal(t, int64(7), scalar.ParseLiteral(&ast.StringValue{Value: "7"}))
}

func TestCoerceBuiltins(t *testing.T) {
	tests := []struct {
		typ   string
		in    any
		want  any
		isErr bool
	}{
		{"Int", int64(3), int64(3), false},
		{"Int", float64(3), int64(3), false},
		{"Int", map[string]any{"low": int64(1), "high": int64(0)}, int64(1), false},
		{"Int", "x", nil, true},
		{"Int", math.Ldexp(1, 63), nil, true},
		{"Float", int64(2), float64(2), false},
		{"String", "a", "a", false},
		{"String", true, nil, true},
		{"ID", int64(12), "12", false},
		{"Boolean", false, false, false},
		{"Genre", "ACTION", "ACTION", false},
	}
	for _, tt := range tests {
		got, err := Coerce(tt.typ, tt.in)
		if tt.isErr {
			assert.Error(t, err, "%s %v", tt.typ, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestCoerceListsAndNull(t *testing.T) {
	got, err := Coerce("Int", []any{int64(1), float64(2)})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, got)

	got, err = Coerce("DateTime", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCoerceTemporal(t *testing.T) {
	dt, err := Coerce("DateTime", "2024-01-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), dt)

	dt, err = Coerce("DateTime", map[string]any{
		"year": int64(2024), "month": int64(1), "day": int64(15),
		"hour": int64(10), "minute": int64(30), "timeZoneOffsetSeconds": int64(3600),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T10:30:00+01:00", dt.(time.Time).Format(time.RFC3339))

	d, err := Coerce("Date", "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, dbtype.Date(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)), d)

	lt, err := Coerce("LocalTime", map[string]any{"hour": int64(9), "minute": int64(5), "second": int64(1), "nanosecond": int64(500)})
	require.NoError(t, err)
	assert.Equal(t, "09:05:01.0000005", Serialize(lt))

	tm, err := Coerce("Time", "12:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, "12:00:00+02:00", Serialize(tm))

	ldt, err := Coerce("LocalDateTime", "2024-01-15T10:30:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T10:30:00", Serialize(ldt))

	_, err = Coerce("Date", "yesterday")
	assert.Error(t, err)
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want dbtype.Duration
	}{
		{"P1Y2M", dbtype.Duration{Months: 14}},
		{"P1W2D", dbtype.Duration{Days: 9}},
		{"PT1H2M3S", dbtype.Duration{Seconds: 3723}},
		{"PT0.5S", dbtype.Duration{Nanos: 500000000}},
		{"-P1D", dbtype.Duration{Days: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseISODuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "P", "PT", "1D", "P1H"} {
		_, err := ParseISODuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestSerialize(t *testing.T) {
	node := dbtype.Node{Labels: []string{"Movie"}, Props: map[string]any{
		"released": dbtype.Date(time.Date(1999, 3, 31, 0, 0, 0, 0, time.UTC)),
	}}
	assert.Equal(t, map[string]any{"released": "1999-03-31"}, Serialize(node))
	assert.Equal(t, []any{"2024-01-15T10:30:00Z"}, Serialize([]any{time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}))
	assert.Equal(t, int64(5), Serialize(int64(5)))
}
