package cursor

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Roundtrip(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 99, 12345, 1 << 30} {
		got, err := DecodeOffset(EncodeOffset(n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestEncodeOffset_Format(t *testing.T) {
	assert.Equal(t, "YXJyYXljb25uZWN0aW9uOjA=", EncodeOffset(0))
}

func TestDecodeOffset_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not base64", "%%%"},
		{"wrong prefix", base64.StdEncoding.EncodeToString([]byte("cursor:1"))},
		{"not a number", base64.StdEncoding.EncodeToString([]byte("arrayconnection:x"))},
		{"negative", base64.StdEncoding.EncodeToString([]byte("arrayconnection:-1"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOffset(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestStartAfter(t *testing.T) {
	start, err := StartAfter("")
	require.NoError(t, err)
	assert.Equal(t, 0, start)

	start, err = StartAfter(EncodeOffset(4))
	require.NoError(t, err)
	assert.Equal(t, 5, start)
}

func TestPageIsContiguous(t *testing.T) {
	// first: 3 over 7 edges, then after the end cursor.
	firstCursors, first := Page(0, 3, 7)
	require.Len(t, firstCursors, 3)
	assert.False(t, first.HasPreviousPage)
	assert.True(t, first.HasNextPage)

	next, err := StartAfter(first.EndCursor)
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	secondCursors, second := Page(next, 3, 7)
	assert.Equal(t, EncodeOffset(3), secondCursors[0])
	assert.True(t, second.HasPreviousPage)
	assert.True(t, second.HasNextPage)

	_, last := Page(6, 1, 7)
	assert.False(t, last.HasNextPage)

	_, empty := Page(7, 0, 7)
	assert.Empty(t, empty.StartCursor)
	assert.Empty(t, empty.EndCursor)
}
