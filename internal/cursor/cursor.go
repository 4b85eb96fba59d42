// Package cursor encodes and decodes Relay-style connection cursors.
// Cursors are opaque base64 strings wrapping a zero-based offset into the
// sorted, collected edge list of a connection.
package cursor

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const prefix = "arrayconnection:"

// EncodeOffset builds an opaque cursor for the edge at offset.
func EncodeOffset(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(prefix + strconv.Itoa(offset)))
}

// DecodeOffset parses a cursor produced by EncodeOffset.
func DecodeOffset(raw string) (int, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}
	value, ok := strings.CutPrefix(string(data), prefix)
	if !ok {
		return 0, fmt.Errorf("invalid cursor format: expected offset cursor")
	}
	offset, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor offset: %w", err)
	}
	if offset < 0 {
		return 0, fmt.Errorf("invalid cursor: negative offset %d", offset)
	}
	return offset, nil
}

// StartAfter returns the offset of the first edge following the cursor.
// An empty cursor starts at zero.
func StartAfter(after string) (int, error) {
	if after == "" {
		return 0, nil
	}
	offset, err := DecodeOffset(after)
	if err != nil {
		return 0, err
	}
	return offset + 1, nil
}

// PageInfo describes one page of a connection.
type PageInfo struct {
	StartCursor     string
	EndCursor       string
	HasNextPage     bool
	HasPreviousPage bool
}

// Page computes cursors and page info for count edges starting at offset,
// out of totalCount edges overall.
func Page(offset, count, totalCount int) ([]string, PageInfo) {
	cursors := make([]string, count)
	for i := range cursors {
		cursors[i] = EncodeOffset(offset + i)
	}
	info := PageInfo{
		HasPreviousPage: offset > 0,
		HasNextPage:     offset+count < totalCount,
	}
	if count > 0 {
		info.StartCursor = cursors[0]
		info.EndCursor = cursors[count-1]
	}
	return cursors, info
}
