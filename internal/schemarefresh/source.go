package schemarefresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Source supplies the type definitions a snapshot is built from.
type Source interface {
	Load(ctx context.Context) (string, error)
	// Describe names the source in logs.
	Describe() string
}

// FileSource reads type definitions from a file on every load.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read type definitions: %w", err)
	}
	return string(data), nil
}

// Describe implements Source.
func (s FileSource) Describe() string { return s.Path }

// StaticSource serves fixed type definitions.
type StaticSource string

// Load implements Source.
func (s StaticSource) Load(_ context.Context) (string, error) { return string(s), nil }

// Describe implements Source.
func (s StaticSource) Describe() string { return "static" }

// Fingerprint identifies a set of type definitions.
func Fingerprint(typeDefs string) string {
	sum := sha256.Sum256([]byte(typeDefs))
	return hex.EncodeToString(sum[:])
}
