package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// canonicalize prints the operation followed by the fragments it spreads,
// in name order, and hashes the result together with the operation name.
// Printing drops comments and normalizes whitespace, so equivalent
// documents share a hash.
func canonicalize(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition, spread []string) (string, string, error) {
	definitions := []ast.Node{op}
	for _, name := range spread {
		fragment := fragments[name]
		if fragment == nil {
			return "", "", fmt.Errorf("fragment %q not found", name)
		}
		definitions = append(definitions, fragment)
	}

	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)
	if !ok {
		return "", "", fmt.Errorf("printer returned a non-string document")
	}
	return printed, framedSHA256(printed, effectiveOperationName(op)), nil
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

// framedSHA256 hashes parts with length prefixes so ("ab","c") and
// ("a","bc") differ.
func framedSHA256(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
