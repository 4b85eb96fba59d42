// Package gqlerrors defines the error taxonomy shared by translation,
// execution and the HTTP layer.
package gqlerrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Markers raised from inside generated statements. They travel through the
// database as client errors and are mapped back onto sentinels by Classify.
const (
	ForbiddenMarker            = "neo4j-graphql/FORBIDDEN"
	UnauthenticatedMarker      = "neo4j-graphql/UNAUTHENTICATED"
	RelationshipRequiredMarker = "neo4j-graphql/RELATIONSHIP-REQUIRED"
)

var (
	// ErrSchemaMismatch is returned when an operation references a field,
	// operator or type that the compiled schema does not declare.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrForbidden is returned when an authorization validate rule fails.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated is returned when claims are required but absent.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrCardinality is returned when a relationship cardinality assertion fails.
	ErrCardinality = errors.New("relationship cardinality violation")
	// ErrAmbiguousMutation is returned when one field is targeted by two
	// conflicting update operations.
	ErrAmbiguousMutation = errors.New("ambiguous mutation")
	// ErrMutationTooDeep is returned when nested mutation input exceeds the
	// configured depth.
	ErrMutationTooDeep = errors.New("mutation input nested too deeply")
	// ErrAlreadyEmitted is returned when a Cypher tree is emitted twice.
	ErrAlreadyEmitted = errors.New("cypher tree already emitted")
	// ErrInvalidInput is returned for malformed arguments (wrong shape, bad cursor).
	ErrInvalidInput = errors.New("invalid input")
)

// SchemaMismatch wraps ErrSchemaMismatch with a description naming the type.
func SchemaMismatch(typeName, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrSchemaMismatch, typeName, fmt.Sprintf(format, args...))
}

// InvalidInput wraps ErrInvalidInput.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// CardinalityError describes a failed relationship assertion.
type CardinalityError struct {
	TypeName  string
	FieldName string
	Detail    string
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("%s.%s %s", e.TypeName, e.FieldName, e.Detail)
}

// Unwrap lets errors.Is match ErrCardinality.
func (e *CardinalityError) Unwrap() error {
	return ErrCardinality
}

// CardinalityMessage builds the marker message a cardinality assertion raises.
func CardinalityMessage(typeName, fieldName, detail string) string {
	return fmt.Sprintf("%s %s.%s %s", RelationshipRequiredMarker, typeName, fieldName, detail)
}

// Classify maps database errors raised by generated assertions onto the
// sentinel errors. Any other error is returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var dbErr *neo4j.Neo4jError
	if errors.As(err, &dbErr) {
		msg = dbErr.Msg
	}
	switch {
	case strings.Contains(msg, ForbiddenMarker):
		return ErrForbidden
	case strings.Contains(msg, UnauthenticatedMarker):
		return ErrUnauthenticated
	case strings.Contains(msg, RelationshipRequiredMarker):
		return parseCardinality(msg)
	}
	return err
}

func parseCardinality(msg string) error {
	idx := strings.Index(msg, RelationshipRequiredMarker)
	rest := strings.TrimSpace(msg[idx+len(RelationshipRequiredMarker):])
	target, detail, _ := strings.Cut(rest, " ")
	typeName, fieldName, ok := strings.Cut(target, ".")
	if !ok {
		return ErrCardinality
	}
	return &CardinalityError{TypeName: typeName, FieldName: fieldName, Detail: strings.TrimSpace(detail)}
}

// Code returns the GraphQL extensions code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrUnauthenticated):
		return "UNAUTHENTICATED"
	case errors.Is(err, ErrSchemaMismatch), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrAmbiguousMutation), errors.Is(err, ErrMutationTooDeep):
		return "BAD_USER_INPUT"
	case errors.Is(err, ErrCardinality):
		return "RELATIONSHIP_CARDINALITY"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}
