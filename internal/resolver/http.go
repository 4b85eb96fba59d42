package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/gqlrequest"
)

// Handler serves GraphQL over HTTP. It resolves against whichever resolver
// current returns, so a schema reload takes effect on the next request.
type Handler struct {
	current func() *Resolver
	claims  func(context.Context) (map[string]any, bool)
}

// NewHandler creates a GraphQL HTTP handler. claims extracts verified
// token claims from the request context and may be nil.
func NewHandler(current func() *Resolver, claims func(context.Context) (map[string]any, bool)) *Handler {
	return &Handler{current: current, claims: claims}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeResponse(w, http.StatusMethodNotAllowed, requestError(gqlerrors.InvalidInput("method %s not allowed", r.Method)))
		return
	}

	analysis := gqlrequest.AnalysisFromContext(r.Context())
	if analysis == nil {
		analysis = gqlrequest.AnalyzeRequest(r)
	}
	if analysis.DecodeError != nil {
		writeResponse(w, http.StatusBadRequest, requestError(gqlerrors.InvalidInput("invalid request body: %s", analysis.DecodeError.Error())))
		return
	}
	if analysis.Operation != nil && analysis.Operation.Operation == ast.OperationTypeMutation && r.Method == http.MethodGet {
		w.Header().Set("Allow", "POST")
		writeResponse(w, http.StatusMethodNotAllowed, requestError(gqlerrors.InvalidInput("mutations must use POST")))
		return
	}
	vars, err := analysis.Envelope.Variables()
	if err != nil {
		writeResponse(w, http.StatusBadRequest, requestError(gqlerrors.InvalidInput("%s", err.Error())))
		return
	}

	resolver := h.current()
	if resolver == nil {
		writeResponse(w, http.StatusServiceUnavailable, requestError(errors.New("schema is not loaded")))
		return
	}

	req := Request{Analysis: analysis, Variables: vars}
	if h.claims != nil {
		if claims, ok := h.claims(r.Context()); ok {
			req.Claims = claims
		}
	}
	writeResponse(w, http.StatusOK, resolver.Execute(r.Context(), req))
}

func writeResponse(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
