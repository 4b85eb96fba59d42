package dbexec

import (
	"context"
	"fmt"

	"neo4j-graphql/internal/cypher"
)

// ImpersonatingExecutor runs statements as the database user named in the
// request context. Neo4j applies that user's privileges in addition to the
// service's own authorization rules.
type ImpersonatingExecutor struct {
	next         QueryExecutor
	userFromCtx  func(context.Context) (string, bool)
	allowedUsers map[string]struct{}
	validateUser bool
}

// ImpersonatingExecutorConfig controls impersonation behavior.
type ImpersonatingExecutorConfig struct {
	Next         QueryExecutor
	UserFromCtx  func(context.Context) (string, bool)
	AllowedUsers []string
	ValidateUser bool
}

// NewImpersonatingExecutor wraps cfg.Next so every statement runs as the
// user extracted from the request context.
func NewImpersonatingExecutor(cfg ImpersonatingExecutorConfig) *ImpersonatingExecutor {
	allowed := make(map[string]struct{}, len(cfg.AllowedUsers))
	for _, user := range cfg.AllowedUsers {
		allowed[user] = struct{}{}
	}
	return &ImpersonatingExecutor{
		next:         cfg.Next,
		userFromCtx:  cfg.UserFromCtx,
		allowedUsers: allowed,
		validateUser: cfg.ValidateUser,
	}
}

// resolve fills opts.ImpersonatedUser from ctx. No user in context runs as
// the service account.
func (e *ImpersonatingExecutor) resolve(ctx context.Context, opts RunOptions) (RunOptions, error) {
	if e.userFromCtx == nil {
		return opts, nil
	}
	user, ok := e.userFromCtx(ctx)
	if !ok || user == "" {
		return opts, nil
	}
	if e.validateUser {
		if _, allowed := e.allowedUsers[user]; !allowed {
			return opts, fmt.Errorf("impersonated user not allowed: %s", user)
		}
	}
	opts.ImpersonatedUser = user
	return opts, nil
}

func (e *ImpersonatingExecutor) Run(ctx context.Context, stmt cypher.Statement, opts RunOptions) (*Result, error) {
	opts, err := e.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	return e.next.Run(ctx, stmt, opts)
}

// WriteTx opens the transaction as the impersonated user. When the wrapped
// executor has no transactions each statement is impersonated on its own.
func (e *ImpersonatingExecutor) WriteTx(ctx context.Context, opts RunOptions, fn func(QueryExecutor) error) error {
	opts, err := e.resolve(ctx, opts)
	if err != nil {
		return err
	}
	if tx, ok := e.next.(TxExecutor); ok {
		return tx.WriteTx(ctx, opts, fn)
	}
	return fn(e)
}
