// Package dbexec runs generated Cypher statements against Neo4j.
// It supports direct execution, managed write transactions and execution
// on behalf of an impersonated database user.
package dbexec

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"neo4j-graphql/internal/cypher"
)

// ErrNoDriver is returned when an executor has no driver to run on.
var ErrNoDriver = errors.New("neo4j driver is not configured")

// AccessMode routes a statement to readers or writers of a cluster.
type AccessMode int

const (
	WriteMode AccessMode = iota
	ReadMode
)

// RunOptions controls where and as whom a statement runs.
type RunOptions struct {
	Mode AccessMode
	// Database overrides the executor's default database.
	Database string
	// ImpersonatedUser runs the statement with that user's privileges.
	ImpersonatedUser string
}

// Counters are the update statistics reported by the database.
type Counters struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}

// Result is a fully buffered statement result.
type Result struct {
	Keys     []string
	Records  []map[string]any
	Counters Counters
}

// QueryExecutor abstracts statement execution so callers can swap in
// impersonation or test fakes.
type QueryExecutor interface {
	Run(ctx context.Context, stmt cypher.Statement, opts RunOptions) (*Result, error)
}

// TxExecutor is implemented by executors that can group several
// statements into one write transaction.
type TxExecutor interface {
	QueryExecutor
	// WriteTx runs fn inside a managed write transaction. The driver may
	// retry fn on transient failures, so fn must not keep state between
	// attempts.
	WriteTx(ctx context.Context, opts RunOptions, fn func(QueryExecutor) error) error
}

// InWriteTx runs fn in a write transaction when exec supports one and
// directly against exec otherwise.
func InWriteTx(ctx context.Context, exec QueryExecutor, opts RunOptions, fn func(QueryExecutor) error) error {
	if tx, ok := exec.(TxExecutor); ok {
		return tx.WriteTx(ctx, opts, fn)
	}
	return fn(exec)
}

// Neo4jExecutor executes statements through the official driver.
type Neo4jExecutor struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jExecutor creates an executor that runs statements against
// database. An empty database selects the server default.
func NewNeo4jExecutor(driver neo4j.DriverWithContext, database string) *Neo4jExecutor {
	return &Neo4jExecutor{driver: driver, database: database}
}

// Verify checks connectivity to the server.
func (e *Neo4jExecutor) Verify(ctx context.Context) error {
	if e.driver == nil {
		return ErrNoDriver
	}
	return e.driver.VerifyConnectivity(ctx)
}

func (e *Neo4jExecutor) databaseFor(opts RunOptions) string {
	if opts.Database != "" {
		return opts.Database
	}
	return e.database
}

// Run executes stmt with ExecuteQuery, which owns session and retry
// handling, and buffers every record.
func (e *Neo4jExecutor) Run(ctx context.Context, stmt cypher.Statement, opts RunOptions) (*Result, error) {
	if e.driver == nil {
		return nil, ErrNoDriver
	}
	settings := []neo4j.ExecuteQueryConfigurationOption{}
	if db := e.databaseFor(opts); db != "" {
		settings = append(settings, neo4j.ExecuteQueryWithDatabase(db))
	}
	if opts.Mode == ReadMode {
		settings = append(settings, neo4j.ExecuteQueryWithReadersRouting())
	} else {
		settings = append(settings, neo4j.ExecuteQueryWithWritersRouting())
	}
	if opts.ImpersonatedUser != "" {
		settings = append(settings, neo4j.ExecuteQueryWithImpersonatedUser(opts.ImpersonatedUser))
	}

	eager, err := neo4j.ExecuteQuery(ctx, e.driver, stmt.Cypher, stmt.Params, neo4j.EagerResultTransformer, settings...)
	if err != nil {
		return nil, err
	}
	result := &Result{Keys: eager.Keys, Records: recordMaps(eager.Records)}
	if eager.Summary != nil {
		result.Counters = countersFrom(eager.Summary.Counters())
	}
	return result, nil
}

// WriteTx runs fn in one managed write transaction.
func (e *Neo4jExecutor) WriteTx(ctx context.Context, opts RunOptions, fn func(QueryExecutor) error) error {
	if e.driver == nil {
		return ErrNoDriver
	}
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:       neo4j.AccessModeWrite,
		DatabaseName:     e.databaseFor(opts),
		ImpersonatedUser: opts.ImpersonatedUser,
	})
	defer func() {
		_ = session.Close(context.WithoutCancel(ctx))
	}()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&txExecutor{tx: tx})
	})
	return err
}

// txExecutor runs statements on a managed transaction. Run options are
// fixed by the session that opened the transaction.
type txExecutor struct {
	tx neo4j.ManagedTransaction
}

func (t *txExecutor) Run(ctx context.Context, stmt cypher.Statement, _ RunOptions) (*Result, error) {
	res, err := t.tx.Run(ctx, stmt.Cypher, stmt.Params)
	if err != nil {
		return nil, err
	}
	keys, err := res.Keys()
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := res.Consume(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to consume result: %w", err)
	}
	result := &Result{Keys: keys, Records: recordMaps(records)}
	if summary != nil {
		result.Counters = countersFrom(summary.Counters())
	}
	return result, nil
}

func recordMaps(records []*neo4j.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		out = append(out, record.AsMap())
	}
	return out
}

// driverCounters is the part of neo4j.Counters the service reports.
type driverCounters interface {
	NodesCreated() int
	NodesDeleted() int
	RelationshipsCreated() int
	RelationshipsDeleted() int
	PropertiesSet() int
}

func countersFrom(c driverCounters) Counters {
	if c == nil {
		return Counters{}
	}
	return Counters{
		NodesCreated:         c.NodesCreated(),
		NodesDeleted:         c.NodesDeleted(),
		RelationshipsCreated: c.RelationshipsCreated(),
		RelationshipsDeleted: c.RelationshipsDeleted(),
		PropertiesSet:        c.PropertiesSet(),
	}
}
