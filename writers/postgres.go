//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of CromGraph.
//
// CromGraph is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// CromGraph is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with CromGraph. If not, see https://www.gnu.org/licenses/.

package writers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/cromgraph"
)

// This file implements the PostgreSQL graph writer. Flattened node rows are
// written into a relational table keyed by workflow identifier so dependency
// graphs from many runs can be joined against metadata archives.

// PostgresWriterError wraps PostgreSQL-specific write errors with context about the operation.
type PostgresWriterError struct {
	Op  string // The operation being performed (e.g., "write", "connect")
	Err error  // The underlying error
}

// Error returns the error string for PostgresWriterError.
func (e *PostgresWriterError) Error() string {
	return fmt.Sprintf("postgres writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresWriterError.
func (e *PostgresWriterError) Unwrap() error {
	return e.Err
}

// PostgresWriterStats holds PostgreSQL write performance statistics.
type PostgresWriterStats struct {
	RowsWritten      int64         // Total rows written
	TransactionCount int64         // Number of transactions committed
	RowsDeleted      int64         // Prior rows removed before writing
	LastWriteTime    time.Time     // Time of last write
	WriteDuration    time.Duration // Total time spent writing
	ConnectionTime   time.Duration // Time spent establishing connection
}

// graphColumns is the fixed column set of the graph table, insert order.
var graphColumns = []string{
	"workflow_id", "kind", "task_name", "shard_idx",
	"output_name", "output_path", "input_count", "output_count",
}

// PostgresWriterOptions configures the PostgreSQL writer.
type PostgresWriterOptions struct {
	DSN             string        // PostgreSQL connection string
	TableName       string        // Target table name
	WorkflowID      string        // Stamped onto every row
	CreateTable     bool          // Create table if not exists
	DeleteExisting  bool          // Delete prior rows for this workflow before writing
	IncludeTasks    bool          // Also emit one row per task node
	QueryTimeout    time.Duration // Timeout for queries
	ConnMaxLifetime time.Duration // Max connection lifetime
	ConnMaxIdleTime time.Duration // Max idle connection time
	MaxOpenConns    int           // Max open connections
	MaxIdleConns    int           // Max idle connections
	DB              *sql.DB       // Pre-opened database handle (overrides DSN)
}

// WriterOptionPostgres represents a configuration function for PostgresWriterOptions.
type WriterOptionPostgres func(*PostgresWriterOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) WriterOptionPostgres {
	return func(opts *PostgresWriterOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresTable sets the target table name.
func WithPostgresTable(tableName string) WriterOptionPostgres {
	return func(opts *PostgresWriterOptions) {
		opts.TableName = tableName
	}
}

// WithPostgresWorkflowID sets the workflow identifier stamped onto every row.
func WithPostgresWorkflowID(id string) WriterOptionPostgres {
	return func(opts *PostgresWriterOptions) {
		opts.WorkflowID = id
	}
}

// WithPostgresCreateTable enables or disables table creation.
func WithPostgresCreateTable(create bool) WriterOptionPostgres {
	return func(opts *PostgresWriterOptions) {
		opts.CreateTable = create
	}
}

// WithPostgresDeleteExisting enables or disables removal of prior rows for
// the same workflow before writing.
func WithPostgresDeleteExisting(del bool) WriterOptionPostgres {
	return func(opts *PostgresWriterOptions) {
		opts.DeleteExisting = del
	}
}

// WithPostgresTasks enables or disables rows for task nodes.
func WithPostgresTasks(include bool) WriterOptionPostgres {
	return func(opts *PostgresWriterOptions) {
		opts.IncludeTasks = include
	}
}

// WithPostgresQueryTimeout sets the query timeout.
func WithPostgresQueryTimeout(timeout time.Duration) WriterOptionPostgres {
	return func(opts *PostgresWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) WriterOptionPostgres {
	return func(opts *PostgresWriterOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
		opts.ConnMaxLifetime = maxLifetime
		opts.ConnMaxIdleTime = maxIdleTime
	}
}

// WithPostgresDB injects a pre-opened database handle. The caller retains
// ownership and Close will not close it.
func WithPostgresDB(db *sql.DB) WriterOptionPostgres {
	return func(opts *PostgresWriterOptions) {
		opts.DB = db
	}
}

// PostgresWriter implements cromgraph.GraphWriter for PostgreSQL output.
// Each WriteGraph call runs in one transaction.
type PostgresWriter struct {
	db          *sql.DB
	ownsDB      bool
	options     PostgresWriterOptions
	stats       PostgresWriterStats
	initialized bool
	errorState  bool
	mu          sync.Mutex
}

// NewPostgresWriter creates a new PostgreSQL writer with the given options.
// Accepts functional options for configuration. Returns a ready-to-use writer or an error.
func NewPostgresWriter(opts ...WriterOptionPostgres) (*PostgresWriter, error) {
	options := (&PostgresWriterOptions{}).withDefaults()

	for _, opt := range opts {
		opt(options)
	}

	if options.DB == nil && options.DSN == "" {
		return nil, &PostgresWriterError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}
	if options.WorkflowID == "" {
		return nil, &PostgresWriterError{Op: "validate", Err: fmt.Errorf("workflow identifier is required")}
	}

	writer := &PostgresWriter{options: *options}

	if options.DB != nil {
		writer.db = options.DB
		return writer, nil
	}

	if err := writer.connect(); err != nil {
		return nil, &PostgresWriterError{Op: "connect", Err: err}
	}

	return writer, nil
}

// withDefaults applies default values to PostgresWriterOptions.
func (opts *PostgresWriterOptions) withDefaults() *PostgresWriterOptions {
	result := &PostgresWriterOptions{}
	if opts != nil {
		*result = *opts
	}

	if result.TableName == "" {
		result.TableName = "workflow_graph"
	}
	if result.QueryTimeout == 0 {
		result.QueryTimeout = 30 * time.Second
	}
	if result.ConnMaxLifetime == 0 {
		result.ConnMaxLifetime = 5 * time.Minute
	}
	if result.ConnMaxIdleTime == 0 {
		result.ConnMaxIdleTime = 1 * time.Minute
	}
	if result.MaxOpenConns <= 0 {
		result.MaxOpenConns = 10
	}
	if result.MaxIdleConns <= 0 {
		result.MaxIdleConns = 5
	}
	return result
}

// connect establishes the database connection and configures the connection pool.
func (w *PostgresWriter) connect() error {
	start := time.Now()

	db, err := sql.Open("postgres", w.options.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(w.options.MaxOpenConns)
	db.SetMaxIdleConns(w.options.MaxIdleConns)
	db.SetConnMaxLifetime(w.options.ConnMaxLifetime)
	db.SetConnMaxIdleTime(w.options.ConnMaxIdleTime)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), w.options.QueryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	w.db = db
	w.ownsDB = true
	w.stats.ConnectionTime = time.Since(start)

	return nil
}

// Stats returns a copy of the current write statistics.
func (w *PostgresWriter) Stats() PostgresWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// WriteGraph implements the cromgraph.GraphWriter interface.
// All rows of the graph are written in a single transaction.
func (w *PostgresWriter) WriteGraph(ctx context.Context, g cromgraph.Graph) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.errorState {
		return &PostgresWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if w.db == nil {
		return &PostgresWriterError{Op: "write", Err: fmt.Errorf("writer is closed")}
	}

	if w.options.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.options.QueryTimeout)
		defer cancel()
	}

	if !w.initialized {
		if err := w.initializeUnsafe(ctx); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "initialize", Err: err}
		}
	}

	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return &PostgresWriterError{Op: "begin_transaction", Err: err}
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if w.options.DeleteExisting {
		deleteSQL := fmt.Sprintf(
			"DELETE FROM %s WHERE workflow_id = $1",
			pq.QuoteIdentifier(w.options.TableName),
		)
		var result sql.Result
		result, err = tx.ExecContext(ctx, deleteSQL, w.options.WorkflowID)
		if err != nil {
			return &PostgresWriterError{Op: "delete_existing", Err: err}
		}
		if deleted, derr := result.RowsAffected(); derr == nil {
			w.stats.RowsDeleted += deleted
		}
	}

	stmt, err := tx.PrepareContext(ctx, w.insertSQL())
	if err != nil {
		return &PostgresWriterError{Op: "prepare", Err: err}
	}
	defer stmt.Close()

	var written int64
	for _, n := range g.Nodes() {
		row := flattenNode(n)
		if row.Kind == kindTask && !w.options.IncludeTasks {
			continue
		}

		_, err = stmt.ExecContext(ctx,
			w.options.WorkflowID, row.Kind, row.TaskName, row.ShardIdx,
			row.OutputName, row.OutputPath, row.InputCount, row.OutputCount,
		)
		if err != nil {
			return &PostgresWriterError{Op: "insert", Err: err}
		}
		written++
	}

	if err = tx.Commit(); err != nil {
		return &PostgresWriterError{Op: "commit", Err: err}
	}

	w.stats.RowsWritten += written
	w.stats.TransactionCount++
	w.stats.WriteDuration += time.Since(start)
	w.stats.LastWriteTime = time.Now()

	return nil
}

// Flush implements the cromgraph.GraphWriter interface. Writes are
// transactional per WriteGraph call, so there is nothing to flush.
func (w *PostgresWriter) Flush() error {
	return nil
}

// Close implements the cromgraph.GraphWriter interface. Injected database
// handles are left open for the caller.
func (w *PostgresWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil || !w.ownsDB {
		w.db = nil
		return nil
	}

	err := w.db.Close()
	w.db = nil
	if err != nil {
		return &PostgresWriterError{Op: "close", Err: err}
	}
	return nil
}

// initializeUnsafe performs one-time table setup (must hold mutex).
func (w *PostgresWriter) initializeUnsafe(ctx context.Context) error {
	if w.options.CreateTable {
		query := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
				workflow_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				task_name TEXT,
				shard_idx TEXT,
				output_name TEXT,
				output_path TEXT,
				input_count BIGINT,
				output_count BIGINT
			)`,
			pq.QuoteIdentifier(w.options.TableName),
		)
		if _, err := w.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	w.initialized = true
	return nil
}

// insertSQL builds the fixed-column INSERT statement.
func (w *PostgresWriter) insertSQL() string {
	placeholders := make([]string, len(graphColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(w.options.TableName),
		strings.Join(graphColumns, ", "),
		strings.Join(placeholders, ", "))
}
