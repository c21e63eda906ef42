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

package readers

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/cromgraph"
)

// This file implements the PostgreSQL metadata source for deployments that
// archive workflow metadata documents into a jsonb or text column.

// PostgresSourceError provides structured error information for Postgres source operations.
type PostgresSourceError struct {
	Op  string // Operation that failed (e.g., "connect", "query", "decode")
	Err error  // Underlying error
}

// Error returns the error string for PostgresSourceError.
func (e *PostgresSourceError) Error() string {
	return fmt.Sprintf("postgres source %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresSourceError.
func (e *PostgresSourceError) Unwrap() error {
	return e.Err
}

// PostgresSourceStats holds statistics about the Postgres source's performance.
type PostgresSourceStats struct {
	QueriesExecuted int64
	QueryDuration   time.Duration
	FetchDuration   time.Duration
	LastFetchTime   time.Time
	ConnectionTime  time.Duration
}

// PostgresSourceOptions configures the Postgres source.
type PostgresSourceOptions struct {
	DSN             string        // Database connection string
	Table           string        // Table holding metadata documents
	IDColumn        string        // Column holding the workflow identifier
	DocumentColumn  string        // jsonb or text column holding the document
	WorkflowID      string        // Workflow run identifier to look up
	QueryTimeout    time.Duration // Query execution timeout
	ConnMaxLifetime time.Duration // Maximum connection lifetime
	ConnMaxIdleTime time.Duration // Maximum connection idle time
	MaxOpenConns    int           // Maximum open connections
	MaxIdleConns    int           // Maximum idle connections
	DB              *sql.DB       // Pre-opened database handle (overrides DSN)
}

// SourceOptionPostgres represents a configuration function for PostgresSourceOptions.
type SourceOptionPostgres func(*PostgresSourceOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) SourceOptionPostgres {
	return func(opts *PostgresSourceOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresTable sets the table holding metadata documents.
func WithPostgresTable(table string) SourceOptionPostgres {
	return func(opts *PostgresSourceOptions) {
		opts.Table = table
	}
}

// WithPostgresColumns sets the identifier and document column names.
func WithPostgresColumns(idColumn, documentColumn string) SourceOptionPostgres {
	return func(opts *PostgresSourceOptions) {
		opts.IDColumn = idColumn
		opts.DocumentColumn = documentColumn
	}
}

// WithPostgresWorkflowID sets the workflow run identifier to look up.
func WithPostgresWorkflowID(id string) SourceOptionPostgres {
	return func(opts *PostgresSourceOptions) {
		opts.WorkflowID = id
	}
}

// WithPostgresConnectionPool configures the connection pool.
func WithPostgresConnectionPool(maxOpen, maxIdle int) SourceOptionPostgres {
	return func(opts *PostgresSourceOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
	}
}

// WithPostgresConnectionTimeout sets connection and idle timeouts.
func WithPostgresConnectionTimeout(lifetime, idleTime time.Duration) SourceOptionPostgres {
	return func(opts *PostgresSourceOptions) {
		opts.ConnMaxLifetime = lifetime
		opts.ConnMaxIdleTime = idleTime
	}
}

// WithPostgresQueryTimeout sets the query execution timeout.
func WithPostgresQueryTimeout(timeout time.Duration) SourceOptionPostgres {
	return func(opts *PostgresSourceOptions) {
		opts.QueryTimeout = timeout
	}
}

// WithPostgresDB injects a pre-opened database handle. The caller retains
// ownership and Close will not close it.
func WithPostgresDB(db *sql.DB) SourceOptionPostgres {
	return func(opts *PostgresSourceOptions) {
		opts.DB = db
	}
}

// withDefaults applies default values to PostgresSourceOptions.
func (opts *PostgresSourceOptions) withDefaults() *PostgresSourceOptions {
	result := &PostgresSourceOptions{}
	if opts != nil {
		*result = *opts
	}

	if result.Table == "" {
		result.Table = "workflow_metadata"
	}
	if result.IDColumn == "" {
		result.IDColumn = "workflow_id"
	}
	if result.DocumentColumn == "" {
		result.DocumentColumn = "document"
	}
	if result.QueryTimeout <= 0 {
		result.QueryTimeout = 30 * time.Second
	}
	if result.ConnMaxLifetime <= 0 {
		result.ConnMaxLifetime = 5 * time.Minute
	}
	if result.ConnMaxIdleTime <= 0 {
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

// PostgresSource fetches a metadata document from a PostgreSQL table.
type PostgresSource struct {
	db     *sql.DB
	ownsDB bool
	opts   *PostgresSourceOptions
	stats  PostgresSourceStats
}

// NewPostgresSource creates a new PostgreSQL source with the given options.
func NewPostgresSource(options ...SourceOptionPostgres) (*PostgresSource, error) {
	// Start with defaults
	opts := (&PostgresSourceOptions{}).withDefaults()

	// Apply functional options
	for _, option := range options {
		option(opts)
	}

	if opts.DB == nil && opts.DSN == "" {
		return nil, &PostgresSourceError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}
	if opts.WorkflowID == "" {
		return nil, &PostgresSourceError{Op: "validate", Err: fmt.Errorf("workflow identifier is required")}
	}

	source := &PostgresSource{opts: opts}

	if opts.DB != nil {
		source.db = opts.DB
		return source, nil
	}

	startTime := time.Now()
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, &PostgresSourceError{Op: "connect", Err: err}
	}

	// Configure connection pool
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	// Test connection
	ctx := context.Background()
	if opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.QueryTimeout)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &PostgresSourceError{Op: "ping", Err: err}
	}

	source.db = db
	source.ownsDB = true
	source.stats.ConnectionTime = time.Since(startTime)

	return source, nil
}

// Fetch implements the cromgraph.Source interface.
func (p *PostgresSource) Fetch(ctx context.Context) (cromgraph.Document, error) {
	startTime := time.Now()
	defer func() {
		p.stats.FetchDuration += time.Since(startTime)
		p.stats.LastFetchTime = time.Now()
	}()

	// Check context cancellation
	select {
	case <-ctx.Done():
		return nil, &PostgresSourceError{Op: "fetch", Err: ctx.Err()}
	default:
	}

	if p.db == nil {
		return nil, &PostgresSourceError{Op: "fetch", Err: fmt.Errorf("source is closed")}
	}

	if p.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.QueryTimeout)
		defer cancel()
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		pq.QuoteIdentifier(p.opts.DocumentColumn),
		pq.QuoteIdentifier(p.opts.Table),
		pq.QuoteIdentifier(p.opts.IDColumn),
	)

	queryStart := time.Now()
	var raw []byte
	err := p.db.QueryRowContext(ctx, query, p.opts.WorkflowID).Scan(&raw)
	p.stats.QueryDuration += time.Since(queryStart)
	p.stats.QueriesExecuted++

	if err == sql.ErrNoRows {
		return nil, &PostgresSourceError{Op: "query", Err: fmt.Errorf("no metadata row for workflow %q", p.opts.WorkflowID)}
	}
	if err != nil {
		return nil, &PostgresSourceError{Op: "query", Err: err}
	}

	doc, err := decodeDocument(bytes.NewReader(raw))
	if err != nil {
		return nil, &PostgresSourceError{Op: "decode", Err: err}
	}
	return doc, nil
}

// Close implements the cromgraph.Source interface. Injected database handles
// are left open for the caller.
func (p *PostgresSource) Close() error {
	if p.db == nil || !p.ownsDB {
		p.db = nil
		return nil
	}

	err := p.db.Close()
	p.db = nil
	if err != nil {
		return &PostgresSourceError{Op: "close", Err: err}
	}
	return nil
}

// Stats returns statistics about the Postgres source's performance.
func (p *PostgresSource) Stats() PostgresSourceStats {
	return p.stats
}
