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
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aaronlmathis/cromgraph"
)

// This file implements the MongoDB metadata source for deployments that
// archive workflow metadata documents into a collection.

// MongoSourceError provides structured error information for MongoDB source operations.
type MongoSourceError struct {
	Op         string // Operation that failed (e.g., "connect", "find_one", "decode")
	Collection string // Collection being accessed when error occurred
	Err        error  // Underlying error
}

// Error returns the error string for MongoSourceError.
func (e *MongoSourceError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo source %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo source %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for MongoSourceError.
func (e *MongoSourceError) Unwrap() error {
	return e.Err
}

// MongoSourceStats holds statistics about the MongoDB source's performance.
type MongoSourceStats struct {
	QueriesExecuted int64
	FetchDuration   time.Duration
	LastFetchTime   time.Time
}

// MongoSourceOptions configures the MongoDB source.
type MongoSourceOptions struct {
	URI            string        // MongoDB connection URI
	Database       string        // Database name
	Collection     string        // Collection name
	WorkflowID     string        // Workflow run identifier to look up
	IDField        string        // Document field holding the workflow identifier
	Username       string        // Authentication username
	Password       string        // Authentication password
	AuthDatabase   string        // Authentication database
	TLS            bool          // Enable TLS
	TLSInsecure    bool          // Skip TLS verification
	Timeout        time.Duration // Connect timeout
	MaxPoolSize    uint64        // Connection pool size
	MinPoolSize    uint64        // Minimum connections in pool
	ReadPreference string        // Read preference: primary, secondary, etc.
}

// SourceOptionMongo is a functional option for MongoSourceOptions.
type SourceOptionMongo func(*MongoSourceOptions)

// Connection options
func WithMongoURI(uri string) SourceOptionMongo {
	return func(opts *MongoSourceOptions) {
		opts.URI = uri
	}
}

func WithMongoDB(database string) SourceOptionMongo {
	return func(opts *MongoSourceOptions) {
		opts.Database = database
	}
}

func WithMongoCollection(collection string) SourceOptionMongo {
	return func(opts *MongoSourceOptions) {
		opts.Collection = collection
	}
}

// Lookup options
func WithMongoWorkflowID(id string) SourceOptionMongo {
	return func(opts *MongoSourceOptions) {
		opts.WorkflowID = id
	}
}

func WithMongoIDField(field string) SourceOptionMongo {
	return func(opts *MongoSourceOptions) {
		opts.IDField = field
	}
}

// Authentication options
func WithMongoAuth(username, password, authDB string) SourceOptionMongo {
	return func(opts *MongoSourceOptions) {
		opts.Username = username
		opts.Password = password
		opts.AuthDatabase = authDB
	}
}

// TLS options
func WithMongoTLS(enabled, insecure bool) SourceOptionMongo {
	return func(opts *MongoSourceOptions) {
		opts.TLS = enabled
		opts.TLSInsecure = insecure
	}
}

// Performance options
func WithMongoTimeout(timeout time.Duration) SourceOptionMongo {
	return func(opts *MongoSourceOptions) {
		opts.Timeout = timeout
	}
}

func WithMongoPoolSize(min, max uint64) SourceOptionMongo {
	return func(opts *MongoSourceOptions) {
		opts.MinPoolSize = min
		opts.MaxPoolSize = max
	}
}

func WithMongoReadPreference(preference string) SourceOptionMongo {
	return func(opts *MongoSourceOptions) {
		opts.ReadPreference = preference
	}
}

// MongoSource fetches a metadata document from a MongoDB collection.
type MongoSource struct {
	client    *mongo.Client
	coll      *mongo.Collection
	opts      *MongoSourceOptions
	stats     MongoSourceStats
	connected bool
}

// NewMongoSource creates a MongoDB source with configurable options.
func NewMongoSource(options ...SourceOptionMongo) (*MongoSource, error) {
	opts := &MongoSourceOptions{
		URI:            "mongodb://localhost:27017",
		IDField:        "id",
		Timeout:        30 * time.Second,
		MaxPoolSize:    10,
		MinPoolSize:    1,
		ReadPreference: "primary",
	}

	// Apply functional options
	for _, option := range options {
		option(opts)
	}

	// Validate required options
	if opts.Database == "" {
		return nil, &MongoSourceError{Op: "validate", Err: fmt.Errorf("database name is required")}
	}
	if opts.Collection == "" {
		return nil, &MongoSourceError{Op: "validate", Err: fmt.Errorf("collection name is required")}
	}
	if opts.WorkflowID == "" {
		return nil, &MongoSourceError{Op: "validate", Err: fmt.Errorf("workflow identifier is required")}
	}

	return &MongoSource{opts: opts}, nil
}

// Connect establishes the MongoDB connection.
func (ms *MongoSource) Connect(ctx context.Context) error {
	if ms.connected {
		return nil
	}

	clientOpts, err := ms.buildClientOptions()
	if err != nil {
		return &MongoSourceError{Op: "build_options", Err: err}
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return &MongoSourceError{Op: "connect", Err: err}
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return &MongoSourceError{Op: "ping", Err: err}
	}

	ms.client = client
	ms.coll = client.Database(ms.opts.Database).Collection(ms.opts.Collection)
	ms.connected = true

	return nil
}

// buildClientOptions constructs MongoDB client options from source configuration.
func (ms *MongoSource) buildClientOptions() (*options.ClientOptions, error) {
	clientOpts := options.Client().ApplyURI(ms.opts.URI)

	if ms.opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(ms.opts.MaxPoolSize)
	}
	if ms.opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(ms.opts.MinPoolSize)
	}
	if ms.opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(ms.opts.Timeout)
	}

	// Authentication
	if ms.opts.Username != "" && ms.opts.Password != "" {
		auth := options.Credential{
			Username:   ms.opts.Username,
			Password:   ms.opts.Password,
			AuthSource: ms.opts.AuthDatabase,
		}
		if auth.AuthSource == "" {
			auth.AuthSource = ms.opts.Database
		}
		clientOpts.SetAuth(auth)
	}

	// TLS configuration
	if ms.opts.TLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: ms.opts.TLSInsecure,
		}
		clientOpts.SetTLSConfig(tlsConfig)
	}

	// Read preference
	if ms.opts.ReadPreference != "" {
		var pref *readpref.ReadPref

		switch ms.opts.ReadPreference {
		case "primary":
			pref = readpref.Primary()
		case "primaryPreferred":
			pref = readpref.PrimaryPreferred()
		case "secondary":
			pref = readpref.Secondary()
		case "secondaryPreferred":
			pref = readpref.SecondaryPreferred()
		case "nearest":
			pref = readpref.Nearest()
		default:
			return nil, fmt.Errorf("invalid read preference: %s", ms.opts.ReadPreference)
		}

		clientOpts.SetReadPreference(pref)
	}

	return clientOpts, nil
}

// Fetch implements the cromgraph.Source interface.
func (ms *MongoSource) Fetch(ctx context.Context) (cromgraph.Document, error) {
	start := time.Now()
	defer func() {
		ms.stats.FetchDuration += time.Since(start)
		ms.stats.LastFetchTime = time.Now()
	}()

	if !ms.connected {
		if err := ms.Connect(ctx); err != nil {
			return nil, err
		}
	}

	ms.stats.QueriesExecuted++

	var doc bson.M
	filter := bson.M{ms.opts.IDField: ms.opts.WorkflowID}
	if err := ms.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, &MongoSourceError{Op: "find_one", Collection: ms.opts.Collection, Err: err}
	}

	converted, ok := convertBSONValue(doc).(map[string]interface{})
	if !ok {
		return nil, &MongoSourceError{Op: "decode", Collection: ms.opts.Collection, Err: fmt.Errorf("document is not a mapping")}
	}
	return converted, nil
}

// Close implements the cromgraph.Source interface.
func (ms *MongoSource) Close() error {
	if ms.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := ms.client.Disconnect(ctx)
	ms.client = nil
	ms.coll = nil
	ms.connected = false

	if err != nil {
		return &MongoSourceError{Op: "close", Err: err}
	}
	return nil
}

// Stats returns MongoDB source performance statistics.
func (ms *MongoSource) Stats() MongoSourceStats {
	return ms.stats
}

// convertBSONValue normalizes BSON values into the plain map/slice/scalar
// shapes the document scanner traverses. Nested documents decode as bson.D,
// so both document representations are handled.
func convertBSONValue(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time()
	case primitive.Decimal128:
		return v.String()
	case primitive.Null:
		return nil
	case primitive.Undefined:
		return nil
	case bson.M:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			result[k] = convertBSONValue(val)
		}
		return result
	case bson.D:
		result := make(map[string]interface{}, len(v))
		for _, elem := range v {
			result[elem.Key] = convertBSONValue(elem.Value)
		}
		return result
	case bson.A:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = convertBSONValue(val)
		}
		return result
	default:
		return v
	}
}
