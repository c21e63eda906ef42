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
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/cromgraph"
)

// This file maps export destinations (local file, S3 object, PostgreSQL
// table) onto GraphWriter constructors, so callers can pick where a graph
// lands without wiring writer internals themselves.

// GraphFormat selects a graph export encoding.
type GraphFormat int

const (
	FormatFileTable GraphFormat = iota
	FormatManifest
	FormatParquet
	FormatPostgres
)

// Destination creates a GraphWriter for a given format.
type Destination interface {
	NewWriter(format GraphFormat) (cromgraph.GraphWriter, error)
}

// FileDestination writes a graph export to a local filesystem path.
type FileDestination struct {
	Path string
}

// NewWriter instantiates a writer for the file location.
func (f FileDestination) NewWriter(format GraphFormat) (cromgraph.GraphWriter, error) {
	switch format {
	case FormatFileTable:
		file, err := os.Create(f.Path)
		if err != nil {
			return nil, err
		}
		return NewFileTableWriter(file)
	case FormatManifest:
		file, err := os.Create(f.Path)
		if err != nil {
			return nil, err
		}
		return NewManifestWriter(file)
	case FormatParquet:
		return NewParquetWriter(f.Path)
	default:
		return nil, fmt.Errorf("unsupported format for FileDestination")
	}
}

// S3Destination uploads a graph export to an S3 object. Line-oriented
// formats are buffered in memory and uploaded when the writer is closed;
// Parquet goes through a local temp file since the encoder needs a real one.
type S3Destination struct {
	Bucket string
	Key    string
	Client *s3.Client // Pre-built client; the default AWS config is used when nil
}

type s3WriteCloser struct {
	buf    *bytes.Buffer
	client *s3.Client
	bucket string
	key    string
}

func newS3WriteCloser(client *s3.Client, bucket, key string) *s3WriteCloser {
	return &s3WriteCloser{
		buf:    &bytes.Buffer{},
		client: client,
		bucket: bucket,
		key:    key,
	}
}

func (s *s3WriteCloser) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *s3WriteCloser) Close() error {
	_, err := s.client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &s.key,
		Body:   bytes.NewReader(s.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

type parquetS3Writer struct {
	*ParquetWriter
	client   *s3.Client
	bucket   string
	key      string
	filename string
}

func (p *parquetS3Writer) Close() error {
	if err := p.ParquetWriter.Close(); err != nil {
		return err
	}
	file, err := os.Open(p.filename)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = p.client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: &p.bucket,
		Key:    &p.key,
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", p.bucket, p.key, err)
	}
	os.Remove(p.filename)
	return nil
}

// NewWriter creates a writer uploading to S3.
func (s S3Destination) NewWriter(format GraphFormat) (cromgraph.GraphWriter, error) {
	client := s.Client
	if client == nil {
		cfg, err := config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, err
		}
		client = s3.NewFromConfig(cfg)
	}

	switch format {
	case FormatFileTable:
		return NewFileTableWriter(newS3WriteCloser(client, s.Bucket, s.Key))
	case FormatManifest:
		return NewManifestWriter(newS3WriteCloser(client, s.Bucket, s.Key))
	case FormatParquet:
		tmp, err := os.CreateTemp("", "graph-*.parquet")
		if err != nil {
			return nil, err
		}
		filename := tmp.Name()
		tmp.Close()
		pw, err := NewParquetWriter(filename)
		if err != nil {
			os.Remove(filename)
			return nil, err
		}
		return &parquetS3Writer{ParquetWriter: pw, client: client, bucket: s.Bucket, key: s.Key, filename: filename}, nil
	default:
		return nil, fmt.Errorf("unsupported format for S3Destination")
	}
}

// PostgresDestination directs graph rows to a PostgreSQL table.
type PostgresDestination struct {
	DSN        string
	TableName  string // optional; the writer's default applies when empty
	WorkflowID string
}

// NewWriter instantiates a PostgreSQL graph writer.
func (p PostgresDestination) NewWriter(format GraphFormat) (cromgraph.GraphWriter, error) {
	if format != FormatPostgres {
		return nil, fmt.Errorf("unsupported format for PostgresDestination")
	}
	opts := []WriterOptionPostgres{
		WithPostgresDSN(p.DSN),
		WithPostgresWorkflowID(p.WorkflowID),
	}
	if p.TableName != "" {
		opts = append(opts, WithPostgresTable(p.TableName))
	}
	return NewPostgresWriter(opts...)
}
