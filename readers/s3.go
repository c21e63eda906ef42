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
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/cromgraph"
)

// This file implements the S3 metadata source for runs whose metadata
// documents were archived to object storage.

// S3SourceError provides structured error information for S3 source operations.
type S3SourceError struct {
	Op  string // Operation that failed (e.g., "parse_uri", "get_object", "decode")
	Err error  // Underlying error
}

// Error returns the error string for S3SourceError.
func (e *S3SourceError) Error() string {
	return fmt.Sprintf("s3 source %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for S3SourceError.
func (e *S3SourceError) Unwrap() error {
	return e.Err
}

// S3SourceStats holds statistics about the S3 source's performance.
type S3SourceStats struct {
	BytesRead     int64
	FetchDuration time.Duration
	LastFetchTime time.Time
}

// S3SourceOptions configures the S3 source behavior.
type S3SourceOptions struct {
	Region         string          // AWS region
	Profile        string          // AWS profile to use
	Credentials    aws.Credentials // Explicit credentials
	EndpointURL    string          // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool            // Use path-style addressing
	Client         *s3.Client      // Pre-built client (overrides everything above)
}

// SourceOptionS3 represents a configuration function for S3Source.
type SourceOptionS3 func(*S3SourceOptions)

// WithS3Region sets the AWS region.
func WithS3Region(region string) SourceOptionS3 {
	return func(opts *S3SourceOptions) {
		opts.Region = region
	}
}

// WithS3Profile selects a shared-config AWS profile.
func WithS3Profile(profile string) SourceOptionS3 {
	return func(opts *S3SourceOptions) {
		opts.Profile = profile
	}
}

// WithS3Credentials sets explicit static credentials.
func WithS3Credentials(creds aws.Credentials) SourceOptionS3 {
	return func(opts *S3SourceOptions) {
		opts.Credentials = creds
	}
}

// WithS3Endpoint sets a custom endpoint for S3-compatible services.
func WithS3Endpoint(endpoint string) SourceOptionS3 {
	return func(opts *S3SourceOptions) {
		opts.EndpointURL = endpoint
	}
}

// WithS3PathStyle toggles path-style addressing.
func WithS3PathStyle(pathStyle bool) SourceOptionS3 {
	return func(opts *S3SourceOptions) {
		opts.ForcePathStyle = pathStyle
	}
}

// WithS3Client injects a pre-built S3 client.
func WithS3Client(client *s3.Client) SourceOptionS3 {
	return func(opts *S3SourceOptions) {
		opts.Client = client
	}
}

// ParseS3URI splits an s3://bucket/key URI into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(uri, scheme) {
		return "", "", fmt.Errorf("uri %q does not start with %s", uri, scheme)
	}
	rest := strings.TrimPrefix(uri, scheme)
	slash := strings.Index(rest, "/")
	if slash <= 0 || slash == len(rest)-1 {
		return "", "", fmt.Errorf("uri %q lacks a bucket or key", uri)
	}
	return rest[:slash], rest[slash+1:], nil
}

// S3Source fetches a metadata document from S3.
type S3Source struct {
	client *s3.Client
	bucket string
	key    string
	stats  S3SourceStats
}

// NewS3Source creates an S3 source for an s3://bucket/key metadata URI.
func NewS3Source(uri string, options ...SourceOptionS3) (*S3Source, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, &S3SourceError{Op: "parse_uri", Err: err}
	}

	opts := S3SourceOptions{}
	for _, option := range options {
		option(&opts)
	}

	client := opts.Client
	if client == nil {
		cfg, err := loadAWSConfig(opts)
		if err != nil {
			return nil, &S3SourceError{Op: "create_aws_config", Err: err}
		}
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if opts.EndpointURL != "" {
				o.BaseEndpoint = aws.String(opts.EndpointURL)
			}
			o.UsePathStyle = opts.ForcePathStyle
		})
	}

	return &S3Source{
		client: client,
		bucket: bucket,
		key:    key,
	}, nil
}

// Fetch implements the cromgraph.Source interface.
func (s *S3Source) Fetch(ctx context.Context) (cromgraph.Document, error) {
	start := time.Now()
	defer func() {
		s.stats.FetchDuration += time.Since(start)
		s.stats.LastFetchTime = time.Now()
	}()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, &S3SourceError{Op: "get_object", Err: err}
	}
	defer resp.Body.Close()

	counting := &countingReader{r: resp.Body}
	doc, err := decodeDocument(counting)
	if err != nil {
		return nil, &S3SourceError{Op: "decode", Err: err}
	}
	s.stats.BytesRead += counting.n
	return doc, nil
}

// Close implements the cromgraph.Source interface.
func (s *S3Source) Close() error {
	return nil
}

// Stats returns S3 source performance statistics.
func (s *S3Source) Stats() S3SourceStats {
	return s.stats
}

// loadAWSConfig builds AWS configuration from source options.
func loadAWSConfig(opts S3SourceOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}

	return cfg, nil
}
