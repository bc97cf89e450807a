// Package export renders flattened cohort tables to CSV and JSON and ships
// them to a blob sink: the local filesystem by default, S3 when configured.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Sink receives rendered export artifacts keyed by relative path.
type Sink interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
}

// FilesystemSink writes artifacts under a base directory.
type FilesystemSink struct {
	dir string
}

// NewFilesystemSink creates the base directory if needed.
func NewFilesystemSink(dir string) (*FilesystemSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &FilesystemSink{dir: dir}, nil
}

// Put writes the artifact to dir/key, creating intermediate directories.
func (s *FilesystemSink) Put(_ context.Context, key, _ string, r io.Reader) error {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating export subdirectory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("writing export file %s: %w", key, err)
	}
	return f.Close()
}

// s3API is the S3 surface the sink needs; narrowed for tests.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads artifacts to a bucket under a key prefix.
type S3Sink struct {
	client s3API
	bucket string
	prefix string
}

// S3Config holds the sink's construction parameters.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// NewS3Sink builds a sink using the default AWS credentials chain.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Sink{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Put uploads the artifact under prefix/key.
func (s *S3Sink) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	objectKey := key
	if s.prefix != "" {
		objectKey = s.prefix + "/" + key
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("uploading %s to s3://%s: %w", objectKey, s.bucket, err)
	}
	return nil
}
