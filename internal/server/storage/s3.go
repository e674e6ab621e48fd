// Package storage uploads onboarding files to S3-compatible object storage
// (MinIO in development) and resolves their URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// File is an uploaded attachment held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Storage stores a file under a fresh key and returns its URL.
type Storage interface {
	Put(ctx context.Context, field string, f File) (string, error)
}

// Options configures S3Storage.
type Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
}

// S3Storage implements Storage on top of aws-sdk-go-v2.
type S3Storage struct {
	client  *s3.Client
	bucket  string
	baseURL string
	now     func() time.Time
}

// NewS3Storage builds a path-style S3 client for the configured endpoint.
func NewS3Storage(ctx context.Context, opts Options) (*S3Storage, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Storage{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: strings.TrimRight(opts.BaseEndpoint, "/"),
		now:     time.Now,
	}, nil
}

// ObjectKey builds a unique key grouped by form field and upload date.
func (s *S3Storage) ObjectKey(field, filename string) string {
	d := s.now().UTC()
	return fmt.Sprintf("onboarding/%s/%d/%02d/%02d/%s%s", field, d.Year(), d.Month(), d.Day(), uuid.NewString(), path.Ext(filename))
}

func (s *S3Storage) Put(ctx context.Context, field string, f File) (string, error) {
	key := s.ObjectKey(field, f.Name)

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(f.Data),
		ContentLength: aws.Int64(int64(len(f.Data))),
	}
	if f.ContentType != "" {
		in.ContentType = aws.String(f.ContentType)
	}

	if _, err := putObject(s.client, ctx, in); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return s.URL(key), nil
}

// URL is the path-style object URL on the configured endpoint.
func (s *S3Storage) URL(key string) string {
	return s.baseURL + "/" + s.bucket + "/" + key
}
