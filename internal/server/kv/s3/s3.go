// Package s3 is the kv.Store backed by an S3-compatible object store. Each
// record is one object named prefix + joined key, holding the JSON payload.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/kosync/internal/server/kv"
)

const defaultRegion = "us-east-1"

// Options configure the bucket and credentials. A non-empty BaseEndpoint
// (MinIO and other S3-compatible servers) switches to path-style addressing.
type Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Prefix       string
}

type Store struct {
	opts Options

	mu     sync.RWMutex
	client *s3.Client
}

func New(opts Options) *Store {
	if opts.Region == "" {
		opts.Region = defaultRegion
	}
	return &Store{opts: opts}
}

// Init builds the client from static credentials and makes sure the bucket
// exists, creating it when absent.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}
	if s.opts.Bucket == "" || s.opts.AccessKey == "" || s.opts.SecretKey == "" {
		return fmt.Errorf("s3: %w: bucket, access key and secret key are required", kv.ErrMissingCredentials)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s.opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.opts.AccessKey,
			s.opts.SecretKey,
			"",
		)),
	)
	if err != nil {
		return fmt.Errorf("s3: load config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.opts.BaseEndpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	if err := s.ensureBucket(ctx, client); err != nil {
		return kv.Unavailable("s3 ensure bucket", err)
	}

	s.client = client
	return nil
}

func (s *Store) ensureBucket(ctx context.Context, client *s3.Client) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.opts.Bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(s.opts.Bucket)}
	if s.opts.Region != defaultRegion {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.opts.Region),
		}
	}
	_, err = client.CreateBucket(ctx, in)
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return nil
	}
	return err
}

func (s *Store) handle() (*s3.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, kv.ErrNotInitialized
	}
	return s.client, nil
}

func (s *Store) objectKey(key kv.Key) *string {
	return aws.String(s.opts.Prefix + key.String())
}

func (s *Store) Get(ctx context.Context, key kv.Key, dst any) (bool, error) {
	client, err := s.handle()
	if err != nil {
		return false, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    s.objectKey(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, kv.Unavailable(fmt.Sprintf("s3 get[%s]", key), err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return false, kv.Unavailable(fmt.Sprintf("s3 read[%s]", key), err)
	}
	if err := kv.Decode(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) prepare(value any) (*s3.Client, []byte, error) {
	client, err := s.handle()
	if err != nil {
		return nil, nil, err
	}
	b, err := kv.Encode(value)
	if err != nil {
		return nil, nil, err
	}
	return client, b, nil
}

func (s *Store) put(ctx context.Context, client *s3.Client, key kv.Key, b []byte, ifNoneMatch *string) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           s.objectKey(key),
		Body:          bytes.NewReader(b),
		ContentLength: aws.Int64(int64(len(b))),
		ContentType:   aws.String("application/json"),
		IfNoneMatch:   ifNoneMatch,
	})
	return err
}

// Set overwrites the object; S3 writes of a single object are atomic.
func (s *Store) Set(ctx context.Context, key kv.Key, value any) error {
	client, b, err := s.prepare(value)
	if err != nil {
		return err
	}
	if err := s.put(ctx, client, key, b, nil); err != nil {
		return kv.Unavailable(fmt.Sprintf("s3 set[%s]", key), err)
	}
	return nil
}

// Create is a conditional PutObject (If-None-Match: *).
func (s *Store) Create(ctx context.Context, key kv.Key, value any) error {
	client, b, err := s.prepare(value)
	if err != nil {
		return err
	}
	err = s.put(ctx, client, key, b, aws.String("*"))
	switch {
	case err == nil:
		return nil
	case isConditionFailed(err):
		return kv.ErrKeyExists
	default:
		return kv.Unavailable(fmt.Sprintf("s3 create[%s]", key), err)
	}
}

func (s *Store) Ping(ctx context.Context) error {
	client, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.opts.Bucket)}); err != nil {
		return kv.Unavailable("s3 ping", err)
	}
	return nil
}

// Close drops the client; the SDK holds no connections that need releasing
// beyond the shared transport.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	return nil
}

func isNotFound(err error) bool {
	var nk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func isConditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}
