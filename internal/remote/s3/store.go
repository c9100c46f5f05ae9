// Package s3 provides a remote document store on an S3-compatible
// backend (AWS S3 or MinIO). One JSON object per user. S3 offers no
// conditional write on object timestamps and no push channel, so this
// driver runs plain last-writer-wins and Watch is unsupported.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"budgetcore/pkg/domain"
)

// Store implements domain.RemoteStore against a single bucket. Keys are
// <prefix>/<userID>.json.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ domain.RemoteStore = (*Store)(nil)

// Config holds explicit construction parameters (mostly for tests). For
// prod we rely primarily on environment variables.
type Config struct {
	Region    string
	Bucket    string
	Prefix    string // optional key prefix (default "documents")
	Endpoint  string // optional; if set enables custom endpoint (e.g. MinIO)
	PathStyle bool
}

// Environment variables (documented in README):
//   BUDGETCORE_REMOTE_DRIVER=s3
//   BUDGETCORE_REMOTE_S3_BUCKET=<bucket> (required)
//   BUDGETCORE_REMOTE_S3_REGION=<region> (default us-east-1)
//   BUDGETCORE_REMOTE_S3_PREFIX=<key prefix> (default documents)
//   BUDGETCORE_REMOTE_S3_ENDPOINT=<url> (optional, for MinIO)
//   BUDGETCORE_REMOTE_S3_PATH_STYLE=true|false (default false)
//   AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// New creates an S3 remote store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "documents"
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// OpenFromEnv constructs an S3 remote store from process environment.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	bucket := os.Getenv("BUDGETCORE_REMOTE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("BUDGETCORE_REMOTE_S3_BUCKET required for s3 driver")
	}
	cfg := Config{
		Bucket:    bucket,
		Region:    os.Getenv("BUDGETCORE_REMOTE_S3_REGION"),
		Prefix:    os.Getenv("BUDGETCORE_REMOTE_S3_PREFIX"),
		Endpoint:  os.Getenv("BUDGETCORE_REMOTE_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("BUDGETCORE_REMOTE_S3_PATH_STYLE"), "true"),
	}
	return New(ctx, cfg)
}

// Driver reports the backend identifier.
func (s *Store) Driver() domain.RemoteDriver { return domain.RemoteS3 }

func (s *Store) key(userID string) string {
	return path.Join(s.prefix, userID+".json")
}

// Fetch downloads and decodes the user's document object. The raw bytes
// run through the schema migration so older objects load cleanly.
func (s *Store) Fetch(ctx context.Context, userID string) (domain.UserDocument, error) {
	key := s.key(userID)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return domain.UserDocument{}, domain.ErrDocumentNotFound
		}
		return domain.UserDocument{}, fmt.Errorf("get object %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return domain.UserDocument{}, fmt.Errorf("read object %s: %w", key, err)
	}
	doc, err := domain.Migrate(raw, time.Now().UTC())
	if err != nil {
		return domain.UserDocument{}, fmt.Errorf("decode object %s: %w", key, err)
	}
	return doc, nil
}

// Put uploads the document wholesale. The expect stamp is ignored: the
// backend cannot reject on it, so concurrent writers resolve by last
// writer wins.
func (s *Store) Put(ctx context.Context, userID string, doc domain.UserDocument, _ time.Time) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	key := s.key(userID)
	contentType := "application/json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Watch is not available on S3.
func (s *Store) Watch(context.Context, string) (<-chan domain.UserDocument, error) {
	return nil, domain.ErrUnsupported
}
