// Package s3store implements the object store port on Amazon S3.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sh3r4rd/mycloud/internal/apperr"
	"github.com/sh3r4rd/mycloud/internal/model"
	"github.com/sh3r4rd/mycloud/internal/store"
)

// API is the subset of *s3.Client used by Store.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Presigner is satisfied by *s3.PresignClient.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// URL modes.
const (
	ModePublic    = "public"
	ModePresigned = "presigned"
)

// Options selects the bucket and how download links are built.
type Options struct {
	Bucket string
	Region string
	// URLMode selects direct public-read links or time-limited presigned links.
	URLMode string
	// PublicBaseURL overrides https://{bucket}.s3.{region}.amazonaws.com.
	PublicBaseURL string
	PresignTTL    time.Duration
}

// Store keeps uploaded files in one S3 bucket.
type Store struct {
	api       API
	presigner Presigner
	opts      Options
}

var _ store.ObjectStore = (*Store)(nil)

// New returns a Store. presigner may be nil when opts.URLMode is public.
func New(api API, presigner Presigner, opts Options) *Store {
	if opts.URLMode == "" {
		opts.URLMode = ModePublic
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = model.DefaultPresignTTL
	}
	return &Store{api: api, presigner: presigner, opts: opts}
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	_, err := s.api.PutObject(ctx, in)
	return apperr.FromAWS("s3.PutObject", err)
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, apperr.FromAWS("s3.GetObject", err)
	}
	return out.Body, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	return apperr.FromAWS("s3.DeleteObject", err)
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, apperr.FromAWS("s3.HeadObject", err)
}

func (s *Store) List(ctx context.Context, prefix string) ([]store.ObjectInfo, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(s.opts.Bucket)}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	var objects []store.ObjectInfo
	pages := s3.NewListObjectsV2Paginator(s.api, in)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, apperr.FromAWS("s3.ListObjectsV2", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, store.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

func (s *Store) URL(ctx context.Context, key string) (string, error) {
	if s.opts.URLMode == ModePresigned {
		return s.PresignedURL(ctx, key, s.opts.PresignTTL)
	}
	return s.PublicURL(key), nil
}

// PresignedURL signs a GET for key valid for ttl.
func (s *Store) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.presigner == nil {
		return "", fmt.Errorf("presigned urls requested without a presigner")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", apperr.FromAWS("s3.PresignGetObject", err)
	}
	return req.URL, nil
}

// PublicURL builds the unauthenticated link for key. It is only usable when
// the bucket policy grants public read.
func (s *Store) PublicURL(key string) string {
	base := strings.TrimRight(s.opts.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.opts.Bucket, s.opts.Region)
	}
	return base + "/" + escapeKey(key)
}

// CheckBucket verifies the bucket exists and is reachable with the current
// credentials.
func (s *Store) CheckBucket(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.opts.Bucket)})
	return apperr.FromAWS("s3.HeadBucket", err)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
