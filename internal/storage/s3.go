// Package storage keeps generated documents in S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"goride/internal/service"
)

// Config holds the S3 settings.
type Config struct {
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Prefix        string        // key prefix, e.g. "invoices"
	Endpoint      string        // optional, for S3 compatible stores
	PublicBaseURL string        // when set, locators are plain URLs under this base
	LinkExpiry    time.Duration // lifetime of presigned locators
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3 implements service.ObjectStorage.
type S3 struct {
	client    objectPutter
	presigner objectPresigner
	cfg       Config
}

// Ensure S3 implements service.ObjectStorage.
var _ service.ObjectStorage = (*S3)(nil)

// NewS3Client builds an S3 client from static credentials.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3 creates object storage backed by client.
func NewS3(client *s3.Client, cfg Config) *S3 {
	return newS3(client, s3.NewPresignClient(client), cfg)
}

func newS3(client objectPutter, presigner objectPresigner, cfg Config) *S3 {
	if cfg.LinkExpiry <= 0 {
		cfg.LinkExpiry = 7 * 24 * time.Hour
	}
	return &S3{client: client, presigner: presigner, cfg: cfg}
}

// Store uploads data privately and returns a locator the rider can open.
func (s *S3) Store(ctx context.Context, data []byte, name, contentType string) (string, error) {
	key := path.Join(s.cfg.Prefix, name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object to s3: %w", err)
	}

	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key, nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.LinkExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return req.URL, nil
}
