// Package r2 provides an S3-compatible client for the Cloudflare R2 artifact
// store, including presigned retrieval URLs.
package r2

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

// Config holds R2 connection settings. Any blank required field leaves the
// client unconfigured; callers must treat that as "no artifact store".
type Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

func (c Config) complete() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

// Client defines the artifact store operations used by the store stage.
type Client interface {
	// Configured reports whether uploads can be attempted at all.
	Configured() bool
	// Upload writes an object and returns its key.
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	// SignURL returns a time-limited GET URL for an object.
	SignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type s3Client struct {
	bucket  string
	client  *s3.Client
	presign *s3.PresignClient
}

// unconfigured is the nil-object client used when R2 settings are absent.
type unconfigured struct{}

func (unconfigured) Configured() bool { return false }
func (unconfigured) Upload(context.Context, string, []byte, string) error {
	return eris.New("r2: not configured")
}
func (unconfigured) SignURL(context.Context, string, time.Duration) (string, error) {
	return "", eris.New("r2: not configured")
}

// NewClient creates an R2 client, or an unconfigured stand-in when any
// required setting is missing.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	if !cfg.complete() {
		return unconfigured{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, eris.Wrap(err, "r2: load aws config")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &s3Client{
		bucket:  cfg.Bucket,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

func (c *s3Client) Configured() bool { return true }

func (c *s3Client) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return eris.Wrapf(err, "r2: put object %s", key)
	}
	return nil
}

func (c *s3Client) SignURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", eris.Wrapf(err, "r2: presign %s", key)
	}
	return req.URL, nil
}
