package reliability

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key       string
	SizeBytes int64
}

// ObjectStore is the bucket the backups live in.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// S3Config configures an S3-compatible bucket (AWS, Cloudflare R2, MinIO).
type S3Config struct {
	Bucket          string
	Endpoint        string // Empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Client stores objects in an S3-compatible bucket
type S3Client struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	log      zerolog.Logger
}

// NewS3Client creates a client for cfg. Static credentials are used when
// given, otherwise the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config, log zerolog.Logger) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// R2 and MinIO do not serve virtual-hosted buckets on custom endpoints
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		log:      log.With().Str("client", "s3").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// Upload stores body under key.
func (c *S3Client) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/gzip"),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := c.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	c.log.Debug().Str("key", key).Int64("size", size).Msg("Object uploaded")
	return nil
}

// List returns every object whose key starts with prefix.
func (c *S3Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	var objects []ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			info := ObjectInfo{Key: *obj.Key}
			if obj.Size != nil {
				info.SizeBytes = *obj.Size
			}
			objects = append(objects, info)
		}
	}

	return objects, nil
}

// Delete removes key.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
