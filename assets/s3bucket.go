package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Bucket is a Bucket backed by Amazon S3.
type S3Bucket struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Bucket loads the shared AWS configuration for profile (~/.aws/config) and returns
// a Bucket listing objects under prefix.
func NewS3Bucket(ctx context.Context, profile, bucket, prefix string) (*S3Bucket, error) {
	if bucket == "" {
		return nil, errors.New("no s3 bucket provided")
	}

	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	ctxCfg, cancelCfg := context.WithTimeout(ctx, 3*time.Second)
	cfg, err := config.LoadDefaultConfig(ctxCfg, opts...)
	cancelCfg()
	if err != nil {
		return nil, fmt.Errorf("unable to load aws config: %w", err)
	}

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3Bucket{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (b *S3Bucket) List(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	}
	if b.prefix != "" {
		input.Prefix = aws.String(b.prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, object := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(object.Key), b.prefix)
			if key == "" {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (b *S3Bucket) Download(ctx context.Context, key string, w io.WriterAt) error {
	downloader := manager.NewDownloader(b.client)
	if _, err := downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + key),
	}); err != nil {
		return fmt.Errorf("unable to download object from s3, %s, %w", key, err)
	}
	return nil
}
