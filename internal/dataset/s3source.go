package dataset

import (
	"context"
	"fmt"
	"io"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/iwvelando/sire-dashboard/pkg/constants"
)

// S3Config holds construction parameters for an S3-compatible source
// (AWS S3 or MinIO).
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	PathStyle       bool   `mapstructure:"pathStyle" yaml:"pathStyle,omitempty"`
	AccessKeyID     string `mapstructure:"accessKeyId" yaml:"accessKeyId,omitempty"`
	SecretAccessKey string `mapstructure:"secretAccessKey" yaml:"secretAccessKey,omitempty"`
}

// S3Source reads tables from a single bucket. Names are object keys.
type S3Source struct {
	client *s3.Client
	bucket string
}

// NewS3Source builds the client from cfg, falling back to the default AWS
// credential chain when no static keys are given.
func NewS3Source(ctx context.Context, cfg S3Config, optFns ...func(*s3.Options)) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = constants.DefaultS3Region
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return &S3Source{client: client, bucket: cfg.Bucket}, nil
}

// Open fetches the object body.
func (s *S3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

// Describe names the source in log lines.
func (s *S3Source) Describe() string { return "s3://" + s.bucket }
