package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

func loadAWSConfig(ctx context.Context, region string, creds aws.CredentialsProvider) (aws.Config, error) {
	opts := []func(*aws_config.LoadOptions) error{}

	if region != "" {
		opts = append(opts, aws_config.WithRegion(region))
	}

	if creds != nil {
		opts = append(opts, aws_config.WithCredentialsProvider(creds))
	}

	return aws_config.LoadDefaultConfig(ctx, opts...)
}

func initializeS3Client(cfg S3ClientConfig) (*s3.Client, error) {
	ctx := context.Background()

	region := cfg.Region
	if region == "" && cfg.Endpoint != "" {
		region = "us-east-1"
	}

	var creds aws.CredentialsProvider
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	awsCfg, err := loadAWSConfig(ctx, region, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	// Public imagery buckets need anonymous access when no credentials are
	// configured in the environment or ~/.aws/credentials.
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		awsCfg, err = loadAWSConfig(ctx, region, aws.AnonymousCredentials{})
		if err != nil {
			return nil, fmt.Errorf("failed to create aws config with anonymous credentials: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true // MinIO
	})

	return client, nil
}

// ValidateAccess checks the bucket exists and the prefix can be listed.
func (s *S3Provider) ValidateAccess(ctx context.Context, bucket, prefix string) error {
	if bucket == "" {
		return fmt.Errorf("bucket is required")
	}

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	}); err != nil {
		return fmt.Errorf("failed to verify access to s3://%s: %w", bucket, err)
	}

	if _, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	}); err != nil {
		return fmt.Errorf("failed to verify objects in s3://%s/%s: %w", bucket, prefix, err)
	}

	return nil
}
