package storage

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// S3Config selects the bucket receipts are uploaded to.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string

	// Static keys; the default AWS chain is used when empty.
	AccessKey string
	SecretKey string
}

// S3Storage uploads receipts to a bucket.
type S3Storage struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		// S3 compatible stores (MinIO, LocalStack)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		uploader: manager.NewUploader(s3.NewFromConfig(awsCfg, s3Opts...)),
	}, nil
}

func (s *S3Storage) key(name string) string {
	return path.Join(s.prefix, path.Base(name))
}

func (s *S3Storage) Save(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	res, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return errors.Wrapf(err, "upload s3://%s/%s", s.bucket, key)
	}
	logger.WithFields(logrus.Fields{
		"bucket":   s.bucket,
		"key":      key,
		"location": res.Location,
	}).Info("Arquivo enviado")
	return nil
}

// Multi saves to every target in order and stops at the first failure.
type Multi []ReceiptStorage

func (m Multi) Save(ctx context.Context, name string, data []byte) error {
	for _, s := range m {
		if err := s.Save(ctx, name, data); err != nil {
			return err
		}
	}
	return nil
}
