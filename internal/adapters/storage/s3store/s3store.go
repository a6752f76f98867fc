package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Bucket string
	Region string
	// Endpoint targets LocalStack or another S3-compatible service.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBase      string
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Storage struct {
	client     putter
	bucket     string
	publicBase string
}

func New(ctx context.Context, opts Options) (*Storage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET requis")
	}
	loaders := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loaders = append(loaders, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	log.Info().Str("bucket", opts.Bucket).Str("region", cfg.Region).Str("endpoint", opts.Endpoint).Msg("stockage S3 configuré")

	publicBase := opts.PublicBase
	if publicBase == "" {
		if opts.Endpoint != "" {
			publicBase = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
		} else {
			publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, cfg.Region)
		}
	}
	return newWithClient(client, opts.Bucket, publicBase), nil
}

func newWithClient(c putter, bucket, publicBase string) *Storage {
	return &Storage{client: c, bucket: bucket, publicBase: strings.TrimRight(publicBase, "/")}
}

func (s *Storage) Save(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	key := strings.TrimLeft(path, "/")
	if key == "" {
		return "", fmt.Errorf("clé S3 vide")
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return s.publicBase + "/" + key, nil
}
