package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/util"
)

// s3API is the subset of *s3.Client the page store uses.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type S3Options struct {
	Bucket   string
	Prefix   string
	Endpoint string
	Region   string

	AccessKeyID     string
	AccessKeySecret string
}

// S3PageRepository stores each page as one object under Prefix.
type S3PageRepository struct { // implements PageRepository
	client s3API
	bucket string
	prefix string
}

func NewS3PageRepository(ctx context.Context, opts S3Options) (*S3PageRepository, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.AccessKeySecret, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3PageRepository(client, opts.Bucket, opts.Prefix), nil
}

func newS3PageRepository(client s3API, bucket, prefix string) *S3PageRepository {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3PageRepository{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (r *S3PageRepository) objectKey(key model.PageKey) string {
	return r.prefix + util.EncodeName(string(key)) + pageSuffix
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func (r *S3PageRepository) GetSource(ctx context.Context, key model.PageKey) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
	})
	if isS3NotFound(err) {
		return nil, fmt.Errorf("page %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.NewIOError("get object", string(key), err)
	}
	defer out.Body.Close()

	source, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, domain.NewIOError("read object", string(key), err)
	}
	return source, nil
}

func (r *S3PageRepository) GetModifiedTime(ctx context.Context, key model.PageKey) (time.Time, error) {
	out, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(key)),
	})
	if isS3NotFound(err) {
		return time.Time{}, fmt.Errorf("page %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, domain.NewIOError("head object", string(key), err)
	}
	return aws.ToTime(out.LastModified), nil
}

func (r *S3PageRepository) Write(ctx context.Context, key model.PageKey, content []byte) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(r.objectKey(key)),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return domain.NewIOError("put object", string(key), err)
	}

	repoLogger.Debug().Str("key", string(key)).Str("bucket", r.bucket).Msg("Page uploaded")
	return nil
}

func (r *S3PageRepository) List(ctx context.Context) ([]model.Page, error) {
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.prefix),
	})

	var pages []model.Page
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, domain.NewIOError("list objects", r.bucket, err)
		}

		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), r.prefix)
			if strings.Contains(name, "/") || !strings.HasSuffix(name, pageSuffix) {
				continue
			}

			decoded, err := util.DecodeName(strings.TrimSuffix(name, pageSuffix))
			if err != nil {
				repoLogger.Warn().Err(err).Str("object", aws.ToString(obj.Key)).Msg("Skipping object with undecodable name")
				continue
			}

			key := model.PageKey(decoded)
			source, err := r.GetSource(ctx, key)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}

			pages = append(pages, newPage(key, source, aws.ToTime(obj.LastModified)))
		}
	}

	sortPages(pages)
	return pages, nil
}
