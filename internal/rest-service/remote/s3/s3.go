// Package s3 keeps every company share in its own bucket. Directories are
// zero length marker objects whose key ends with a slash.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/remote"
)

const (
	defaultMaxRetries = 10
	deleteBatch       = 1000
)

type Config struct {
	Region          string `mapstructure:"region" validate:"required"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	BucketPrefix    string `mapstructure:"bucket_prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries" validate:"gte=0"`
}

type Backend struct {
	client *s3.Client
	region string
	prefix string
	l      *log.Entry
}

func New(ctx context.Context, cfg Config, l *log.Entry) (*Backend, error) {
	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	opts = append(opts, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Backend{
		client: client,
		region: cfg.Region,
		prefix: cfg.BucketPrefix,
		l:      l.WithFields(log.Fields{"remote": "s3", "region": cfg.Region}),
	}, nil
}

func (b *Backend) bucket(share string) *string {
	return aws.String(b.prefix + share)
}

func dirKey(dir string) string {
	dir = remote.CleanDir(dir)
	if dir == "" {
		return ""
	}
	return dir + "/"
}

func fileKey(dir, name string) string {
	return remote.Join(dir, name)
}

// copySource escapes each key segment, slashes stay literal.
func copySource(bucket, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segs, "/")
}

func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var (
		noSuchKey    *types.NoSuchKey
		notFound     *types.NotFound
		noSuchBucket *types.NoSuchBucket
		ownedByYou   *types.BucketAlreadyOwnedByYou
		exists       *types.BucketAlreadyExists
		apiErr       smithy.APIError
	)
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound), errors.As(err, &noSuchBucket):
		return fmt.Errorf("%w: %s: %w", remote.ErrNotFound, what, err)
	case errors.As(err, &ownedByYou), errors.As(err, &exists):
		return fmt.Errorf("%w: %s: %w", remote.ErrAlreadyExists, what, err)
	case errors.As(err, &apiErr) && apiErr.ErrorCode() == "BucketNotEmpty":
		return fmt.Errorf("%w: %s: %w", remote.ErrNotEmpty, what, err)
	case errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidBucketName":
		return fmt.Errorf("%w: %s: %w", remote.ErrInvalidPath, what, err)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func found(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, remote.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (b *Backend) CreateShare(ctx context.Context, share string) error {
	in := &s3.CreateBucketInput{Bucket: b.bucket(share)}
	if b.region != "" && b.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.region),
		}
	}
	_, err := b.client.CreateBucket(ctx, in)
	return mapErr(err, "bucket "+*in.Bucket)
}

// DeleteShare empties the bucket before removing it.
func (b *Backend) DeleteShare(ctx context.Context, share string) error {
	bucket := b.bucket(share)
	pager := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{Bucket: bucket})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return mapErr(err, "bucket "+*bucket)
		}
		for start := 0; start < len(page.Contents); start += deleteBatch {
			end := min(start+deleteBatch, len(page.Contents))
			ids := make([]types.ObjectIdentifier, 0, end-start)
			for _, obj := range page.Contents[start:end] {
				ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
			}
			if _, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: bucket,
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			}); err != nil {
				return mapErr(err, "bucket "+*bucket)
			}
		}
	}
	_, err := b.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: bucket})
	return mapErr(err, "bucket "+*bucket)
}

func (b *Backend) CreateDirectory(ctx context.Context, share, dir string) error {
	key := dirKey(dir)
	if key == "" {
		return fmt.Errorf("%w: root directory", remote.ErrAlreadyExists)
	}
	parent, _ := remote.Split(dir)
	ok, err := b.DirectoryExists(ctx, share, parent)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: parent of %s", remote.ErrNotFound, dir)
	}
	if ok, err := b.DirectoryExists(ctx, share, dir); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: directory %s", remote.ErrAlreadyExists, dir)
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: b.bucket(share),
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	return mapErr(err, "directory "+dir)
}

func (b *Backend) DeleteDirectory(ctx context.Context, share, dir string) error {
	key := dirKey(dir)
	if key == "" {
		return fmt.Errorf("%w: root directory", remote.ErrInvalidPath)
	}
	if ok, err := b.DirectoryExists(ctx, share, dir); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: directory %s", remote.ErrNotFound, dir)
	}
	res, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  b.bucket(share),
		Prefix:  aws.String(key),
		MaxKeys: aws.Int32(2),
	})
	if err != nil {
		return mapErr(err, "directory "+dir)
	}
	for _, obj := range res.Contents {
		if aws.ToString(obj.Key) != key {
			return fmt.Errorf("%w: %s", remote.ErrNotEmpty, dir)
		}
	}
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: b.bucket(share), Key: aws.String(key)})
	return mapErr(err, "directory "+dir)
}

func (b *Backend) DirectoryExists(ctx context.Context, share, dir string) (bool, error) {
	key := dirKey(dir)
	if key == "" {
		_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: b.bucket(share)})
		return found(mapErr(err, "bucket "+*b.bucket(share)))
	}
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: b.bucket(share), Key: aws.String(key)})
	return found(mapErr(err, "directory "+dir))
}

func (b *Backend) List(ctx context.Context, share, dir string) ([]remote.Entry, error) {
	prefix := dirKey(dir)
	pager := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    b.bucket(share),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	var entries []remote.Entry
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapErr(err, "directory "+dir)
		}
		for _, p := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), "/")
			entries = append(entries, remote.Entry{Name: name, IsDirectory: true})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			entries = append(entries, remote.Entry{Name: strings.TrimPrefix(key, prefix)})
		}
	}
	return entries, nil
}

// UploadFile needs a seekable body for request signing, other readers are
// buffered up to size.
func (b *Backend) UploadFile(ctx context.Context, share, dir, name string, content io.Reader, size int64) error {
	body, ok := content.(io.ReadSeeker)
	if !ok {
		buf, err := io.ReadAll(io.LimitReader(content, size))
		if err != nil {
			return fmt.Errorf("can't read upload %s: %w", name, err)
		}
		body = bytes.NewReader(buf)
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        b.bucket(share),
		Key:           aws.String(fileKey(dir, name)),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	return mapErr(err, "file "+fileKey(dir, name))
}

func (b *Backend) DownloadFile(ctx context.Context, share, dir, name string, w io.Writer) error {
	key := fileKey(dir, name)
	res, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: b.bucket(share), Key: aws.String(key)})
	if err != nil {
		return mapErr(err, "file "+key)
	}
	defer res.Body.Close()
	if _, err := io.Copy(w, res.Body); err != nil {
		return fmt.Errorf("can't read %s: %w", key, err)
	}
	return nil
}

func (b *Backend) FileExists(ctx context.Context, share, dir, name string) (bool, error) {
	key := fileKey(dir, name)
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: b.bucket(share), Key: aws.String(key)})
	return found(mapErr(err, "file "+key))
}

// DeleteFile reports a missing object, S3 itself does not.
func (b *Backend) DeleteFile(ctx context.Context, share, dir, name string) error {
	if ok, err := b.FileExists(ctx, share, dir, name); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: file %s", remote.ErrNotFound, fileKey(dir, name))
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: b.bucket(share),
		Key:    aws.String(fileKey(dir, name)),
	})
	return mapErr(err, "file "+fileKey(dir, name))
}

// StartCopy copies server side. CopyObject completes before it returns.
func (b *Backend) StartCopy(ctx context.Context, share, srcDir, srcName, dstDir, dstName string) error {
	bucket := b.bucket(share)
	src := fileKey(srcDir, srcName)
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     bucket,
		Key:        aws.String(fileKey(dstDir, dstName)),
		CopySource: aws.String(copySource(*bucket, src)),
	})
	return mapErr(err, "copy "+src)
}

func (b *Backend) CopyStatus(ctx context.Context, share, dir, name string) (remote.CopyStatus, error) {
	ok, err := b.FileExists(ctx, share, dir, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return remote.CopyFailed, nil
	}
	return remote.CopySuccess, nil
}
