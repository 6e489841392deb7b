package fsxs3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/Abraxas-365/docfill/pkg/fsx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the slice of *s3.Client the file system uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3FileSystem implements fsx.FileSystem on one bucket, optionally under a
// key prefix.
type S3FileSystem struct {
	client S3API
	bucket string
	prefix string
}

func NewS3FileSystem(client S3API, bucket, prefix string) *S3FileSystem {
	return &S3FileSystem{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (f *S3FileSystem) ReadFile(ctx context.Context, p string) ([]byte, error) {
	key, err := f.key(p)
	if err != nil {
		return nil, err
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, f.wrap("get", p, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fsx.ErrIOFailed("read", p, err)
	}
	return data, nil
}

func (f *S3FileSystem) Stat(ctx context.Context, p string) (fsx.FileInfo, error) {
	key, err := f.key(p)
	if err != nil {
		return fsx.FileInfo{}, err
	}
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fsx.FileInfo{}, f.wrap("head", p, err)
	}

	info := fsx.FileInfo{
		Name:        path.Base(key),
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	if info.ContentType == "" {
		info.ContentType = fsx.ContentTypeOf(key)
	}
	return info, nil
}

func (f *S3FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	_, err := f.Stat(ctx, p)
	switch {
	case err == nil:
		return true, nil
	case errx.HasCode(err, fsx.CodeNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (f *S3FileSystem) WriteFile(ctx context.Context, p string, data []byte, contentType string) error {
	key, err := f.key(p)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = fsx.ContentTypeOf(key)
	}
	_, err = f.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(f.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fsx.ErrIOFailed("put", p, err)
	}
	return nil
}

func (f *S3FileSystem) DeleteFile(ctx context.Context, p string) error {
	key, err := f.key(p)
	if err != nil {
		return err
	}
	_, err = f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fsx.ErrIOFailed("delete", p, err)
	}
	return nil
}

func (f *S3FileSystem) Join(elem ...string) string { return path.Join(elem...) }

func (f *S3FileSystem) key(p string) (string, error) {
	clean, err := fsx.CleanPath(p)
	if err != nil {
		return "", err
	}
	if f.prefix == "" {
		return clean, nil
	}
	return f.prefix + "/" + clean, nil
}

func (f *S3FileSystem) wrap(op, p string, err error) error {
	if isNotFound(err) {
		return fsx.ErrNotFound(p)
	}
	return fsx.ErrIOFailed(op, p, err)
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

var _ fsx.FileSystem = (*S3FileSystem)(nil)
