package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Storage 上传到 S3 存储桶
type S3Storage struct {
	client  *s3.Client
	bucket  string
	prefix  string
	baseURL string
}

// NewS3Storage 使用默认凭证链创建 S3 存储
func NewS3Storage(ctx context.Context, bucket, region, prefix, baseURL string) (*S3Storage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket is not configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3Storage{
		client:  s3.NewFromConfig(awsCfg),
		bucket:  bucket,
		prefix:  prefix,
		baseURL: baseURL,
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, file File) (UploadedFile, error) {
	key := objectKey(s.prefix, file.Name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file.Reader,
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return UploadedFile{}, fmt.Errorf("failed to upload file: %w", err)
	}
	return UploadedFile{URL: joinURL(s.baseURL, key), Name: file.Name}, nil
}

func (s *S3Storage) Delete(ctx context.Context, url string) error {
	key := strings.TrimPrefix(strings.TrimPrefix(url, strings.TrimRight(s.baseURL, "/")), "/")
	if key == "" || key == url {
		return fmt.Errorf("url %q is not served by this bucket", url)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
