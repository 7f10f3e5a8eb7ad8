package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"merodocs-http-service/internal/infrastructure/config"
	"merodocs-http-service/pkg/logger"
)

// File 待上传的文件
type File struct {
	Name   string
	Reader io.Reader
}

// UploadedFile 上传结果
type UploadedFile struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// ObjectStorage 对象存储
type ObjectStorage interface {
	Upload(ctx context.Context, file File) (UploadedFile, error)
	Delete(ctx context.Context, url string) error
}

// New 按配置创建对象存储
func New(ctx context.Context, cfg *config.Config) (ObjectStorage, error) {
	switch cfg.StorageDriver {
	case "s3":
		return NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix, cfg.StoragePublicURL)
	case "ftp", "":
		return NewFTPStorage(cfg.FTPHost, cfg.FTPPort, cfg.FTPUser, cfg.FTPPassword, cfg.FTPBaseDir, cfg.StoragePublicURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

// UploadMultiple 依次上传；任一失败时删除已上传的文件并返回错误
func UploadMultiple(ctx context.Context, s ObjectStorage, files []File) ([]UploadedFile, error) {
	uploaded := make([]UploadedFile, 0, len(files))
	for _, f := range files {
		out, err := s.Upload(ctx, f)
		if err != nil {
			DeleteAll(context.Background(), s, uploaded)
			return nil, err
		}
		uploaded = append(uploaded, out)
	}
	return uploaded, nil
}

// DeleteAll 尽力删除，失败只记录日志
func DeleteAll(ctx context.Context, s ObjectStorage, files []UploadedFile) {
	for _, f := range files {
		if err := s.Delete(ctx, f.URL); err != nil {
			logger.WithFields(logger.Fields{"url": f.URL}).WithError(err).Warn("delete uploaded file failed")
		}
	}
}

// objectKey 生成按日期分目录的唯一对象名，保留原扩展名
func objectKey(prefix, name string) string {
	ext := strings.ToLower(path.Ext(name))
	key := time.Now().UTC().Format("2006/01/02") + "/" + uuid.NewString() + ext
	if prefix != "" {
		key = strings.Trim(prefix, "/") + "/" + key
	}
	return key
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
