package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPStorage 通过 FTP 上传图片；每次操作独立连接，可并发使用
type FTPStorage struct {
	host     string
	port     string
	user     string
	password string
	baseDir  string
	baseURL  string
}

func NewFTPStorage(host, port, user, password, baseDir, baseURL string) *FTPStorage {
	return &FTPStorage{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		baseDir:  baseDir,
		baseURL:  baseURL,
	}
}

func (s *FTPStorage) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(s.host+":"+s.port, ftp.DialWithTimeout(10*time.Second), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to FTP: %w", err)
	}

	if err := conn.Login(s.user, s.password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("failed to login to FTP: %w", err)
	}
	return conn, nil
}

// Upload uploads a file to the FTP server
func (s *FTPStorage) Upload(ctx context.Context, file File) (UploadedFile, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return UploadedFile{}, err
	}
	defer conn.Quit()

	key := objectKey("", file.Name)
	remotePath := path.Join(s.baseDir, key)
	s.ensureDir(conn, path.Dir(remotePath))

	if err := conn.Stor(remotePath, file.Reader); err != nil {
		return UploadedFile{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return UploadedFile{URL: joinURL(s.baseURL, remotePath), Name: file.Name}, nil
}

// Delete deletes a previously uploaded file
func (s *FTPStorage) Delete(ctx context.Context, url string) error {
	base := strings.TrimRight(s.baseURL, "/")
	if !strings.HasPrefix(url, base) {
		return fmt.Errorf("url %q is not served by this storage", url)
	}
	remotePath := strings.TrimPrefix(strings.TrimPrefix(url, base), "/")
	if remotePath == "" {
		return fmt.Errorf("url %q has no path", url)
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	if err := conn.Delete(remotePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ensureDir 逐级创建目录，已存在时忽略错误
func (s *FTPStorage) ensureDir(conn *ftp.ServerConn, dir string) {
	current := ""
	for _, part := range strings.Split(dir, "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		_ = conn.MakeDir(current)
	}
}
