package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shaiso/dwloader/internal/config"
)

// ErrSourceUnavailable — каталог или бакет с исходными файлами недоступен.
var ErrSourceUnavailable = errors.New("staging source unavailable")

// Source — откуда читаются исходные файлы.
type Source interface {
	// Check проверяет, что источник доступен.
	Check(ctx context.Context) error

	// Open открывает файл по имени. Отсутствующий файл — fs.ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	String() string
}

// NewSource выбирает источник по STAGING.source:
// s3://bucket/prefix — объектное хранилище, иначе путь на диске.
func NewSource(cfg config.StagingConfig) (Source, error) {
	bucket, prefix, ok := parseS3(cfg.Source)
	if !ok {
		return DirSource{Dir: cfg.Source}, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: STAGING.endpoint is required for %s", config.ErrConfiguration, cfg.Source)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &ObjectSource{client: client, bucket: bucket, prefix: prefix}, nil
}

func parseS3(source string) (bucket, prefix string, ok bool) {
	rest, found := strings.CutPrefix(source, "s3://")
	if !found {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/"), bucket != ""
}

// DirSource — каталог на диске.
type DirSource struct {
	Dir string
}

// Check проверяет, что каталог существует.
func (s DirSource) Check(context.Context) error {
	info, err := os.Stat(s.Dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrSourceUnavailable, s.Dir)
	}
	return nil
}

// Open открывает файл каталога.
func (s DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Dir, name))
}

func (s DirSource) String() string {
	return s.Dir
}

// ObjectSource — префикс в бакете S3/MinIO.
type ObjectSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// Check проверяет, что бакет существует.
func (s *ObjectSource) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if !exists {
		return fmt.Errorf("%w: bucket %s not found", ErrSourceUnavailable, s.bucket)
	}
	return nil
}

// Open открывает объект prefix/name.
func (s *ObjectSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.key(name)

	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", s.describe(key), fs.ErrNotExist)
		}
		return nil, fmt.Errorf("stat %s: %w", s.describe(key), err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.describe(key), err)
	}
	return obj, nil
}

func (s *ObjectSource) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *ObjectSource) describe(key string) string {
	return "s3://" + s.bucket + "/" + key
}

func (s *ObjectSource) String() string {
	return s.describe(s.prefix)
}
