package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joelkehle/kontrata/internal/contract"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

type objectPutter interface {
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type MinioArchiver struct {
	client *minio.Client
	put    objectPutter
	bucket string
	prefix string
}

func NewMinioArchiver(cfg Config) (*MinioArchiver, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("archive endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioArchiver{client: client, put: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (a *MinioArchiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// Archive writes the rendered document and the full record as JSON next to
// each other under <prefix>/<category>/<id>.
func (a *MinioArchiver) Archive(ctx context.Context, rec contract.Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	meta, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	base := ObjectName(a.prefix, rec)
	if err := a.upload(ctx, base+".txt", []byte(rec.Content), "text/plain; charset=utf-8"); err != nil {
		return err
	}
	return a.upload(ctx, base+".json", meta, "application/json")
}

func (a *MinioArchiver) upload(ctx context.Context, object string, data []byte, contentType string) error {
	_, err := a.put.PutObject(ctx, a.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", object, err)
	}
	return nil
}

// ObjectName is the extension-less key for a record.
func ObjectName(prefix string, rec contract.Record) string {
	return path.Join(prefix, rec.Category.Key(), rec.ID)
}
