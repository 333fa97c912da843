package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Archiver stores rendered exports in object storage so reports remain
// retrievable after the response is gone.
type Archiver struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// ArchiverConfig is the object-storage endpoint the archiver writes to.
type ArchiverConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewArchiver connects to the configured endpoint. An empty endpoint returns
// a nil archiver; callers treat that as archiving disabled.
func NewArchiver(cfg ArchiverConfig, logger *zap.Logger) (*Archiver, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}
	return &Archiver{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Store uploads a rendered export under exports/<date>/<filename> and returns
// the object name.
func (a *Archiver) Store(ctx context.Context, res *Result) (string, error) {
	objectName := fmt.Sprintf("exports/%s/%s", time.Now().Format("2006/01/02"), res.Filename)

	_, err := a.client.PutObject(ctx, a.bucket, objectName,
		bytes.NewReader(res.Data), int64(len(res.Data)),
		minio.PutObjectOptions{ContentType: res.MimeType})
	if err != nil {
		return "", fmt.Errorf("archive export: %w", err)
	}

	a.logger.Info("export archived",
		zap.String("object", objectName),
		zap.Int("bytes", res.Size),
	)
	return objectName, nil
}
