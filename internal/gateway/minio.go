package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"arkstore/internal/config"
	"arkstore/internal/model"
	"arkstore/internal/tags"
)

// minioConn is one upload connection over the S3-compatible permaweb
// gateway. Objects are keyed by the SHA-256 of their content, so the key
// doubles as the transaction id the network reports back.
type minioConn struct {
	client *minio.Client
	bucket string
}

// NewMinIOFactory validates the gateway settings once and returns a Factory
// that opens a fresh client session per pooled connection.
func NewMinIOFactory(cfg config.GatewayConfig) (Factory, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("gateway endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("gateway credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gateway bucket is required")
	}

	return func() (Uploader, error) {
		cli, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create gateway client: %w", err)
		}
		return &minioConn{client: cli, bucket: cfg.Bucket}, nil
	}, nil
}

// Upload pushes the bytes under their content hash with the tag list mapped
// to user metadata. Re-uploading identical content yields the same
// transaction id; the ledger's unique constraint surfaces that as a
// duplicate rather than double-counting it.
func (c *minioConn) Upload(ctx context.Context, data []byte, tagList []model.Tag) (Receipt, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	opts := minio.PutObjectOptions{
		ContentType:  contentTypeOf(tagList),
		UserMetadata: metadataOf(tagList),
	}
	if _, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return Receipt{}, err
	}
	return Receipt{TxID: key}, nil
}

func contentTypeOf(tagList []model.Tag) string {
	for _, t := range tagList {
		if t.Name == tags.TagContentType {
			return t.Value
		}
	}
	return "application/octet-stream"
}

// metadataOf flattens the tag list for the S3 metadata header space.
// Repeated names keep every value, comma-joined, since the tag list itself
// is append-only.
func metadataOf(tagList []model.Tag) map[string]string {
	md := make(map[string]string, len(tagList))
	for _, t := range tagList {
		if prev, ok := md[t.Name]; ok {
			md[t.Name] = strings.Join([]string{prev, t.Value}, ",")
			continue
		}
		md[t.Name] = t.Value
	}
	return md
}
