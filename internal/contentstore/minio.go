package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docmill/internal/config"
	"docmill/internal/services"
)

// minioGateway implements Gateway against an S3-compatible backend. Folders
// map to key prefixes and file identifiers are object keys. It is safe for
// concurrent use.
type minioGateway struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates a content-store gateway backed by an S3-compatible store.
// Credential refresh is handled inside the minio client, so every call below
// runs with a valid token.
func NewMinIO(cfg config.ContentStore) (Gateway, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("content_store.endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("content store credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("content_store.bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create content store client: %w", err)
	}

	return &minioGateway{client: cli, bucket: cfg.Bucket}, nil
}

func (g *minioGateway) List(ctx context.Context, folderID string, opts ListOptions) ([]Item, error) {
	prefix := strings.TrimSuffix(folderID, "/") + "/"
	var items []Item
	for object := range g.client.ListObjects(ctx, g.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if object.Err != nil {
			return nil, services.Wrap(services.ErrTransientGateway, "content-store", "list", folderID, object.Err)
		}
		name := path.Base(object.Key)
		if strings.HasSuffix(object.Key, "/") || name == "" {
			continue
		}
		if opts.NamePrefix != "" && !strings.HasPrefix(name, opts.NamePrefix) {
			continue
		}
		items = append(items, Item{
			ID:        object.Key,
			Name:      name,
			Folder:    folderID,
			Size:      object.Size,
			CreatedAt: object.LastModified,
		})
		if opts.Limit > 0 && len(items) >= opts.Limit {
			break
		}
	}
	return items, nil
}

func (g *minioGateway) Fetch(ctx context.Context, fileID string) (io.ReadCloser, error) {
	obj, err := g.client.GetObject(ctx, g.bucket, fileID, minio.GetObjectOptions{})
	if err != nil {
		return nil, services.Wrap(services.ErrTransientGateway, "content-store", "fetch", fileID, err)
	}
	// GetObject defers the request; surface missing objects eagerly.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, services.Wrap(services.ErrNotFound, "content-store", "fetch", fileID, err)
		}
		return nil, services.Wrap(services.ErrTransientGateway, "content-store", "fetch", fileID, err)
	}
	return obj, nil
}

func (g *minioGateway) Upload(ctx context.Context, folderID, name string, r io.Reader, size int64) (string, error) {
	key := path.Join(folderID, name)
	if _, err := g.client.StatObject(ctx, g.bucket, key, minio.StatObjectOptions{}); err == nil {
		return "", services.Wrap(services.ErrConflict, "content-store", "upload", fmt.Sprintf("name %q already exists in %s", name, folderID), nil)
	} else if !isNotFound(err) {
		return "", services.Wrap(services.ErrTransientGateway, "content-store", "upload", key, err)
	}

	if _, err := g.client.PutObject(ctx, g.bucket, key, r, size, minio.PutObjectOptions{}); err != nil {
		return "", services.Wrap(services.ErrTransientGateway, "content-store", "upload", key, err)
	}
	return key, nil
}

func (g *minioGateway) Delete(ctx context.Context, fileID string) error {
	if err := g.client.RemoveObject(ctx, g.bucket, fileID, minio.RemoveObjectOptions{}); err != nil {
		return services.Wrap(services.ErrTransientGateway, "content-store", "delete", fileID, err)
	}
	return nil
}

func (g *minioGateway) SignedURL(ctx context.Context, fileID string, ttl time.Duration) (string, error) {
	u, err := g.client.PresignedGetObject(ctx, g.bucket, fileID, ttl, nil)
	if err != nil {
		return "", services.Wrap(services.ErrTransientGateway, "content-store", "sign url", fileID, err)
	}
	return u.String(), nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
