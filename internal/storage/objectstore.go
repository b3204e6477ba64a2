package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sdsc-ordes/debates-analytics/internal/config"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

const (
	presignExpiry = time.Hour
	// presigned POST uploads are capped at 500 MiB, matching the upload form
	maxUploadSize = 500 * 1024 * 1024
)

// PresignedPost carries everything a browser needs for a direct form upload.
type PresignedPost struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// ObjectStore is the S3 client. Keys follow the scheme
// {media_id}/source.{ext}, {media_id}/audio.wav and
// {media_id}/transcripts/{name}.
type ObjectStore struct {
	client        *minio.Client
	bucket        string
	endpointURL   string
	publicBaseURL string
}

// NewObjectStore builds a client for an S3-compatible endpoint.
func NewObjectStore(cfg config.S3Config) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL

	// The endpoint may be configured with a scheme; minio wants host:port.
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse s3 endpoint: %w", err)
		}
		secure = parsed.Scheme == "https"
		endpoint = parsed.Host
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	scheme := "http"
	if secure {
		scheme = "https"
	}

	return &ObjectStore{
		client:        client,
		bucket:        cfg.Bucket,
		endpointURL:   scheme + "://" + endpoint,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// Upload stores a local file under the given key.
func (o *ObjectStore) Upload(ctx context.Context, localPath, key string) error {
	_, err := o.client.FPutObject(ctx, o.bucket, key, localPath, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	log.Info("Uploaded %s to bucket %s", key, o.bucket)
	return nil
}

// Download fetches an object into a local file.
func (o *ObjectStore) Download(ctx context.Context, key, localPath string) error {
	if err := o.client.FGetObject(ctx, o.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}

// GetText reads an object's content as a string. A missing key returns an
// empty string and no error, so callers can treat absent transcript
// artifacts as skippable.
func (o *ObjectStore) GetText(ctx context.Context, key string) (string, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), nil
}

// ListByPrefix returns all object keys starting with the given prefix.
func (o *ObjectStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list prefix %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	log.Debug("Found %d objects with prefix %s", len(keys), prefix)
	return keys, nil
}

// DeletePrefix removes every object under the prefix.
func (o *ObjectStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := o.ListByPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := o.client.RemoveObject(ctx, o.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	log.Info("Deleted %d objects under prefix %s", len(keys), prefix)
	return nil
}

// PresignGet returns a time-limited download URL, rewritten to the public
// hostname so browsers can reach it.
func (o *ObjectStore) PresignGet(ctx context.Context, key string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%s", key))

	u, err := o.client.PresignedGetObject(ctx, o.bucket, key, presignExpiry, params)
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return o.toPublicURL(u.String()), nil
}

// PresignPost returns a presigned POST policy for a direct browser upload.
func (o *ObjectStore) PresignPost(ctx context.Context, key string) (*PresignedPost, error) {
	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(o.bucket); err != nil {
		return nil, fmt.Errorf("presign post: %w", err)
	}
	if err := policy.SetKey(key); err != nil {
		return nil, fmt.Errorf("presign post: %w", err)
	}
	if err := policy.SetExpires(time.Now().UTC().Add(presignExpiry)); err != nil {
		return nil, fmt.Errorf("presign post: %w", err)
	}
	if err := policy.SetContentLengthRange(1, maxUploadSize); err != nil {
		return nil, fmt.Errorf("presign post: %w", err)
	}

	u, fields, err := o.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("presign post %s: %w", key, err)
	}

	return &PresignedPost{
		URL:    o.toPublicURL(u.String()),
		Fields: fields,
	}, nil
}

// toPublicURL swaps the internal endpoint for the public-facing one.
func (o *ObjectStore) toPublicURL(raw string) string {
	if o.publicBaseURL == "" {
		return raw
	}
	return strings.Replace(raw, o.endpointURL, o.publicBaseURL, 1)
}
