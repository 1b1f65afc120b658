// Package artifact resolves installer package locations, downloading packages
// kept in object storage.
package artifact

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the object storage connection settings.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Location names an object in a bucket.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// ParseURL recognises s3://bucket/key locations. ok is false for anything
// else, which callers treat as a local path.
func ParseURL(raw string) (loc Location, ok bool, err error) {
	if !strings.HasPrefix(raw, "s3://") {
		return Location{}, false, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, true, fmt.Errorf("parse %s: %w", raw, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Location{}, true, fmt.Errorf("%s: expected s3://bucket/key", raw)
	}
	return Location{Bucket: u.Host, Key: key}, true, nil
}

type objectGetter interface {
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// Fetcher downloads packages from object storage.
type Fetcher struct {
	client objectGetter
}

// NewFetcher connects to the configured endpoint.
func NewFetcher(cfg S3Config) (*Fetcher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &Fetcher{client: client}, nil
}

// Fetch downloads loc into dir and returns the local path.
func (f *Fetcher) Fetch(ctx context.Context, loc Location, dir string) (string, error) {
	if f == nil || f.client == nil {
		return "", fmt.Errorf("fetcher is nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, path.Base(loc.Key))
	if err := f.client.FGetObject(ctx, loc.Bucket, loc.Key, dest, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("download %s: %w", loc, err)
	}
	return dest, nil
}

// Resolve returns a local path for pkg. Local paths must exist; s3:// URLs
// are downloaded into dir with a fetcher built from cfg.
func Resolve(ctx context.Context, pkg, dir string, cfg S3Config) (string, error) {
	loc, remote, err := ParseURL(pkg)
	if err != nil {
		return "", err
	}
	if !remote {
		if _, err := os.Stat(pkg); err != nil {
			return "", fmt.Errorf("package %s: %w", pkg, err)
		}
		return pkg, nil
	}
	f, err := NewFetcher(cfg)
	if err != nil {
		return "", err
	}
	return f.Fetch(ctx, loc, dir)
}
