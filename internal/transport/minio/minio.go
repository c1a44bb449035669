package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/transport"
)

// Name is the transport module name of this backend.
const Name = "minio"

// noSuchKey is the error code of a missing object.
const noSuchKey = "NoSuchKey"

var (
	// ErrBuildNotFound is returned when removing a build that has no objects.
	ErrBuildNotFound = errors.New("build not found in bucket")
	// errRemoveFailed is returned when the server refuses to delete an object.
	errRemoveFailed = errors.New("object was not removed")
)

// Transport publishes to a MinIO bucket.
type Transport struct {
	*transport.Base

	// client is created on Init.
	client *minio.Client
	// bucket is the target bucket name.
	bucket string
	// prefix is prepended to every object key.
	prefix string
	// region is used when the bucket has to be created.
	region string
}

// New creates a MinIO transport. The client is created on Init.
func New(cfg *config.Config) (*Transport, error) {
	options := cfg.Transport

	if options.Endpoint == "" {
		return nil, fmt.Errorf("%w: transport.endpoint", transport.ErrMissingOption)
	}

	bucket := options.Bucket
	if bucket == "" && cfg.AppName != "" {
		bucket = cfg.AppName + "-updates"
	}

	if bucket == "" {
		return nil, fmt.Errorf("%w: transport.bucket", transport.ErrMissingOption)
	}

	c := *cfg
	if c.Transport.RemoteURL == "" {
		c.Transport.RemoteURL = ObjectURL(
			options.Endpoint, !options.Insecure, bucket, strings.TrimSuffix(options.PathPrefix, "/"))
	}

	base, err := transport.NewBase(&c)
	if err != nil {
		return nil, err
	}

	return &Transport{
		Base:   base,
		bucket: bucket,
		prefix: options.PathPrefix,
		region: options.Region,
	}, nil
}

// Init connects to the server and creates the bucket when it is missing.
func (t *Transport) Init(ctx context.Context) error {
	options := t.Options()

	client, err := minio.New(Host(options.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(options.AccessKeyID, options.SecretAccessKey, ""),
		Secure: !options.Insecure,
		Region: t.region,
	})
	if err != nil {
		return fmt.Errorf("create minio client: %w", err)
	}

	t.client = client

	exists, err := client.BucketExists(ctx, t.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", t.bucket, err)
	}

	if exists {
		return nil
	}

	if err = client.MakeBucket(ctx, t.bucket, minio.MakeBucketOptions{Region: t.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", t.bucket, err)
	}

	logger.InfoKV(ctx, "Bucket created", "bucket", t.bucket)

	return nil
}

// UploadFile puts a local file into <prefix><idWithVersion>/.
func (t *Transport) UploadFile(
	ctx context.Context,
	localPath string,
	b build.Build,
	progress transport.ProgressFunc,
) (string, error) {
	file, err := os.Open(filepath.Clean(localPath))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}

	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	key := t.prefix + b.IDWithVersion() + "/" + transport.NormalizeFileName(localPath)

	_, err = t.client.PutObject(ctx, t.bucket, key, file, info.Size(), minio.PutObjectOptions{
		ContentType: transport.ContentType(localPath),
		Progress:    NewProgressHook(localPath, info.Size(), progress),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to %s/%s: %w", localPath, t.bucket, key, err)
	}

	return t.FileURL(localPath, b), nil
}

// PushMetaFile overwrites <prefix><metaFileName>.
func (t *Transport) PushMetaFile(ctx context.Context, m *manifest.Manifest, b build.Build) (string, error) {
	var (
		key  = t.prefix + t.MetaFileName(b)
		body = m.Bytes()
	)

	_, err := t.client.PutObject(ctx, t.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  "application/json",
		CacheControl: "no-cache",
	})
	if err != nil {
		return "", fmt.Errorf("upload manifest %s/%s: %w", t.bucket, key, err)
	}

	return t.MetaFileURL(b), nil
}

// FetchMetaFile reads the manifest object. A missing object means no manifest yet.
func (t *Transport) FetchMetaFile(ctx context.Context, b build.Build) manifest.FetchResult {
	key := t.prefix + t.MetaFileName(b)

	object, err := t.client.GetObject(ctx, t.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return classify(t.bucket, key, err)
	}

	defer func() {
		_ = object.Close()
	}()

	data, err := io.ReadAll(object)
	if err != nil {
		return classify(t.bucket, key, err)
	}

	m, err := manifest.Parse(data)
	if err != nil {
		return manifest.Failed(fmt.Errorf("parse %s/%s: %w", t.bucket, key, err))
	}

	return manifest.Found(m)
}

// FetchBuildsList returns the top-level "directories" under the prefix that look like build ids.
func (t *Transport) FetchBuildsList(ctx context.Context) ([]string, error) {
	var names []string

	for object := range t.client.ListObjects(ctx, t.bucket, minio.ListObjectsOptions{Prefix: t.prefix}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", t.bucket, t.prefix, object.Err)
		}

		names = append(names, strings.TrimSuffix(strings.TrimPrefix(object.Key, t.prefix), "/"))
	}

	return transport.FilterBuildIDs(names), nil
}

// RemoveResource deletes every object under <prefix><id>/.
func (t *Transport) RemoveResource(ctx context.Context, id string) error {
	var (
		objects = make(chan minio.ObjectInfo)
		found   int
		listErr error
	)

	go func() {
		defer close(objects)

		listed := t.client.ListObjects(ctx, t.bucket, minio.ListObjectsOptions{
			Prefix:    t.prefix + id + "/",
			Recursive: true,
		})

		for object := range listed {
			if object.Err != nil {
				listErr = object.Err

				return
			}

			found++
			objects <- object
		}
	}()

	var firstErr error

	for removeErr := range t.client.RemoveObjects(ctx, t.bucket, objects, minio.RemoveObjectsOptions{}) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: %s: %w", errRemoveFailed, removeErr.ObjectName, removeErr.Err)
		}
	}

	if firstErr != nil {
		return firstErr
	}

	if listErr != nil {
		return fmt.Errorf("list objects of %s: %w", id, listErr)
	}

	if found == 0 {
		return fmt.Errorf("%w: %s", ErrBuildNotFound, id)
	}

	return nil
}

// classify turns a read error into a fetch result.
func classify(bucket, key string, err error) manifest.FetchResult {
	if IsNotFound(err) {
		return manifest.Empty()
	}

	return manifest.Failed(fmt.Errorf("get %s/%s: %w", bucket, key, err))
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == noSuchKey
}

// Host strips the scheme from an endpoint.
func Host(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	return strings.TrimSuffix(endpoint, "/")
}

// ObjectURL returns the path-style URL of a bucket location.
func ObjectURL(endpoint string, secure bool, bucket, prefix string) string {
	scheme := "https"
	if !secure {
		scheme = "http"
	}

	url := scheme + "://" + Host(endpoint) + "/" + bucket
	if prefix != "" {
		url += "/" + prefix
	}

	return url
}
