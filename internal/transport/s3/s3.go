package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/oshokin/release-publisher/internal/config"
	"github.com/oshokin/release-publisher/internal/domain/build"
	"github.com/oshokin/release-publisher/internal/domain/manifest"
	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/transport"
)

const (
	// Name is the transport module name of this backend.
	Name = "s3"

	// DefaultRegion is used when neither the option nor the AWS environment sets a region.
	DefaultRegion = "us-east-1"

	// DefaultACL is applied to uploaded objects when transport.acl is not set.
	DefaultACL = "public-read"

	// bucketSuffix forms the default bucket name from the application name.
	bucketSuffix = "-updates"

	// maxDeleteBatch is the DeleteObjects limit.
	maxDeleteBatch = 1000
)

var (
	// ErrBuildNotFound is returned when removing a build that has no objects.
	ErrBuildNotFound = errors.New("build not found in bucket")
	// errDeleteFailed is returned when DeleteObjects reports per-object errors.
	errDeleteFailed = errors.New("objects were not deleted")
)

// API is the subset of the S3 client used by the transport.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(
		ctx context.Context,
		params *s3.CreateBucketInput,
		optFns ...func(*s3.Options),
	) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(
		ctx context.Context,
		params *s3.ListObjectsV2Input,
		optFns ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)
	DeleteObjects(
		ctx context.Context,
		params *s3.DeleteObjectsInput,
		optFns ...func(*s3.Options),
	) (*s3.DeleteObjectsOutput, error)
}

// Transport publishes to an S3 bucket.
type Transport struct {
	*transport.Base

	// client is created on Init unless injected.
	client API
	// bucket is the target bucket name.
	bucket string
	// prefix is prepended to every object key.
	prefix string
	// acl is the canned ACL of uploaded objects.
	acl types.ObjectCannedACL
	// region is the bucket region.
	region string
}

// New creates an S3 transport. The client is created on Init.
func New(cfg *config.Config) (*Transport, error) {
	return NewWithClient(cfg, nil)
}

// NewWithClient creates an S3 transport that uses client instead of creating one.
func NewWithClient(cfg *config.Config, client API) (*Transport, error) {
	options := cfg.Transport

	bucket := options.Bucket
	if bucket == "" && cfg.AppName != "" {
		bucket = cfg.AppName + bucketSuffix
	}

	if bucket == "" {
		return nil, fmt.Errorf("%w: transport.bucket", transport.ErrMissingOption)
	}

	region := options.Region
	if region == "" {
		region = DefaultRegion
	}

	acl := options.ACL
	if acl == "" {
		acl = DefaultACL
	}

	c := *cfg
	if c.Transport.RemoteURL == "" {
		remoteURL, err := BucketURL(options.Endpoint, bucket, region, options.ForcePathStyle)
		if err != nil {
			return nil, err
		}

		c.Transport.RemoteURL = remoteURL + "/" + strings.TrimSuffix(options.PathPrefix, "/")
	}

	base, err := transport.NewBase(&c)
	if err != nil {
		return nil, err
	}

	return &Transport{
		Base:   base,
		client: client,
		bucket: bucket,
		prefix: options.PathPrefix,
		acl:    types.ObjectCannedACL(acl),
		region: region,
	}, nil
}

// Init creates the client and ensures the bucket exists.
func (t *Transport) Init(ctx context.Context) error {
	if t.client == nil {
		client, err := t.newClient(ctx)
		if err != nil {
			return err
		}

		t.client = client
	}

	return t.ensureBucket(ctx)
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

	key := t.objectKey(b, localPath)

	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          transport.NewProgressReader(file, localPath, info.Size(), progress),
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(transport.ContentType(localPath)),
		ACL:           t.acl,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to s3://%s/%s: %w", localPath, t.bucket, key, err)
	}

	logger.DebugKV(ctx, "Object uploaded", "bucket", t.bucket, "key", key)

	return t.FileURL(localPath, b), nil
}

// PushMetaFile overwrites <prefix><metaFileName>.
func (t *Transport) PushMetaFile(ctx context.Context, m *manifest.Manifest, b build.Build) (string, error) {
	var (
		key  = t.metaFileKey(b)
		body = m.Bytes()
	)

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
		CacheControl:  aws.String("no-cache"),
		ACL:           t.acl,
	})
	if err != nil {
		return "", fmt.Errorf("upload manifest s3://%s/%s: %w", t.bucket, key, err)
	}

	return t.MetaFileURL(b), nil
}

// FetchMetaFile reads the manifest object. A missing object means no manifest yet.
func (t *Transport) FetchMetaFile(ctx context.Context, b build.Build) manifest.FetchResult {
	key := t.metaFileKey(b)

	output, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return manifest.Empty()
		}

		return manifest.Failed(fmt.Errorf("get s3://%s/%s: %w", t.bucket, key, err))
	}

	defer func() {
		_ = output.Body.Close()
	}()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return manifest.Failed(fmt.Errorf("read s3://%s/%s: %w", t.bucket, key, err))
	}

	m, err := manifest.Parse(data)
	if err != nil {
		return manifest.Failed(fmt.Errorf("parse s3://%s/%s: %w", t.bucket, key, err))
	}

	return manifest.Found(m)
}

// FetchBuildsList returns the distinct top-level "directories" under the prefix that look like build ids.
func (t *Transport) FetchBuildsList(ctx context.Context) ([]string, error) {
	keys, err := t.listKeys(ctx, t.prefix)
	if err != nil {
		return nil, err
	}

	var (
		names = make([]string, 0, len(keys))
		seen  = make(map[string]struct{}, len(keys))
	)

	for _, key := range keys {
		name, _, _ := strings.Cut(strings.TrimPrefix(key, t.prefix), "/")
		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		names = append(names, name)
	}

	return transport.FilterBuildIDs(names), nil
}

// RemoveResource deletes every object under <prefix><id>/.
func (t *Transport) RemoveResource(ctx context.Context, id string) error {
	keys, err := t.listKeys(ctx, t.prefix+id+"/")
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return fmt.Errorf("%w: %s", ErrBuildNotFound, id)
	}

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		output, err := t.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(t.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete objects of %s: %w", id, err)
		}

		if len(output.Errors) > 0 {
			first := output.Errors[0]

			return fmt.Errorf("%w: %d objects of %s, first %s: %s",
				errDeleteFailed, len(output.Errors), id, aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}

	logger.DebugKV(ctx, "Objects deleted", "bucket", t.bucket, "id", id, "count", len(keys))

	return nil
}

// listKeys returns every object key with the prefix.
func (t *Transport) listKeys(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
	}

	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var (
		keys      []string
		paginator = s3.NewListObjectsV2Paginator(t.client, input)
	)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", t.bucket, prefix, err)
		}

		for _, object := range page.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}
	}

	return keys, nil
}

// ensureBucket creates the bucket when HeadBucket reports it missing.
func (t *Transport) ensureBucket(ctx context.Context) error {
	_, err := t.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(t.bucket)})
	if err == nil {
		return nil
	}

	var (
		notFound *types.NotFound
		noBucket *types.NoSuchBucket
	)

	if !errors.As(err, &notFound) && !errors.As(err, &noBucket) {
		return fmt.Errorf("check bucket %s: %w", t.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(t.bucket)}
	if t.region != DefaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(t.region),
		}
	}

	if _, err = t.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("create bucket %s: %w", t.bucket, err)
	}

	logger.InfoKV(ctx, "Bucket created", "bucket", t.bucket, "region", t.region)

	return nil
}

// newClient builds an SDK client from the default credential chain or static keys.
func (t *Transport) newClient(ctx context.Context) (*s3.Client, error) {
	options := t.Options()

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(t.region),
	}

	if options.AccessKeyID != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(options.AccessKeyID, options.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = options.ForcePathStyle

		if options.Endpoint != "" {
			o.BaseEndpoint = aws.String(options.Endpoint)
		}
	}), nil
}

func (t *Transport) objectKey(b build.Build, localPath string) string {
	return t.prefix + b.IDWithVersion() + "/" + transport.NormalizeFileName(localPath)
}

func (t *Transport) metaFileKey(b build.Build) string {
	return t.prefix + t.MetaFileName(b)
}

// BucketURL returns the public URL of a bucket.
func BucketURL(endpoint, bucket, region string, pathStyle bool) (string, error) {
	if endpoint == "" {
		endpoint = "https://s3." + region + ".amazonaws.com"
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: invalid transport.endpoint %q", transport.ErrMissingOption, endpoint)
	}

	if pathStyle {
		return parsed.Scheme + "://" + parsed.Host + "/" + bucket, nil
	}

	return parsed.Scheme + "://" + bucket + "." + parsed.Host, nil
}
