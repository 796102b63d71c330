// Package spaces implements a convenience client over the DigitalOcean
// Spaces object-storage API. It translates folder/file operations into
// S3-compatible calls: folders are emulated as zero-byte marker objects and
// delimiter-grouped prefixes, and large uploads are driven through the
// multipart upload protocol. Durability, consistency, and transport retries
// are owned by the underlying service and SDK.
package spaces

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"dospaces/internal/config"
	"dospaces/internal/metrics"
	"dospaces/internal/port"
)

// API is the subset of the S3 client interface used by the client.
// It enables testing with mock implementations.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Client is an object-store client bound to a single bucket, region, and
// credential set. The configuration is immutable after construction; each
// operation is an independent, blocking remote call.
type Client struct {
	api      API
	uploader *manager.Uploader
	cfg      *config.SpacesConfig
	log      *zap.Logger
	metrics  *metrics.Collector
}

var _ port.ObjectStore = (*Client)(nil)

// NewClient builds a Client backed by the real Spaces endpoint.
func NewClient(ctx context.Context, cfg *config.SpacesConfig, logger *zap.Logger, collector *metrics.Collector) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spaces configuration: %w", err)
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(cfg.RetryMaxAttempts),
		awsconfig.WithRetryMode(aws.RetryMode(cfg.RetryMode)),
	)
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		// Spaces buckets are addressed virtual-host style.
		o.UsePathStyle = false
	})

	return New(client, cfg, logger, collector), nil
}

// New builds a Client over an already-configured API implementation.
func New(api API, cfg *config.SpacesConfig, logger *zap.Logger, collector *metrics.Collector) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:      api,
		uploader: manager.NewUploader(api),
		cfg:      cfg,
		log:      logger,
		metrics:  collector,
	}
}

// Bucket returns the configured default bucket name.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// Connect confirms that the bucket is reachable and returns its name.
// An empty bucket argument selects the configured default. Returns
// ErrBucketNotFound when the bucket does not exist.
func (c *Client) Connect(ctx context.Context, bucket string) (string, error) {
	if bucket == "" {
		bucket = c.cfg.Bucket
	}

	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		c.metrics.ObserveError("connect")
		if isNotFound(err) {
			return "", fmt.Errorf("bucket %q: %w", bucket, ErrBucketNotFound)
		}
		return "", fmt.Errorf("head bucket %q: %w", bucket, err)
	}

	c.log.Info("connected to bucket", zap.String("bucket", bucket))
	return bucket, nil
}

// ListBuckets enumerates all buckets owned by the credential.
func (c *Client) ListBuckets(ctx context.Context) ([]string, error) {
	out, err := c.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		c.metrics.ObserveError("list_buckets")
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// CreateBucket creates the configured bucket. A bucket that already exists
// and is owned by the caller is not an error.
func (c *Client) CreateBucket(ctx context.Context) error {
	_, err := c.api.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.cfg.Bucket),
	})
	if err != nil {
		if isBucketAlreadyOwned(err) {
			c.log.Debug("bucket already exists", zap.String("bucket", c.cfg.Bucket))
			return nil
		}
		c.metrics.ObserveError("create_bucket")
		return fmt.Errorf("create bucket %q: %w", c.cfg.Bucket, err)
	}

	c.log.Info("created bucket", zap.String("bucket", c.cfg.Bucket))
	return nil
}

// CreateFolder writes the zero-byte marker object at folderPath + "/".
func (c *Client) CreateFolder(ctx context.Context, folderPath string) error {
	key := folderKey(folderPath)
	_, err := c.api.PutObject(ctx, c.applyObjectDefaults(&s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(""),
	}))
	if err != nil {
		c.metrics.ObserveError("create_folder")
		return fmt.Errorf("create folder %q: %w", folderPath, err)
	}

	c.log.Info("created folder", zap.String("key", key))
	return nil
}

// FolderExists reports whether the folder's marker object exists. A remote
// not-found is a normal negative result; any other failure is returned as an
// error rather than conflated with absence.
func (c *Client) FolderExists(ctx context.Context, folderPath string) (bool, error) {
	return c.keyExists(ctx, folderKey(folderPath), "folder_exists")
}

// FileExists reports whether the object at filePath exists.
func (c *Client) FileExists(ctx context.Context, filePath string) (bool, error) {
	return c.keyExists(ctx, filePath, "file_exists")
}

func (c *Client) keyExists(ctx context.Context, key, operation string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		c.metrics.ObserveError(operation)
		return false, fmt.Errorf("head object %q: %w", key, err)
	}
	return true, nil
}

// UploadFile writes the object at filePath, unconditionally overwriting any
// existing object at that key.
func (c *Client) UploadFile(ctx context.Context, filePath string, body io.Reader) error {
	counted := &countingReader{r: body}
	_, err := c.uploader.Upload(ctx, c.applyObjectDefaults(&s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(filePath),
		Body:   counted,
	}))
	if err != nil {
		c.metrics.ObserveError("upload_file")
		return fmt.Errorf("upload %q: %w", filePath, err)
	}

	c.metrics.ObserveUpload(counted.n)
	c.log.Info("uploaded file",
		zap.String("key", filePath),
		zap.Int64("bytes", counted.n),
	)
	return nil
}

// DeleteFile removes the object at filePath. Deleting a missing object is a
// no-op on the remote side.
func (c *Client) DeleteFile(ctx context.Context, filePath string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(filePath),
	})
	if err != nil {
		c.metrics.ObserveError("delete_file")
		return fmt.Errorf("delete %q: %w", filePath, err)
	}

	c.log.Info("deleted file", zap.String("key", filePath))
	return nil
}

// DeleteFolder removes the folder marker and every object under the folder,
// in paginated batches. An empty or nonexistent folder deletes nothing and
// is not an error.
func (c *Client) DeleteFolder(ctx context.Context, folderPath string) error {
	prefix := folderKey(folderPath)
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.cfg.Bucket),
		Prefix: aws.String(prefix),
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			c.metrics.ObserveError("delete_folder")
			return fmt.Errorf("list folder %q: %w", folderPath, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.cfg.Bucket),
			Delete: &types.Delete{
				Objects: ids,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			c.metrics.ObserveError("delete_folder")
			return fmt.Errorf("delete folder %q batch: %w", folderPath, err)
		}
		deleted += len(ids)
	}

	c.log.Info("deleted folder",
		zap.String("key", prefix),
		zap.Int("objects", deleted),
	)
	return nil
}

// ListFolders returns the subfolder prefixes immediately under prefix, one
// level deep, derived from common-prefix grouping at the "/" delimiter.
func (c *Client) ListFolders(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.cfg.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var folders []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			c.metrics.ObserveError("list_folders")
			return nil, fmt.Errorf("list folders under %q: %w", prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			folders = append(folders, aws.ToString(cp.Prefix))
		}
	}
	return folders, nil
}

// ListFolderContents returns the immediate children of the folder, both
// object keys and subfolder prefixes, excluding the folder's own marker.
// Returns ErrFolderNotFound when the folder does not exist: a missing folder
// is a precondition violation, not an empty folder.
func (c *Client) ListFolderContents(ctx context.Context, folderPath string) ([]string, error) {
	exists, err := c.FolderExists(ctx, folderPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("folder %q: %w", folderPath, ErrFolderNotFound)
	}

	marker := folderKey(folderPath)
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.cfg.Bucket),
		Prefix:    aws.String(marker),
		Delimiter: aws.String("/"),
	})

	var contents []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			c.metrics.ObserveError("list_folder_contents")
			return nil, fmt.Errorf("list folder %q: %w", folderPath, err)
		}
		for _, obj := range page.Contents {
			if key := aws.ToString(obj.Key); key != marker {
				contents = append(contents, key)
			}
		}
		for _, cp := range page.CommonPrefixes {
			if p := aws.ToString(cp.Prefix); p != marker {
				contents = append(contents, p)
			}
		}
	}
	return contents, nil
}

// applyObjectDefaults stamps the configured cache-control, canned ACL, and
// server-side encryption onto a write.
func (c *Client) applyObjectDefaults(in *s3.PutObjectInput) *s3.PutObjectInput {
	if c.cfg.CacheControl != "" {
		in.CacheControl = aws.String(c.cfg.CacheControl)
	}
	if c.cfg.ACL != "" {
		in.ACL = types.ObjectCannedACL(c.cfg.ACL)
	}
	if c.cfg.ServerSideEncryption != "" {
		in.ServerSideEncryption = types.ServerSideEncryption(c.cfg.ServerSideEncryption)
	}
	return in
}

// folderKey addresses a folder's marker object: the path with a trailing "/".
func folderKey(folderPath string) string {
	return strings.TrimSuffix(folderPath, "/") + "/"
}

// countingReader tracks how many bytes have been read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
