package assets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/viewtube/backend/internal/config"
)

const (
	imagePrefix = "images"
	videoPrefix = "videos"
)

// DurationProber resolves a media file's duration in seconds.
type DurationProber interface {
	Duration(ctx context.Context, localPath string) (float64, error)
}

// S3Store implements Store backed by an S3-compatible service. Every call
// runs under the configured timeout; a blown deadline surfaces as
// ErrUnavailable rather than hanging the request.
type S3Store struct {
	uploader *manager.Uploader
	client   *s3.Client
	bucket   string
	baseURL  string
	timeout  time.Duration
	prober   DurationProber
}

// NewS3Store configures a store targeting the provided bucket.
func NewS3Store(ctx context.Context, cfg config.ObjectStoreConfig, timeout time.Duration, prober DurationProber) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if strings.TrimSpace(cfg.Endpoint) != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:           cfg.Endpoint,
					SigningRegion: cfg.Region,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return &S3Store{
		uploader: uploader,
		client:   client,
		bucket:   cfg.Bucket,
		baseURL:  strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		timeout:  timeout,
		prober:   prober,
	}, nil
}

// UploadImage stores a local image file and returns its public URL.
func (s *S3Store) UploadImage(ctx context.Context, localPath string) (string, error) {
	return s.upload(ctx, imagePrefix, localPath)
}

// UploadVideo stores a local video file, probes its duration, and returns the
// public URL plus the duration rounded up to whole seconds.
func (s *S3Store) UploadVideo(ctx context.Context, localPath string) (VideoUpload, error) {
	var upload VideoUpload

	if s.prober == nil {
		return upload, fmt.Errorf("s3 store: no duration prober configured")
	}

	seconds, err := s.prober.Duration(ctx, localPath)
	if err != nil {
		return upload, classify(fmt.Errorf("probe video duration: %w", err))
	}

	location, err := s.upload(ctx, videoPrefix, localPath)
	if err != nil {
		return upload, err
	}

	upload.URL = location
	upload.Duration = int(math.Ceil(seconds))
	return upload, nil
}

// Delete removes the remote asset referenced by the URL. A missing object
// reports DeleteNotFound so callers can treat already-gone assets as success.
func (s *S3Store) Delete(ctx context.Context, assetURL string) (DeleteResult, error) {
	key, err := s.objectKey(assetURL)
	if err != nil {
		return DeleteError, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.client.HeadObject(callCtx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return DeleteNotFound, nil
		}
		return DeleteError, classify(fmt.Errorf("head object %s: %w", key, err))
	}

	if _, err := s.client.DeleteObject(callCtx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return DeleteError, classify(fmt.Errorf("delete object %s: %w", key, err))
	}

	return DeleteOK, nil
}

func (s *S3Store) upload(ctx context.Context, prefix, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(localPath))
	key := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
		ACL:    s3types.ObjectCannedACLPublicRead,
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(callCtx, input); err != nil {
		return "", classify(fmt.Errorf("upload %s: %w", key, err))
	}

	if s.baseURL == "" {
		return key, nil
	}
	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}

// objectKey maps a public asset URL back onto the bucket key it was stored
// under.
func (s *S3Store) objectKey(assetURL string) (string, error) {
	if s.baseURL != "" && strings.HasPrefix(assetURL, s.baseURL+"/") {
		return strings.TrimPrefix(assetURL, s.baseURL+"/"), nil
	}

	parsed, err := url.Parse(assetURL)
	if err != nil || parsed.Path == "" {
		return "", fmt.Errorf("derive object key from %q", assetURL)
	}
	return strings.TrimPrefix(parsed.Path, "/"), nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

var _ Store = (*S3Store)(nil)
