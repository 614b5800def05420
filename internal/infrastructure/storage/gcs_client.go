package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"houseshower/internal/domain/entity"
	"houseshower/internal/domain/service"
	"houseshower/pkg/errors"
	"houseshower/pkg/logger"
)

const uploadFolder = "uploads"

var _ service.ImageUploadService = (*CloudStorageClient)(nil)

type CloudStorageClient struct {
	client        *storage.Client
	bucketName    string
	publicBaseURL string
	policy        ImagePolicy
}

func NewCloudStorageClient(ctx context.Context, bucketName, publicBaseURL, credentialsPath string, maxSize int64) (*CloudStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	if publicBaseURL == "" {
		publicBaseURL = "https://storage.googleapis.com/" + bucketName
	}

	return &CloudStorageClient{
		client:        client,
		bucketName:    bucketName,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		policy:        NewImagePolicy(maxSize),
	}, nil
}

func (c *CloudStorageClient) Validate(file *entity.ImageFile) error {
	return c.policy.Validate(file)
}

// Upload validates file and stores it as a public object. Payloads that turn
// out larger than their declared size are aborted before the object is
// finalized.
func (c *CloudStorageClient) Upload(ctx context.Context, file *entity.ImageFile) (*entity.UploadResult, error) {
	if err := c.policy.Validate(file); err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("%s/%d-%s-%s%s",
		uploadFolder,
		time.Now().UnixMilli(),
		uuid.New().String()[:8],
		sanitizeFilename(file.Filename),
		c.policy.Extension(file.ContentType),
	)

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	obj := c.client.Bucket(c.bucketName).Object(objectName)
	wc := obj.NewWriter(writeCtx)
	wc.ContentType = file.ContentType
	wc.CacheControl = "public, max-age=86400" // 1 day caching

	written, err := io.Copy(wc, io.LimitReader(file.Content, c.policy.MaxSize+1))
	if err != nil {
		cancel()
		_ = wc.Close()
		return nil, errors.Internal("Failed to upload image", err)
	}
	if written > c.policy.MaxSize {
		cancel()
		_ = wc.Close()
		return nil, errors.BadRequest(fmt.Sprintf("File is too large. Maximum size: %dMB", c.policy.MaxSize/(1024*1024)), nil)
	}
	if err := wc.Close(); err != nil {
		return nil, errors.Internal("Failed to upload image", err)
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		// Buckets with uniform access reject object ACLs; public read then
		// comes from the bucket IAM policy.
		logger.Warn("Failed to set public ACL on %s: %v", objectName, err)
	}

	logger.Info("Uploaded image %s (%d bytes, %s)", objectName, written, file.ContentType)

	return &entity.UploadResult{
		URL:         c.publicBaseURL + "/" + objectName,
		Filename:    objectName,
		Size:        written,
		ContentType: file.ContentType,
	}, nil
}

// Delete removes an object previously returned by Upload. Unknown URLs and
// already deleted objects are not errors.
func (c *CloudStorageClient) Delete(ctx context.Context, fileURL string) error {
	objectName, ok := c.objectName(fileURL)
	if !ok {
		logger.Debug("Skipping delete of foreign image URL %s", fileURL)
		return nil
	}

	err := c.client.Bucket(c.bucketName).Object(objectName).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("failed to delete file: %v", err)
	}
	return nil
}

func (c *CloudStorageClient) objectName(fileURL string) (string, bool) {
	prefix := c.publicBaseURL + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(fileURL, prefix)
	if name == "" {
		return "", false
	}
	return name, true
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}
