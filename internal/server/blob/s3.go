package blob

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/ateliertech/portal/internal/common"
	sc "github.com/ateliertech/portal/internal/server/config"
	"github.com/ateliertech/portal/internal/server/models"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Seams for tests.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in)
	}
)

// S3Store keeps application documents in an S3-compatible bucket (MinIO in
// development). The object key doubles as the handle's public id.
type S3Store struct {
	config *sc.Config
}

func NewS3Store(config *sc.Config) *S3Store {
	return &S3Store{config: config}
}

func (s *S3Store) getClient() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

func storageKey(ownerID, kind, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("applications/%s/%s/%v.%s", ownerID, kind, uuid.New(), ext)
}

// Upload stores data under a fresh key and returns the handle. Any client
// or transport failure surfaces as common.ErrUpstream.
func (s *S3Store) Upload(ctx context.Context, data []byte, filename, kind, ownerID string) (models.DocHandle, error) {
	client, err := s.getClient()
	if err != nil {
		return models.DocHandle{}, fmt.Errorf("%w: s3 client: %v", common.ErrUpstream, err)
	}

	key := storageKey(ownerID, kind, filename)
	bucket := s.config.S3Bucket

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return models.DocHandle{}, fmt.Errorf("%w: put object: %v", common.ErrUpstream, err)
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	return models.DocHandle{
		PublicID:     key,
		URL:          strings.TrimSuffix(s.config.S3BaseEndpoint, "/") + "/" + bucket + "/" + key,
		ResourceType: kind,
		Format:       ext,
		Bytes:        int64(len(data)),
		CreatedAt:    time.Now(),
	}, nil
}

// Delete removes the object behind publicID. Returns false when the delete
// call fails; deleting an already-absent object reports true.
func (s *S3Store) Delete(ctx context.Context, publicID string) (bool, error) {
	client, err := s.getClient()
	if err != nil {
		return false, fmt.Errorf("%w: s3 client: %v", common.ErrUpstream, err)
	}

	bucket := s.config.S3Bucket
	_, err = deleteObject(client, ctx, &s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &publicID,
	})
	if err != nil {
		return false, fmt.Errorf("%w: delete object: %v", common.ErrUpstream, err)
	}
	return true, nil
}
