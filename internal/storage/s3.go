package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"estimator/internal/utils"
	"estimator/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectAPI is the part of *s3.Client used for document storage
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores uploaded estimate documents in a single bucket
type S3Storage struct {
	client ObjectAPI
	bucket string
}

func NewS3Storage(client ObjectAPI, bucket string) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: bucket,
	}
}

// Key builds the object key for a document. Documents are grouped by the
// entity they were first uploaded against, which may be a temporary id;
// the key does not change when the document is reconciled.
func Key(entityType types.EntityType, entityID, documentID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return path.Join(strings.ToLower(string(entityType)), entityID, documentID+"-"+name)
}

// UploadFile writes body to key and returns the key
func (s *S3Storage) UploadFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return key, nil
}

// DeleteFile removes key from the bucket
func (s *S3Storage) DeleteFile(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return utils.ErrorWrapOrNil(err, fmt.Sprintf("failed to delete %s", key))
}
