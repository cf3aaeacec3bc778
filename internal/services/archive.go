package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver stores raw consolidation output for later inspection.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

type S3Archiver struct {
	uploader *manager.Uploader
	bucket   string
}

func NewS3Archiver(client *s3.Client, bucket string) *S3Archiver {
	return &S3Archiver{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}
}

func (a *S3Archiver) Archive(ctx context.Context, key string, body []byte) error {
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", a.bucket, key, err)
	}
	return nil
}
