package internal

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// S3Archiver stores raw upload bytes so the original file survives the
// parsed representation. Archival is best effort: the upload flow treats
// failures as non-fatal and continues without an archive key.
type S3Archiver struct {
	uploader *manager.Uploader
	bucket   string
	logger   *zap.SugaredLogger
}

// NewS3Archiver loads the default AWS config chain and targets the given
// bucket.
func NewS3Archiver(ctx context.Context, bucket string) (*S3Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3Archiver{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		logger:   zap.S().Named("archive"),
	}, nil
}

// Archive writes the raw file bytes under a session-scoped key and returns
// the key.
func (a *S3Archiver) Archive(ctx context.Context, sessionID string, uploadID uuid.UUID, fileName string, data []byte) (string, error) {
	key := fmt.Sprintf("uploads/%s/%s-%s", sessionID, uploadID, fileName)
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("archive upload %s: %w", key, err)
	}
	a.logger.Infow("raw upload archived", "bucket", a.bucket, "key", key, "bytes", len(data))
	return key, nil
}
