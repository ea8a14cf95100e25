// Package archive stores accepted sync batches in S3-compatible object
// storage. Archiving is best effort: the sync transaction has already
// committed when a batch is written.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/garrison/internal/proto"
	"github.com/dmitrijs2005/garrison/internal/server/config"
	"github.com/google/uuid"
)

// Archiver persists one accepted batch.
type Archiver interface {
	Archive(ctx context.Context, deviceID string, ops []proto.ChangeEnvelope) error
}

// Batch is the archived document.
type Batch struct {
	DeviceID   string                 `json:"deviceId"`
	ReceivedAt time.Time              `json:"receivedAt"`
	Operations []proto.ChangeEnvelope `json:"operations"`
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Nop discards batches.
type Nop struct{}

func (Nop) Archive(context.Context, string, []proto.ChangeEnvelope) error { return nil }

// S3Archiver writes each batch as a JSON object.
type S3Archiver struct {
	client putter
	bucket string
	now    func() time.Time
	newKey func() string
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// New returns an S3Archiver for the configured bucket, or Nop when no
// bucket is set.
func New(ctx context.Context, c *config.Config) (Archiver, error) {
	if c.S3Bucket == "" {
		return Nop{}, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(c.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Archiver(client, c.S3Bucket), nil
}

func newS3Archiver(client putter, bucket string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		now:    time.Now,
		newKey: uuid.NewString,
	}
}

// Key returns the object key of a batch received at t.
func Key(deviceID string, t time.Time, id string) string {
	t = t.UTC()
	return fmt.Sprintf("sync/%d/%02d/%02d/%s/%s.json", t.Year(), t.Month(), t.Day(), deviceID, id)
}

func (a *S3Archiver) Archive(ctx context.Context, deviceID string, ops []proto.ChangeEnvelope) error {
	if len(ops) == 0 {
		return nil
	}

	now := a.now().UTC()
	body, err := json.Marshal(Batch{DeviceID: deviceID, ReceivedAt: now, Operations: ops})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(deviceID, now, a.newKey())),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put batch: %w", err)
	}

	return nil
}
