// Package minio archives raw generation payloads to object storage for audit.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/signalweave/signalweave/internal/application/synthesis"
	"github.com/signalweave/signalweave/internal/config"
	"github.com/signalweave/signalweave/internal/domain/batch"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

// Archiver stores each batch's raw generation payload as one JSON object.
// Archiving is best effort from the orchestrator's point of view, but the
// object key is deterministic so a rerun overwrites its own payload.
type Archiver struct {
	client *minio.Client
	bucket string
	logger logging.Logger
}

var _ synthesis.Archiver = (*Archiver)(nil)

// NewArchiver connects to object storage and ensures the audit bucket exists.
func NewArchiver(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.Validation("minio bucket name is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "creating minio client")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "checking minio bucket")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "creating minio bucket")
		}
		log.Info("created archive bucket", logging.String("bucket", cfg.Bucket))
	}

	log.Info("connected to MinIO",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket))
	return &Archiver{client: client, bucket: cfg.Bucket, logger: log}, nil
}

// ArchivePayload writes the raw generation payload under
// synthesis/<batch_id>/generation.json.
func (a *Archiver) ArchivePayload(ctx context.Context, rec *batch.SynthesisBatch, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	key := fmt.Sprintf("synthesis/%s/generation.json", rec.BatchID)
	_, err := a.client.PutObject(ctx, a.bucket, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "archiving generation payload")
	}

	a.logger.Debug("generation payload archived",
		logging.String("batch_id", string(rec.BatchID)),
		logging.String("object", key),
		logging.Int("bytes", len(payload)))
	return nil
}
