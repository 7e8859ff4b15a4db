// Package corpus adds legal documents to the retrieval corpus.
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agreeme/app/models"
	"agreeme/inference"
	"agreeme/queue"
	"agreeme/storage"
)

var (
	ErrNoFile          = errors.New("no law document uploaded")
	ErrIngestNotConfig = errors.New("ingest function not configured")
)

// JobPublisher queues ingest jobs.
type JobPublisher interface {
	Publish(ctx context.Context, job any) error
}

// Service stores law documents and schedules their ingestion.
type Service struct {
	objects        storage.ObjectStore
	jobs           JobPublisher
	invoker        inference.Invoker
	ingestFunction string
	now            func() time.Time
}

// NewService builds a Service. With jobs set, ingestion goes through the queue;
// otherwise the ingest function is invoked asynchronously when configured.
func NewService(objects storage.ObjectStore, jobs JobPublisher, invoker inference.Invoker, ingestFunction string) *Service {
	return &Service{
		objects:        objects,
		jobs:           jobs,
		invoker:        invoker,
		ingestFunction: ingestFunction,
		now:            time.Now,
	}
}

// Upload stores a law document and triggers its ingestion. It returns the storage key.
// A failed trigger is logged; the document stays in the corpus folder for a later run.
func (s *Service) Upload(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoFile
	}
	key, err := storage.BuildKey(storage.FolderLegalCorpus, "", fileName, s.now())
	if err != nil {
		return "", err
	}
	if err := s.objects.Put(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("store law document: %w", err)
	}

	job := models.IngestJob{Action: models.ActionIngestLegalDoc, S3Key: key}
	switch {
	case s.jobs != nil:
		if err := s.jobs.Publish(ctx, job); err != nil {
			slog.Error("queue ingest job failed", "key", key, "err", err)
		}
	case s.invoker != nil && s.ingestFunction != "":
		if err := s.invoker.InvokeAsync(ctx, s.ingestFunction, job); err != nil {
			slog.Error("trigger ingest failed", "key", key, "err", err)
		}
	default:
		slog.Warn("ingest not configured, document stored only", "key", key)
	}
	return key, nil
}

// HandleIngest runs one queued ingest job against the ingest function.
func (s *Service) HandleIngest(ctx context.Context, body []byte) error {
	var job models.IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrPoison, err)
	}
	if job.Action != models.ActionIngestLegalDoc || job.S3Key == "" {
		return fmt.Errorf("%w: action %q key %q", queue.ErrPoison, job.Action, job.S3Key)
	}
	if s.invoker == nil || s.ingestFunction == "" {
		return ErrIngestNotConfig
	}

	start := time.Now()
	resp, err := s.invoker.Invoke(ctx, s.ingestFunction, job)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", job.S3Key, err)
	}
	if !resp.OK() {
		return fmt.Errorf("ingest %s: status %d", job.S3Key, resp.StatusCode)
	}
	slog.Info("ingested law document", "key", job.S3Key, "elapsed", time.Since(start))
	return nil
}
