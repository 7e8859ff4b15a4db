package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"agreeme/app/models"
	"agreeme/inference"
	"agreeme/queue"
)

type memObjects struct {
	puts map[string][]byte
}

func (m *memObjects) Put(_ context.Context, key string, body []byte, _ string) error {
	if m.puts == nil {
		m.puts = map[string][]byte{}
	}
	m.puts[key] = body
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string) (string, error) {
	return "https://objects.test/" + key, nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	delete(m.puts, key)
	return nil
}

type recordingPublisher struct {
	jobs []any
}

func (p *recordingPublisher) Publish(_ context.Context, job any) error {
	p.jobs = append(p.jobs, job)
	return nil
}

type fakeInvoker struct {
	async    []any
	sync     []any
	response *inference.FunctionResponse
	err      error
}

func (f *fakeInvoker) Invoke(_ context.Context, _ string, payload any) (*inference.FunctionResponse, error) {
	f.sync = append(f.sync, payload)
	return f.response, f.err
}

func (f *fakeInvoker) InvokeAsync(_ context.Context, _ string, payload any) error {
	f.async = append(f.async, payload)
	return nil
}

func fixedService(objects *memObjects, jobs JobPublisher, inv inference.Invoker, fn string) *Service {
	s := NewService(objects, jobs, inv, fn)
	s.now = func() time.Time { return time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC) }
	return s
}

func TestUploadQueuesIngestJob(t *testing.T) {
	objects := &memObjects{}
	pub := &recordingPublisher{}
	inv := &fakeInvoker{}
	svc := fixedService(objects, pub, inv, "ingest")

	key, err := svc.Upload(context.Background(), "luat_dat_dai.pdf", "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Upload error = %v", err)
	}
	if !strings.HasPrefix(key, "legal-corpus/original-docs/") || !strings.HasSuffix(key, "luat_dat_dai.pdf") {
		t.Fatalf("unexpected key %q", key)
	}
	if _, ok := objects.puts[key]; !ok {
		t.Fatalf("document not stored")
	}
	if len(pub.jobs) != 1 || len(inv.async) != 0 {
		t.Fatalf("expected one queued job and no direct invoke, got %d/%d", len(pub.jobs), len(inv.async))
	}
	job := pub.jobs[0].(models.IngestJob)
	if job.Action != models.ActionIngestLegalDoc || job.S3Key != key {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestUploadFallsBackToAsyncInvoke(t *testing.T) {
	inv := &fakeInvoker{}
	svc := fixedService(&memObjects{}, nil, inv, "ingest")
	if _, err := svc.Upload(context.Background(), "nghi_dinh.docx", "", []byte("x")); err != nil {
		t.Fatalf("Upload error = %v", err)
	}
	if len(inv.async) != 1 {
		t.Fatalf("expected async invoke, got %d", len(inv.async))
	}
}

func TestUploadRequiresFile(t *testing.T) {
	svc := fixedService(&memObjects{}, nil, nil, "")
	if _, err := svc.Upload(context.Background(), "a.pdf", "", nil); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
}

func TestHandleIngest(t *testing.T) {
	inv := &fakeInvoker{response: &inference.FunctionResponse{StatusCode: 200}}
	svc := fixedService(&memObjects{}, nil, inv, "ingest")
	body, _ := json.Marshal(models.IngestJob{Action: models.ActionIngestLegalDoc, S3Key: "legal-corpus/original-docs/a.pdf"})

	if err := svc.HandleIngest(context.Background(), body); err != nil {
		t.Fatalf("HandleIngest error = %v", err)
	}
	if len(inv.sync) != 1 {
		t.Fatalf("expected one sync invoke, got %d", len(inv.sync))
	}

	inv.response = &inference.FunctionResponse{StatusCode: 500}
	if err := svc.HandleIngest(context.Background(), body); err == nil || errors.Is(err, queue.ErrPoison) {
		t.Fatalf("failed ingest should be retried, got %v", err)
	}
}

func TestHandleIngestPoison(t *testing.T) {
	svc := fixedService(&memObjects{}, nil, &fakeInvoker{}, "ingest")
	for _, body := range []string{"not json", `{"action":"review","s3_key":"x"}`, `{"action":"ingest_legal_doc"}`} {
		if err := svc.HandleIngest(context.Background(), []byte(body)); !errors.Is(err, queue.ErrPoison) {
			t.Fatalf("body %q: expected ErrPoison, got %v", body, err)
		}
	}
}
