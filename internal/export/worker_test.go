package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"protocoldesk/internal/blob"
	"protocoldesk/pkg/domain"
)

type loaderFunc func(ctx context.Context, id int64) (domain.Protocol, error)

func (f loaderFunc) GetProtocol(ctx context.Context, id int64) (domain.Protocol, error) {
	return f(ctx, id)
}

func staticLoader(p domain.Protocol) loaderFunc {
	return func(_ context.Context, id int64) (domain.Protocol, error) {
		if id != p.ID {
			return domain.Protocol{}, &domain.NotFoundError{Entity: domain.EntityProtocol, ID: "x"}
		}
		return p, nil
	}
}

func waitFor(t *testing.T, w *Worker, id string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := w.Get(id)
		if ok && (job.Status == StatusSucceeded || job.Status == StatusFailed) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("export %s did not finish", id)
	return Job{}
}

func TestWorkerStoresWorkbook(t *testing.T) {
	p := fixtureProtocol()
	store := blob.NewMemory()
	var mu sync.Mutex
	var observed []Status
	w := NewWorker(staticLoader(p), store, WithQueueSize(4), WithObserver(func(s Status, _ time.Duration) {
		mu.Lock()
		observed = append(observed, s)
		mu.Unlock()
	}))
	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()

	queued, err := w.Enqueue(context.Background(), p.ID, "tester")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != StatusQueued || queued.ProtocolNumber != 12 {
		t.Fatalf("queued = %+v", queued)
	}
	job := waitFor(t, w, queued.ID)
	if job.Status != StatusSucceeded || job.Artifact == nil {
		t.Fatalf("job = %+v", job)
	}
	if job.Artifact.FileName != FileName(12) || !strings.HasSuffix(job.Artifact.Key, FileName(12)) {
		t.Fatalf("artifact = %+v", job.Artifact)
	}
	if job.CompletedAt == nil || job.RequestedBy != "tester" {
		t.Fatalf("job metadata = %+v", job)
	}

	_, rc, err := w.Open(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	payload, _ := io.ReadAll(rc)
	_ = rc.Close()
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("stored payload is not a workbook: %v", err)
	}
	_ = f.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(observed) != 1 || observed[0] != StatusSucceeded {
		t.Fatalf("observed = %v", observed)
	}
}

func TestWorkerEnqueueUnknownProtocol(t *testing.T) {
	w := NewWorker(staticLoader(fixtureProtocol()), nil)
	if _, err := w.Enqueue(context.Background(), 999, ""); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := w.Open(context.Background(), "nope"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for unknown job, got %v", err)
	}
}

func TestWorkerQueueFull(t *testing.T) {
	p := fixtureProtocol()
	w := NewWorker(staticLoader(p), nil, WithQueueSize(1))
	if _, err := w.Enqueue(context.Background(), p.ID, ""); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := w.Enqueue(context.Background(), p.ID, ""); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected queue full, got %v", err)
	}
}

func TestWorkerOpenBeforeCompletion(t *testing.T) {
	p := fixtureProtocol()
	w := NewWorker(staticLoader(p), nil)
	job, err := w.Enqueue(context.Background(), p.ID, "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := w.Open(context.Background(), job.ID); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for queued job, got %v", err)
	}
}

type failingStore struct{ blob.Store }

func (failingStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, errors.New("bucket unavailable")
}

func TestWorkerRecordsStoreFailure(t *testing.T) {
	p := fixtureProtocol()
	w := NewWorker(staticLoader(p), failingStore{blob.NewMemory()})
	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()
	queued, err := w.Enqueue(context.Background(), p.ID, "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job := waitFor(t, w, queued.ID)
	if job.Status != StatusFailed || !strings.Contains(job.Error, "bucket unavailable") {
		t.Fatalf("job = %+v", job)
	}
}

func TestWorkerForgetsOldestFinishedJobs(t *testing.T) {
	p := fixtureProtocol()
	w := NewWorker(staticLoader(p), nil, WithRetention(2))
	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()

	var ids []string
	for range 3 {
		queued, err := w.Enqueue(context.Background(), p.ID, "")
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		waitFor(t, w, queued.ID)
		ids = append(ids, queued.ID)
	}
	if _, ok := w.Get(ids[0]); ok {
		t.Fatalf("oldest job %s still tracked", ids[0])
	}
	if _, _, err := w.Open(context.Background(), ids[0]); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for evicted job, got %v", err)
	}
	for _, id := range ids[1:] {
		if job, ok := w.Get(id); !ok || job.Status != StatusSucceeded {
			t.Fatalf("recent job %s = %+v, %v", id, job, ok)
		}
	}
}
