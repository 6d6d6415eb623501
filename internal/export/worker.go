package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"protocoldesk/internal/blob"
	"protocoldesk/pkg/domain"
)

// Status is the lifecycle stage of an export job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact describes a stored workbook.
type Artifact struct {
	Key         string    `json:"key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Job tracks one export request.
type Job struct {
	ID             string     `json:"id"`
	ProtocolID     int64      `json:"protocol_id"`
	ProtocolNumber int        `json:"protocol_number"`
	Status         Status     `json:"status"`
	Error          string     `json:"error,omitempty"`
	Artifact       *Artifact  `json:"artifact,omitempty"`
	RequestedBy    string     `json:"requested_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func (j Job) copy() Job {
	if j.Artifact != nil {
		a := *j.Artifact
		j.Artifact = &a
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}

// ProtocolLoader fetches the protocol to export.
type ProtocolLoader interface {
	GetProtocol(ctx context.Context, id int64) (domain.Protocol, error)
}

// Observer is notified when a job reaches a terminal status.
type Observer func(status Status, elapsed time.Duration)

// ErrQueueFull is returned by Enqueue when the worker is saturated.
var ErrQueueFull = errors.New("export queue full")

// Worker renders and stores workbooks in the background.
type Worker struct {
	loader        ProtocolLoader
	store         blob.Store
	logger        zerolog.Logger
	observe       Observer
	presignExpiry time.Duration

	queue    chan task
	mu       sync.RWMutex
	jobs     map[string]*Job
	finished []string
	retain   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id       string
	protocol domain.Protocol
	queued   time.Time
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithQueueSize sets how many jobs may wait before Enqueue reports ErrQueueFull.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan task, n)
		}
	}
}

// WithLogger sets the worker logger.
func WithLogger(logger zerolog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

// WithObserver installs a callback for finished jobs.
func WithObserver(fn Observer) WorkerOption {
	return func(w *Worker) { w.observe = fn }
}

// WithPresignExpiry sets the lifetime of artifact download URLs.
func WithPresignExpiry(d time.Duration) WorkerOption {
	return func(w *Worker) { w.presignExpiry = d }
}

// WithRetention sets how many finished jobs stay queryable. Older ones are
// forgotten first; their stored workbooks are kept.
func WithRetention(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.retain = n
		}
	}
}

// NewWorker constructs a worker. A nil store falls back to an in-memory one.
func NewWorker(loader ProtocolLoader, store blob.Store, opts ...WorkerOption) *Worker {
	if store == nil {
		store = blob.NewMemory()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		loader:        loader,
		store:         store,
		logger:        zerolog.Nop(),
		presignExpiry: 15 * time.Minute,
		queue:         make(chan task, 32),
		jobs:          make(map[string]*Job),
		retain:        256,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing queued jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop halts the worker and waits for the current job, bounded by ctx.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue snapshots the protocol and schedules its export. An unknown
// protocol is reported immediately.
func (w *Worker) Enqueue(ctx context.Context, protocolID int64, requestedBy string) (Job, error) {
	if w.loader == nil {
		return Job{}, fmt.Errorf("export loader not configured")
	}
	p, err := w.loader.GetProtocol(ctx, protocolID)
	if err != nil {
		return Job{}, err
	}
	now := time.Now().UTC()
	job := Job{
		ID:             uuid.NewString(),
		ProtocolID:     p.ID,
		ProtocolNumber: p.Number,
		Status:         StatusQueued,
		RequestedBy:    requestedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	snapshot := job.copy()
	w.mu.Lock()
	w.jobs[job.ID] = &job
	w.mu.Unlock()

	select {
	case w.queue <- task{id: job.ID, protocol: p.Clone(), queued: now}:
	default:
		w.mu.Lock()
		delete(w.jobs, job.ID)
		w.mu.Unlock()
		return Job{}, ErrQueueFull
	}
	w.logger.Info().Str("job_id", job.ID).Int64("protocol_id", p.ID).Msg("export queued")
	return snapshot, nil
}

// Get returns a snapshot of the job.
func (w *Worker) Get(id string) (Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	job, ok := w.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.copy(), true
}

// Open streams the workbook of a finished job.
func (w *Worker) Open(ctx context.Context, id string) (Job, io.ReadCloser, error) {
	job, ok := w.Get(id)
	if !ok {
		return Job{}, nil, &domain.NotFoundError{Entity: domain.EntityExport, ID: id}
	}
	if job.Status != StatusSucceeded || job.Artifact == nil {
		return job, nil, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("export %s is %s", id, job.Status)}
	}
	_, rc, err := w.store.Get(ctx, job.Artifact.Key)
	if errors.Is(err, blob.ErrNotFound) {
		return job, nil, &domain.NotFoundError{Entity: domain.EntityExport, ID: id}
	}
	if err != nil {
		return job, nil, domain.WrapPersistence("open export", err)
	}
	return job, rc, nil
}

func (w *Worker) process(t task) {
	w.update(t.id, func(j *Job) { j.Status = StatusRunning })

	payload, err := Workbook(t.protocol)
	if err != nil {
		w.finish(t, nil, fmt.Errorf("render workbook: %w", err))
		return
	}
	name := FileName(t.protocol.Number)
	key := fmt.Sprintf("exports/%d/%s/%s", t.protocol.ID, t.id, name)
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: ContentType,
		Metadata: map[string]string{
			"protocol-id":     strconv.FormatInt(t.protocol.ID, 10),
			"protocol-number": strconv.Itoa(t.protocol.Number),
		},
	})
	if err != nil {
		w.finish(t, nil, fmt.Errorf("store workbook: %w", err))
		return
	}
	artifact := &Artifact{
		Key:         info.Key,
		FileName:    name,
		ContentType: ContentType,
		SizeBytes:   int64(len(payload)),
		URL:         info.URL,
		CreatedAt:   info.LastModified,
	}
	if url, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{Expiry: w.presignExpiry}); err == nil {
		artifact.URL = url
	} else if !errors.Is(err, blob.ErrUnsupported) {
		w.logger.Warn().Err(err).Str("job_id", t.id).Msg("presign failed")
	}
	w.finish(t, artifact, nil)
}

func (w *Worker) finish(t task, artifact *Artifact, err error) {
	status := StatusSucceeded
	now := time.Now().UTC()
	w.update(t.id, func(j *Job) {
		w.retireLocked(t.id)
		j.CompletedAt = &now
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusSucceeded
		j.Artifact = artifact
	})
	if err != nil {
		status = StatusFailed
		w.logger.Error().Err(err).Str("job_id", t.id).Int64("protocol_id", t.protocol.ID).Msg("export failed")
	} else {
		w.logger.Info().Str("job_id", t.id).Str("key", artifact.Key).Int64("size", artifact.SizeBytes).Msg("export stored")
	}
	if w.observe != nil {
		w.observe(status, now.Sub(t.queued))
	}
}

// retireLocked records id as finished and drops the oldest finished jobs
// beyond the retention limit. w.mu must be held.
func (w *Worker) retireLocked(id string) {
	w.finished = append(w.finished, id)
	for len(w.finished) > w.retain {
		delete(w.jobs, w.finished[0])
		w.finished = w.finished[1:]
	}
}

func (w *Worker) update(id string, fn func(*Job)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	job, ok := w.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
}
