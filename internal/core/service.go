// Package core exposes the protocol service: persistence of protocols and
// reference lists, and server-side row editing through editor sessions.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"protocoldesk/internal/editor"
	"protocoldesk/internal/infra/persistence/memory"
	"protocoldesk/internal/refdata"
	"protocoldesk/pkg/domain"
)

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics installs a metrics recorder. Nil keeps the no-op recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithIDFunc overrides row id allocation for sessions opened by the service.
func WithIDFunc(fn editor.IDFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Service exposes protocol and reference-data operations over a store.
type Service struct {
	store   PersistentStore
	catalog *refdata.Catalog
	logger  zerolog.Logger
	metrics MetricsRecorder
	newID   editor.IDFunc

	refMu    sync.Mutex
	refReady bool
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  zerolog.Nop(),
		metrics: noopMetrics{},
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.catalog = refdata.NewCatalog(store, s.logger)
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Close releases the store.
func (s *Service) Close() error { return s.store.Close() }

// ListProtocols returns every protocol ordered by id.
func (s *Service) ListProtocols(ctx context.Context) (out []domain.Protocol, err error) {
	defer s.observe(ctx, "list_protocols", time.Now(), &err)
	out, err = s.store.ListProtocols(ctx)
	return out, domain.WrapPersistence("list protocols", err)
}

// GetProtocol loads one protocol.
func (s *Service) GetProtocol(ctx context.Context, id int64) (p domain.Protocol, err error) {
	defer s.observe(ctx, "get_protocol", time.Now(), &err)
	p, err = s.store.GetProtocol(ctx, id)
	return p, domain.WrapPersistence("get protocol", err)
}

// CreateProtocol stores a new protocol and returns it with its assigned id.
// Row ids are repaired before storing.
func (s *Service) CreateProtocol(ctx context.Context, p domain.Protocol) (created domain.Protocol, err error) {
	defer s.observe(ctx, "create_protocol", time.Now(), &err)
	p = s.normalize(p)
	p.ID = 0
	created, err = s.store.CreateProtocol(ctx, p)
	if err != nil {
		return domain.Protocol{}, domain.WrapPersistence("create protocol", err)
	}
	s.logger.Info().Int64("protocol_id", created.ID).Int("number", created.Number).Msg("protocol created")
	return created, nil
}

// UpdateProtocol replaces a stored protocol wholesale.
func (s *Service) UpdateProtocol(ctx context.Context, p domain.Protocol) (updated domain.Protocol, err error) {
	defer s.observe(ctx, "update_protocol", time.Now(), &err)
	updated, err = s.store.UpdateProtocol(ctx, s.normalize(p))
	if err != nil {
		return domain.Protocol{}, domain.WrapPersistence("update protocol", err)
	}
	return updated, nil
}

// SaveProtocol creates p when it has no id yet and updates it otherwise. It
// lets the service act as the persistence collaborator of an editor session.
func (s *Service) SaveProtocol(ctx context.Context, p domain.Protocol) (domain.Protocol, error) {
	if p.ID == 0 {
		return s.CreateProtocol(ctx, p)
	}
	return s.UpdateProtocol(ctx, p)
}

// DeleteProtocol removes a protocol.
func (s *Service) DeleteProtocol(ctx context.Context, id int64) (err error) {
	defer s.observe(ctx, "delete_protocol", time.Now(), &err)
	if err = s.store.DeleteProtocol(ctx, id); err != nil {
		return domain.WrapPersistence("delete protocol", err)
	}
	s.logger.Info().Int64("protocol_id", id).Msg("protocol deleted")
	return nil
}

// OpenSession loads a protocol into a new editor session.
func (s *Service) OpenSession(ctx context.Context, id int64) (*editor.Session, error) {
	p, err := s.GetProtocol(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.newSession(p), nil
}

// EditRows loads the protocol, applies edit to a fresh session and saves the
// result. When edit or the save fails nothing is stored and the error is
// returned unchanged.
func (s *Service) EditRows(ctx context.Context, id int64, edit func(*editor.Session) error) (saved domain.Protocol, err error) {
	defer s.observe(ctx, "edit_rows", time.Now(), &err)
	session, err := s.OpenSession(ctx, id)
	if err != nil {
		return domain.Protocol{}, err
	}
	if err = edit(session); err != nil {
		return domain.Protocol{}, err
	}
	saved, err = session.Save(ctx, editor.SaverFunc(func(ctx context.Context, p domain.Protocol) (domain.Protocol, error) {
		updated, err := s.store.UpdateProtocol(ctx, p)
		return updated, domain.WrapPersistence("update protocol", err)
	}))
	if err != nil {
		return domain.Protocol{}, err
	}
	s.warnUnlisted(ctx, saved)
	return saved, nil
}

// warnUnlisted logs regions and executors of p that are missing from the
// reference lists. The values are stored regardless.
func (s *Service) warnUnlisted(ctx context.Context, p domain.Protocol) {
	if err := s.ensureCatalog(ctx); err != nil {
		return
	}
	for _, row := range p.Rows {
		if region := row.Shared.Region; region != "" && !s.catalog.Contains(domain.RefRegions, region) {
			s.logger.Warn().Int64("protocol_id", p.ID).Str("row_id", row.ID).Str("region", region).Msg("region not in reference list")
		}
		for _, sub := range row.SubRows {
			for _, name := range sub.Executors {
				if name != "" && !s.catalog.Contains(domain.RefExecutors, name) {
					s.logger.Warn().Int64("protocol_id", p.ID).Str("row_id", row.ID).Str("executor", name).Msg("executor not in reference list")
				}
			}
		}
	}
}

// ListReference returns the cached names of one reference list, loading the
// cache on first use.
func (s *Service) ListReference(ctx context.Context, kind domain.RefKind) (names []string, err error) {
	defer s.observe(ctx, "list_"+string(kind), time.Now(), &err)
	if !kind.Valid() {
		return nil, &domain.ValidationError{Field: "kind", Message: "unknown reference list " + string(kind)}
	}
	if err = s.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	return s.catalog.Options(kind), nil
}

// AddReference stores a new region or executor name.
func (s *Service) AddReference(ctx context.Context, kind domain.RefKind, name string) (err error) {
	defer s.observe(ctx, "add_"+string(kind), time.Now(), &err)
	if err = s.ensureCatalog(ctx); err != nil {
		return err
	}
	return s.catalog.Add(ctx, kind, name)
}

// DeleteReference removes a region or executor name.
func (s *Service) DeleteReference(ctx context.Context, kind domain.RefKind, name string) (err error) {
	defer s.observe(ctx, "delete_"+string(kind), time.Now(), &err)
	if err = s.ensureCatalog(ctx); err != nil {
		return err
	}
	return s.catalog.Remove(ctx, kind, name)
}

// Seed fills empty reference lists with defaults and loads the cache.
func (s *Service) Seed(ctx context.Context, regions, executors []string) error {
	err := s.catalog.Seed(ctx, map[domain.RefKind][]string{
		domain.RefRegions:   regions,
		domain.RefExecutors: executors,
	})
	if err != nil {
		return err
	}
	s.refMu.Lock()
	s.refReady = true
	s.refMu.Unlock()
	return nil
}

func (s *Service) ensureCatalog(ctx context.Context) error {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	if s.refReady {
		return nil
	}
	if err := s.catalog.Refresh(ctx); err != nil {
		return err
	}
	s.refReady = true
	return nil
}

func (s *Service) newSession(p domain.Protocol) *editor.Session {
	return editor.NewSession(p, editor.WithIDFunc(s.newID), editor.WithLogger(s.logger))
}

// normalize repairs missing or duplicate row ids and empty sub-row lists.
func (s *Service) normalize(p domain.Protocol) domain.Protocol {
	return s.newSession(p).Protocol()
}

func (s *Service) observe(ctx context.Context, operation string, start time.Time, errp *error) {
	err := *errp
	s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
	if err == nil {
		return
	}
	event := s.logger.Warn()
	if domain.IsPersistence(err) {
		event = s.logger.Error()
	} else if domain.IsNotFound(err) {
		event = s.logger.Debug()
	}
	event.Err(err).Str("operation", operation).Msg("service operation failed")
}
