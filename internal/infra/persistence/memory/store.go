// Package memory provides an in-memory implementation of the protocol and
// reference-data store used for tests and ephemeral environments. The SQL
// backends reuse it as their read model.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"protocoldesk/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Protocols []domain.Protocol `json:"protocols"`
	Regions   []string          `json:"regions"`
	Executors []string          `json:"executors"`
	NextID    int64             `json:"next_id"`
}

type memoryState struct {
	protocols map[int64]domain.Protocol
	refs      map[domain.RefKind]map[string]struct{}
	nextID    int64
}

func newMemoryState() memoryState {
	return memoryState{
		protocols: make(map[int64]domain.Protocol),
		refs: map[domain.RefKind]map[string]struct{}{
			domain.RefRegions:   {},
			domain.RefExecutors: {},
		},
		nextID: 1,
	}
}

// Store is a concurrency-safe map-backed store.
type Store struct {
	mu    sync.RWMutex
	state memoryState
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

// ListProtocols returns all protocols ordered by id.
func (s *Store) ListProtocols(_ context.Context) ([]domain.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Protocol, 0, len(s.state.protocols))
	for _, p := range s.state.protocols {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, byID)
	return out, nil
}

// GetProtocol returns a copy of the protocol with the given id.
func (s *Store) GetProtocol(_ context.Context, id int64) (domain.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.protocols[id]
	if !ok {
		return domain.Protocol{}, notFound(id)
	}
	return p.Clone(), nil
}

// CreateProtocol validates p, assigns the next id and stores it.
func (s *Store) CreateProtocol(_ context.Context, p domain.Protocol) (domain.Protocol, error) {
	if err := p.Validate(); err != nil {
		return domain.Protocol{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p = p.Clone()
	p.ID = s.state.nextID
	s.state.nextID++
	if p.Rows == nil {
		p.Rows = []domain.RowRecord{}
	}
	s.state.protocols[p.ID] = p
	return p.Clone(), nil
}

// UpdateProtocol replaces an existing protocol wholesale.
func (s *Store) UpdateProtocol(_ context.Context, p domain.Protocol) (domain.Protocol, error) {
	if err := p.Validate(); err != nil {
		return domain.Protocol{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.protocols[p.ID]; !ok {
		return domain.Protocol{}, notFound(p.ID)
	}
	p = p.Clone()
	if p.Rows == nil {
		p.Rows = []domain.RowRecord{}
	}
	s.state.protocols[p.ID] = p
	return p.Clone(), nil
}

// DeleteProtocol removes a protocol.
func (s *Store) DeleteProtocol(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.protocols[id]; !ok {
		return notFound(id)
	}
	delete(s.state.protocols, id)
	return nil
}

// ListReference returns the names of one list in ascending order.
func (s *Store) ListReference(_ context.Context, kind domain.RefKind) ([]string, error) {
	if !kind.Valid() {
		return nil, invalidKind(kind)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.state.refs[kind]))
	for name := range s.state.refs[kind] {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

// AddReference inserts a name. Blank and duplicate names are rejected.
func (s *Store) AddReference(_ context.Context, kind domain.RefKind, name string) error {
	if !kind.Valid() {
		return invalidKind(kind)
	}
	name, err := CleanName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.state.refs[kind][name]; dup {
		return &domain.ValidationError{Field: "name", Message: fmt.Sprintf("%s %q already exists", kind.Entity(), name)}
	}
	s.state.refs[kind][name] = struct{}{}
	return nil
}

// DeleteReference removes a name.
func (s *Store) DeleteReference(_ context.Context, kind domain.RefKind, name string) error {
	if !kind.Valid() {
		return invalidKind(kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.refs[kind][name]; !ok {
		return &domain.NotFoundError{Entity: kind.Entity(), ID: name}
	}
	delete(s.state.refs[kind], name)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// ExportState returns a deep copy of the store contents.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{NextID: s.state.nextID}
	for _, p := range s.state.protocols {
		snap.Protocols = append(snap.Protocols, p.Clone())
	}
	slices.SortFunc(snap.Protocols, byID)
	for name := range s.state.refs[domain.RefRegions] {
		snap.Regions = append(snap.Regions, name)
	}
	for name := range s.state.refs[domain.RefExecutors] {
		snap.Executors = append(snap.Executors, name)
	}
	slices.Sort(snap.Regions)
	slices.Sort(snap.Executors)
	return snap
}

// ImportState replaces the store contents with snap. NextID is raised above
// every imported protocol id.
func (s *Store) ImportState(snap Snapshot) {
	state := newMemoryState()
	for _, p := range snap.Protocols {
		state.protocols[p.ID] = p.Clone()
		if p.ID >= state.nextID {
			state.nextID = p.ID + 1
		}
	}
	if snap.NextID > state.nextID {
		state.nextID = snap.NextID
	}
	for _, name := range snap.Regions {
		state.refs[domain.RefRegions][name] = struct{}{}
	}
	for _, name := range snap.Executors {
		state.refs[domain.RefExecutors][name] = struct{}{}
	}
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// CleanName trims a reference name and rejects blanks.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &domain.ValidationError{Field: "name", Message: "required"}
	}
	return name, nil
}

func byID(a, b domain.Protocol) int { return cmp.Compare(a.ID, b.ID) }

func notFound(id int64) error {
	return &domain.NotFoundError{Entity: domain.EntityProtocol, ID: strconv.FormatInt(id, 10)}
}

func invalidKind(kind domain.RefKind) error {
	return &domain.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown reference list %q", kind)}
}
