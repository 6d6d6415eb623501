// Package sqlstore persists protocols and reference lists through database/sql.
// The in-memory store serves reads. Writes are applied to it and written
// through to the database under one lock, and are rolled back in memory when
// the database rejects them. Reference deletes reach the database first. Dialects differ only in placeholders and DDL.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"protocoldesk/internal/infra/persistence/memory"
	"protocoldesk/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Dialect describes the SQL flavour of a backend.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Schema is executed in order on open; statements must be idempotent.
	Schema []string
}

// QuestionMarks is the placeholder style of sqlite.
func QuestionMarks(int) string { return "?" }

// Dollars is the placeholder style of postgres.
func Dollars(n int) string { return fmt.Sprintf("$%d", n) }

// Store is a write-through database/sql store.
type Store struct {
	mem     *memory.Store
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
}

// Open applies the dialect schema and hydrates the read model from db.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range dialect.Schema {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s: execute ddl: %w", dialect.Name, err)
		}
	}
	s := &Store{mem: memory.NewStore(), db: db, dialect: dialect}
	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	s.mem.ImportState(snapshot)
	return s, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) loadSnapshot(ctx context.Context) (memory.Snapshot, error) {
	var snap memory.Snapshot
	rows, err := s.db.QueryContext(ctx, `SELECT id, date, name, number, secretary, rows_json FROM protocols`)
	if err != nil {
		return snap, domain.WrapPersistence("select protocols", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p domain.Protocol
		var payload []byte
		if err := rows.Scan(&p.ID, &p.Date, &p.Name, &p.Number, &p.Secretary, &payload); err != nil {
			return snap, domain.WrapPersistence("scan protocol", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &p.Rows); err != nil {
				return snap, domain.WrapPersistence("decode rows", fmt.Errorf("protocol %d: %w", p.ID, err))
			}
		}
		snap.Protocols = append(snap.Protocols, p)
	}
	if err := rows.Err(); err != nil {
		return snap, domain.WrapPersistence("iterate protocols", err)
	}
	if snap.Regions, err = s.loadNames(ctx, domain.RefRegions); err != nil {
		return snap, err
	}
	if snap.Executors, err = s.loadNames(ctx, domain.RefExecutors); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *Store) loadNames(ctx context.Context, kind domain.RefKind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM `+string(kind))
	if err != nil {
		return nil, domain.WrapPersistence("select "+string(kind), err)
	}
	defer func() { _ = rows.Close() }()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.WrapPersistence("scan "+string(kind), err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapPersistence("iterate "+string(kind), err)
	}
	return names, nil
}

// writeThrough runs apply against the read model and then persist against the
// database. A failed persist restores the read model.
func writeThrough[T any](s *Store, apply func() (T, error), persist func(T) error) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.mem.ExportState()
	out, err := apply()
	if err != nil {
		var zero T
		return zero, err
	}
	if err := persist(out); err != nil {
		s.mem.ImportState(before)
		var zero T
		return zero, err
	}
	return out, nil
}

// ListProtocols reads the model under s.mu, like every read, so a write the
// database has not yet confirmed is never visible.
func (s *Store) ListProtocols(ctx context.Context) ([]domain.Protocol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.ListProtocols(ctx)
}

func (s *Store) GetProtocol(ctx context.Context, id int64) (domain.Protocol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.GetProtocol(ctx, id)
}

func (s *Store) CreateProtocol(ctx context.Context, p domain.Protocol) (domain.Protocol, error) {
	return writeThrough(s,
		func() (domain.Protocol, error) { return s.mem.CreateProtocol(ctx, p) },
		func(created domain.Protocol) error { return s.upsertProtocol(ctx, created) },
	)
}

func (s *Store) UpdateProtocol(ctx context.Context, p domain.Protocol) (domain.Protocol, error) {
	return writeThrough(s,
		func() (domain.Protocol, error) { return s.mem.UpdateProtocol(ctx, p) },
		func(updated domain.Protocol) error { return s.upsertProtocol(ctx, updated) },
	)
}

func (s *Store) DeleteProtocol(ctx context.Context, id int64) error {
	_, err := writeThrough(s,
		func() (struct{}, error) { return struct{}{}, s.mem.DeleteProtocol(ctx, id) },
		func(struct{}) error {
			_, err := s.db.ExecContext(ctx, `DELETE FROM protocols WHERE id = `+s.dialect.Placeholder(1), id)
			return domain.WrapPersistence("delete protocol", err)
		},
	)
	return err
}

func (s *Store) ListReference(ctx context.Context, kind domain.RefKind) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem.ListReference(ctx, kind)
}

func (s *Store) AddReference(ctx context.Context, kind domain.RefKind, name string) error {
	clean, err := memory.CleanName(name)
	if err != nil {
		return err
	}
	_, err = writeThrough(s,
		func() (struct{}, error) { return struct{}{}, s.mem.AddReference(ctx, kind, clean) },
		func(struct{}) error {
			query := fmt.Sprintf(`INSERT INTO %s (name) VALUES (%s) ON CONFLICT (name) DO NOTHING`, kind, s.dialect.Placeholder(1))
			_, err := s.db.ExecContext(ctx, query, clean)
			return domain.WrapPersistence("insert "+string(kind), err)
		},
	)
	return err
}

// DeleteReference removes name from the database first and from the read
// model only once the database has confirmed.
func (s *Store) DeleteReference(ctx context.Context, kind domain.RefKind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	names, err := s.mem.ListReference(ctx, kind)
	if err != nil {
		return err
	}
	if !slices.Contains(names, name) {
		return &domain.NotFoundError{Entity: kind.Entity(), ID: name}
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE name = %s`, kind, s.dialect.Placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, name); err != nil {
		return domain.WrapPersistence("delete "+string(kind), err)
	}
	return s.mem.DeleteReference(ctx, kind, name)
}

func (s *Store) upsertProtocol(ctx context.Context, p domain.Protocol) error {
	payload, err := json.Marshal(p.Rows)
	if err != nil {
		return domain.WrapPersistence("encode rows", err)
	}
	ph := s.dialect.Placeholder
	query := fmt.Sprintf(`INSERT INTO protocols (id, date, name, number, secretary, rows_json) VALUES (%s, %s, %s, %s, %s, %s)
		ON CONFLICT (id) DO UPDATE SET date = excluded.date, name = excluded.name, number = excluded.number,
		secretary = excluded.secretary, rows_json = excluded.rows_json`,
		ph(1), ph(2), ph(3), ph(4), ph(5), ph(6))
	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Date, p.Name, p.Number, p.Secretary, string(payload)); err != nil {
		return domain.WrapPersistence("upsert protocol", err)
	}
	return nil
}
