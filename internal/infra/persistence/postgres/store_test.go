package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"protocoldesk/internal/infra/persistence/postgres/testutil"
	"protocoldesk/pkg/domain"
)

func openStub(t *testing.T) (*testutil.StubConn, func() (*sql.DB, error)) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	return conn, func() (*sql.DB, error) { return db, nil }
}

func sampleProtocol() domain.Protocol {
	row := domain.NewRowRecord("row-1")
	row.Shared.Region = "Москва"
	row.SubRows[0].Tasks = "inventory"
	return domain.Protocol{Date: "2024-06-03", Name: "Weekly", Number: 9, Secretary: "Орлова", Rows: []domain.RowRecord{row}}
}

func TestNewStoreAppliesSchemaAndWritesThrough(t *testing.T) {
	ctx := context.Background()
	conn, open := openStub(t)
	var gotDriver, gotDSN string
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		gotDriver, gotDSN = driver, dsn
		return open()
	})
	defer restore()

	store, err := NewStore(ctx, "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if gotDriver != "pgx" || gotDSN != defaultDSN {
		t.Fatalf("opened %s %s", gotDriver, gotDSN)
	}
	if len(conn.DDL) != 3 || !strings.Contains(conn.DDL[0], "JSONB") {
		t.Fatalf("ddl = %v", conn.DDL)
	}

	created, err := store.CreateProtocol(ctx, sampleProtocol())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stored := conn.Tables["protocols"]
	if len(stored) != 1 || stored[0]["id"] != created.ID {
		t.Fatalf("protocols table = %v", stored)
	}
	if !strings.Contains(stored[0]["rows_json"].(string), `"inventory"`) {
		t.Fatalf("rows payload = %v", stored[0]["rows_json"])
	}
	last := conn.Execs[len(conn.Execs)-1]
	if !strings.Contains(last, "$6") || !strings.Contains(last, "ON CONFLICT (id)") {
		t.Fatalf("upsert = %s", last)
	}

	created.Name = "Renamed"
	if _, err := store.UpdateProtocol(ctx, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	if stored := conn.Tables["protocols"]; len(stored) != 1 || stored[0]["name"] != "Renamed" {
		t.Fatalf("protocols after update = %v", stored)
	}

	if err := store.AddReference(ctx, domain.RefRegions, "Москва"); err != nil {
		t.Fatalf("add region: %v", err)
	}
	if len(conn.Tables["regions"]) != 1 {
		t.Fatalf("regions table = %v", conn.Tables["regions"])
	}
	if err := store.DeleteReference(ctx, domain.RefRegions, "Москва"); err != nil {
		t.Fatalf("delete region: %v", err)
	}
	if len(conn.Tables["regions"]) != 0 {
		t.Fatalf("regions after delete = %v", conn.Tables["regions"])
	}
	if err := store.DeleteProtocol(ctx, created.ID); err != nil {
		t.Fatalf("delete protocol: %v", err)
	}
	if len(conn.Tables["protocols"]) != 0 {
		t.Fatalf("protocols after delete = %v", conn.Tables["protocols"])
	}
}

func TestNewStoreLoadsExistingRows(t *testing.T) {
	ctx := context.Background()
	conn, open := openStub(t)
	conn.Tables["protocols"] = []map[string]any{{
		"id": int64(7), "date": "2024-05-01", "name": "Old", "number": int64(4), "secretary": "S",
		"rows_json": `[{"id":1,"region":"Казань","tasks":"t0","executor":["A"],"mergedRows":2,"row1":{"tasks":"t1"}}]`,
	}}
	conn.Tables["executors"] = []map[string]any{{"name": "Иванов И.И."}}
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return open() })
	defer restore()

	store, err := NewStore(ctx, "postgres://example")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	got, err := store.GetProtocol(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Number != 4 || len(got.Rows) != 1 || got.Rows[0].MergedCount() != 2 || got.Rows[0].SubRows[1].Tasks != "t1" {
		t.Fatalf("loaded = %+v", got)
	}
	names, _ := store.ListReference(ctx, domain.RefExecutors)
	if len(names) != 1 {
		t.Fatalf("executors = %v", names)
	}
	next, err := store.CreateProtocol(ctx, sampleProtocol())
	if err != nil || next.ID != 8 {
		t.Fatalf("next = %d, %v", next.ID, err)
	}
}

func TestFailedWriteLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	conn, open := openStub(t)
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return open() })
	defer restore()
	store, err := NewStore(ctx, "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.AddReference(ctx, domain.RefExecutors, "Петров П.П."); err != nil {
		t.Fatalf("add: %v", err)
	}

	conn.FailTables = map[string]bool{"protocols": true}
	if _, err := store.CreateProtocol(ctx, sampleProtocol()); !domain.IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if list, _ := store.ListProtocols(ctx); len(list) != 0 {
		t.Fatalf("failed create visible: %+v", list)
	}

	conn.FailExec = true
	if err := store.DeleteReference(ctx, domain.RefExecutors, "Петров П.П."); !domain.IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if names, _ := store.ListReference(ctx, domain.RefExecutors); len(names) != 1 {
		t.Fatalf("delete applied before confirmation: %v", names)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	conn, open := openStub(t)
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return open() })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestNewStoreOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected open error, got %v", err)
	}
}
