package integration

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"protocoldesk/internal/blob"
	"protocoldesk/internal/config"
	"protocoldesk/internal/core"
	"protocoldesk/internal/editor"
	"protocoldesk/internal/export"
	"protocoldesk/pkg/domain"
)

// TestIntegrationSmoke runs one edit-and-export cycle against every
// in-process storage backend combined with every blob backend.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	storeVariants := []struct {
		name string
		open func(t *testing.T) domain.PersistentStore
	}{
		{
			name: "memory-store",
			open: func(t *testing.T) domain.PersistentStore {
				s, err := core.OpenPersistentStore(ctx, config.StorageConfig{Driver: config.StorageMemory})
				if err != nil {
					t.Fatalf("open memory store: %v", err)
				}
				return s
			},
		},
		{
			name: "sqlite-store",
			open: func(t *testing.T) domain.PersistentStore {
				s, err := core.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "protocols.db"))
				if err != nil {
					t.Skipf("sqlite unavailable: %v", err)
				}
				return s
			},
		},
	}

	blobVariants := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{
			name: "memory-blob",
			open: func(*testing.T) blob.Store { return blob.NewMemory() },
		},
		{
			name: "filesystem-blob",
			open: func(t *testing.T) blob.Store {
				fs, err := blob.NewFilesystem(t.TempDir())
				if err != nil {
					t.Fatalf("new filesystem blob: %v", err)
				}
				return fs
			},
		},
		{
			name: "mock-s3-blob",
			open: func(*testing.T) blob.Store { return blob.NewMockS3ForTests() },
		},
	}

	for _, sv := range storeVariants {
		for _, bv := range blobVariants {
			t.Run(sv.name+"/"+bv.name, func(t *testing.T) {
				store := sv.open(t)
				svc := core.NewService(store)
				t.Cleanup(func() { _ = svc.Close() })
				runCycle(ctx, t, svc, bv.open(t))
			})
		}
	}

	if os.Getenv(config.EnvBlobDriver) != "" || os.Getenv(config.EnvStorageDriver) != "" {
		t.Fatalf("expected no test-induced env leakage")
	}
}

func runCycle(ctx context.Context, t *testing.T, svc *core.Service, bs blob.Store) {
	t.Helper()
	p, err := svc.CreateProtocol(ctx, domain.Protocol{Date: "2024-06-03", Name: "Планёрка", Number: 3, Secretary: "Орлова"})
	if err != nil {
		t.Fatalf("create protocol: %v", err)
	}
	if err := svc.Seed(ctx, []string{"Москва"}, []string{"Иванов И.И."}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = svc.EditRows(ctx, p.ID, func(s *editor.Session) error {
		a, b := s.AddRow(), s.AddRow()
		for _, upd := range []struct {
			id    string
			field domain.Field
			value any
		}{
			{a.ID, domain.FieldRegion, "Москва"},
			{a.ID, domain.FieldTasks, "Согласовать бюджет"},
			{b.ID, domain.FieldTasks, "Обновить график"},
			{b.ID, domain.FieldExecutors, []string{"Иванов И.И."}},
		} {
			if err := s.UpdateField(upd.id, upd.field, upd.value, 0); err != nil {
				return err
			}
		}
		if err := s.Select(0, 1); err != nil {
			return err
		}
		return s.MergeSelected()
	})
	if err != nil {
		t.Fatalf("edit rows: %v", err)
	}

	worker := export.NewWorker(svc, bs)
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		_ = worker.Stop(stopCtx)
	}()

	job, err := worker.Enqueue(ctx, p.ID, "smoke")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		job, _ = worker.Get(job.ID)
		if job.Status == export.StatusSucceeded {
			break
		}
		if job.Status == export.StatusFailed || time.Now().After(deadline) {
			t.Fatalf("export did not finish: %+v", job)
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, rc, err := worker.Open(ctx, job.ID)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	payload, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	book, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = book.Close() }()
	if got, _ := book.GetCellValue(export.SheetName, "B4"); got != "Москва" {
		t.Fatalf("region cell = %q", got)
	}
	if got, _ := book.GetCellValue(export.SheetName, "D5"); got != "Иванов И.И." {
		t.Fatalf("executor cell = %q", got)
	}

	stored, err := svc.GetProtocol(ctx, p.ID)
	if err != nil || len(stored.Rows) != 1 || stored.Rows[0].MergedCount() != 2 {
		t.Fatalf("stored protocol = %+v, %v", stored, err)
	}
}
