package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"protocoldesk/internal/blob/core"
)

func TestStoreBasics(t *testing.T) {
	s := New()
	ctx := context.Background()
	md := map[string]string{"k": "v"}
	if _, err := s.Put(ctx, "a/1", strings.NewReader("one"), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["k"] = "changed"
	if _, err := s.Put(ctx, "a/1", strings.NewReader("dup"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists, got %v", err)
	}
	if _, err := s.Put(ctx, " ", strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatalf("empty key accepted")
	}
	_, _ = s.Put(ctx, "b/2", strings.NewReader("two"), core.PutOptions{})

	info, rc, err := s.Get(ctx, "a/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "one" || info.Metadata["k"] != "v" {
		t.Fatalf("got %q %+v", body, info)
	}
	list, _ := s.List(ctx, "")
	if len(list) != 2 || list[0].Key != "a/1" || list[1].Key != "b/2" {
		t.Fatalf("list = %+v", list)
	}
	if _, err := s.Head(ctx, "zzz"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head missing: %v", err)
	}
	if _, err := s.PresignURL(ctx, "a/1", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("presign: %v", err)
	}
	if ok, _ := s.Delete(ctx, "a/1"); !ok {
		t.Fatalf("delete existing should report true")
	}
	if ok, _ := s.Delete(ctx, "a/1"); ok {
		t.Fatalf("delete missing should report false")
	}
}
