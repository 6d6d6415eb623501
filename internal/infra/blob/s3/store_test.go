package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"protocoldesk/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	payload := []byte("PK\x03\x04 binary\r\nwith crlf")

	info, err := store.Put(ctx, "exports/1/протокол.xlsx", bytes.NewReader(payload), core.PutOptions{
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Metadata:    map[string]string{"protocol": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("size = %d", info.Size)
	}
	if info.Metadata["protocol"] != "1" {
		t.Fatalf("metadata = %v", info.Metadata)
	}
	if _, err := store.Put(ctx, "exports/1/протокол.xlsx", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists error, got %v", err)
	}

	_, rc, err := store.Get(ctx, "exports/1/протокол.xlsx")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q", got)
	}

	list, err := store.List(ctx, "exports/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	url, err := store.PresignURL(ctx, "exports/1/протокол.xlsx", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil || url == "" {
		t.Fatalf("presign: %v %q", err, url)
	}
	if ok, err := store.Delete(ctx, "exports/1/протокол.xlsx"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "exports/1/протокол.xlsx"); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
}

func TestMockStoreMissingKeys(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: http.MethodPut}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("presign put: %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
	s, err := New(context.Background(), Config{Bucket: "b", Endpoint: "http://127.0.0.1:9000", PathStyle: true, AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Driver() != core.DriverS3 {
		t.Fatalf("driver = %s", s.Driver())
	}
}

func TestDecodeChunked(t *testing.T) {
	body := "5;chunk-signature=abc\r\nhe\r\nl\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"
	got, err := decodeChunked([]byte(body))
	if err != nil || string(got) != "he\r\nl" {
		t.Fatalf("decode = %q %v", got, err)
	}
	if _, err := decodeChunked([]byte("zz\r\n")); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestFakeBucketUnsupportedMethod(t *testing.T) {
	rt := &fakeBucket{objects: make(map[string]fakeObject)}
	req, _ := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bucket/key", nil)
	resp, _ := rt.RoundTrip(req)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
