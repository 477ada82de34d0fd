package localfs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	store.now = func() time.Time { return time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC) }

	data := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte{0x00, 0xff}, 512)...)
	ref, err := store.Put(context.Background(), "513 malaga drive", data, "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref != "513-malaga-drive.pdf" {
		t.Fatalf("unexpected ref %q", ref)
	}

	for _, key := range []string{ref, "513 malaga drive"} {
		got, err := store.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("get %q: %v", key, err)
		}
		if len(got) != len(data) || !bytes.Equal(got, data) {
			t.Fatalf("round trip mismatch for %q: %d bytes, want %d", key, len(got), len(data))
		}
	}

	meta, err := store.Meta(ref)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.SizeBytes != len(data) || meta.ContentType != "application/pdf" || len(meta.SHA256) != 64 {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestPutOverwritesSameKey(t *testing.T) {
	store, _ := New(t.TempDir())
	ctx := context.Background()
	if _, err := store.Put(ctx, "k 1", []byte("old"), "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k 1", []byte("newer"), "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "k 1")
	if err != nil || string(got) != "newer" {
		t.Fatalf("expected newer bytes, got %q, %v", got, err)
	}
}

func TestPutWithNewContentTypeReplacesOldExtension(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	ctx := context.Background()
	if _, err := store.Put(ctx, "513 malaga drive", []byte("not a pdf"), "application/octet-stream"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "513 malaga drive", pdf, "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "513 malaga drive")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, pdf) {
		t.Fatalf("expected latest bytes, got %q", got)
	}
	for _, stale := range []string{"513-malaga-drive.bin", "513-malaga-drive.bin" + metaSuffix} {
		if _, err := os.Stat(filepath.Join(dir, stale)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed, stat err %v", stale, err)
		}
	}
}

func TestGetRejectsTamperedArtifact(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	ctx := context.Background()
	ref, err := store.Put(ctx, "k 1", pdf, "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ref), []byte("%PDF-1.4 changed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Get(ctx, ref); err == nil || !strings.Contains(err.Error(), "checksum") {
		t.Fatalf("expected checksum error, got %v", err)
	}
}

var pdf = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF")

func TestGetUnknownKey(t *testing.T) {
	store, _ := New(t.TempDir())
	if _, err := store.Get(context.Background(), "nothing here"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"520 novatan rd s mobile al 36608": "520-novatan-rd-s-mobile-al-36608",
		"  ../etc/passwd ":                 "etc-passwd",
		"---":                              "",
	}
	for in, want := range cases {
		if got := slug(in); got != want {
			t.Fatalf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}
