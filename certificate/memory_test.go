package certificate

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore_PutOpenDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ref, err := store.Put(ctx, "a/cert.pdf", strings.NewReader("pdf"), ArtifactMeta{ContentType: ContentTypePDF})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref.Meta.Size != 3 || ref.Meta.CreatedAt.IsZero() {
		t.Fatalf("unexpected meta %+v", ref.Meta)
	}
	rc, meta, err := store.Open(ctx, "a/cert.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "pdf" || meta.ContentType != ContentTypePDF {
		t.Fatalf("unexpected artifact %q %+v", data, meta)
	}
	if err := store.Delete(ctx, "a/cert.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Open(ctx, "a/cert.pdf"); KindFromError(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.SignedURL(ctx, "x", time.Minute); KindFromError(err) != KindNotImpl {
		t.Fatalf("expected not implemented, got %v", err)
	}
}

func TestStoreSink_PrefixesKeys(t *testing.T) {
	store := NewMemoryStore()
	sink := StoreSink{Store: store, Prefix: "certs"}
	ref, err := sink.Deliver(context.Background(), File{Filename: "a.pdf", ContentType: ContentTypePDF, Body: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !strings.HasPrefix(ref.Key, "certs/") || !strings.HasSuffix(ref.Key, "/a.pdf") {
		t.Fatalf("unexpected key %q", ref.Key)
	}
	if ref.Meta.Filename != "a.pdf" {
		t.Fatalf("unexpected meta %+v", ref.Meta)
	}
}

func TestMemoryTracker_Lifecycle(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	id, err := tracker.Start(ctx, ExportRecord{DocumentID: "doc", CertificateID: "C-1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	record, _ := tracker.Status(ctx, id)
	if record.State != StateRunning {
		t.Fatalf("expected running, got %s", record.State)
	}
	if err := tracker.Complete(ctx, id, ExportOutcome{Bytes: 10, QRReplaced: 1}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	record, _ = tracker.Status(ctx, id)
	if record.State != StateCompleted || record.Bytes != 10 || record.QRReplaced != 1 {
		t.Fatalf("unexpected record %+v", record)
	}

	failedID, _ := tracker.Start(ctx, ExportRecord{DocumentID: "doc"})
	if err := tracker.Fail(ctx, failedID, errors.New("boom")); err != nil {
		t.Fatalf("fail: %v", err)
	}

	failed, _ := tracker.List(ctx, RecordFilter{State: StateFailed})
	if len(failed) != 1 || failed[0].Error != "boom" {
		t.Fatalf("unexpected failed list %+v", failed)
	}
	byCert, _ := tracker.List(ctx, RecordFilter{CertificateID: "C-1"})
	if len(byCert) != 1 {
		t.Fatalf("expected one record for C-1, got %d", len(byCert))
	}
	if err := tracker.Complete(ctx, "missing", ExportOutcome{}); KindFromError(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
