package query

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/placeholder"
)

func seedTracker(t *testing.T) *certificate.MemoryTracker {
	t.Helper()
	tracker := certificate.NewMemoryTracker()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	records := []certificate.ExportRecord{
		{ID: "exp-1", DocumentID: "doc-1", FileType: certificate.FileTypePDF, RequestedBy: certificate.Actor{ID: "u1", TenantID: "acme"}, CreatedAt: base},
		{ID: "exp-2", DocumentID: "doc-1", FileType: certificate.FileTypePNG, RequestedBy: certificate.Actor{ID: "u2", TenantID: "globex"}, CreatedAt: base.Add(time.Minute)},
		{ID: "exp-3", DocumentID: "doc-2", FileType: certificate.FileTypePDF, RequestedBy: certificate.Actor{ID: "u1", TenantID: "acme"}, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, record := range records {
		if _, err := tracker.Start(context.Background(), record); err != nil {
			t.Fatalf("tracker start: %v", err)
		}
	}
	return tracker
}

func TestExportStatusHandler(t *testing.T) {
	handler := NewExportStatusHandler(seedTracker(t))

	record, err := handler.Query(context.Background(), ExportStatus{
		Actor:    certificate.Actor{ID: "u1", TenantID: "acme"},
		ExportID: "exp-1",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if record.DocumentID != "doc-1" || record.State != certificate.StateRunning {
		t.Fatalf("unexpected record %+v", record)
	}

	_, err = handler.Query(context.Background(), ExportStatus{
		Actor:    certificate.Actor{ID: "u1", TenantID: "acme"},
		ExportID: "exp-2",
	})
	if certificate.KindFromError(err) != certificate.KindNotFound {
		t.Fatalf("expected other tenant record hidden, got %v", err)
	}

	_, err = handler.Query(context.Background(), ExportStatus{ExportID: "missing"})
	if certificate.KindFromError(err) != certificate.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportHistoryHandler(t *testing.T) {
	handler := NewExportHistoryHandler(seedTracker(t))

	records, err := handler.Query(context.Background(), ExportHistory{
		Actor: certificate.Actor{ID: "u1", TenantID: "acme"},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 2 || records[0].ID != "exp-3" || records[1].ID != "exp-1" {
		t.Fatalf("unexpected history %+v", records)
	}

	records, err = handler.Query(context.Background(), ExportHistory{
		Filter: certificate.RecordFilter{DocumentID: "doc-1"},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected both doc-1 records without tenant scope, got %d", len(records))
	}
}

func TestHandlers_RequireTracker(t *testing.T) {
	if _, err := NewExportStatusHandler(nil).Query(context.Background(), ExportStatus{ExportID: "x"}); err == nil {
		t.Fatalf("expected tracker required error")
	}
	var history *ExportHistoryHandler
	if _, err := history.Query(context.Background(), ExportHistory{}); err == nil {
		t.Fatalf("expected tracker required error")
	}
}

func TestPlaceholdersHandler(t *testing.T) {
	handler := NewPlaceholdersHandler()

	all, err := handler.Query(context.Background(), Placeholders{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != len(placeholder.Catalog()) {
		t.Fatalf("expected full catalog, got %d", len(all))
	}

	recipient, err := handler.Query(context.Background(), Placeholders{Category: placeholder.CategoryRecipient})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recipient) == 0 {
		t.Fatalf("expected recipient placeholders")
	}
	for _, def := range recipient {
		if def.Category != placeholder.CategoryRecipient {
			t.Fatalf("unexpected category %q", def.Category)
		}
	}
}

func TestMessages_Validate(t *testing.T) {
	if err := (ExportStatus{}).Validate(); err == nil {
		t.Fatalf("expected export ID required")
	}
	now := time.Now()
	if err := (ExportHistory{Filter: certificate.RecordFilter{Since: now, Until: now.Add(-time.Hour)}}).Validate(); err == nil {
		t.Fatalf("expected invalid range")
	}
	if err := (Placeholders{Category: "bogus"}).Validate(); err == nil {
		t.Fatalf("expected invalid category")
	}
	if err := (Placeholders{Category: placeholder.CategoryEvent}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
