package query

import (
	"context"
	"fmt"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/placeholder"
	"github.com/goliatone/go-errors"
)

// ExportStatusHandler returns a single export record. Records requested by a
// different tenant are reported as missing.
type ExportStatusHandler struct {
	Tracker certificate.Tracker
}

func NewExportStatusHandler(tracker certificate.Tracker) *ExportStatusHandler {
	return &ExportStatusHandler{Tracker: tracker}
}

func (h *ExportStatusHandler) Query(ctx context.Context, msg ExportStatus) (certificate.ExportRecord, error) {
	if h == nil || h.Tracker == nil {
		return certificate.ExportRecord{}, trackerRequired()
	}
	record, err := h.Tracker.Status(ctx, msg.ExportID)
	if err != nil {
		return certificate.ExportRecord{}, err
	}
	if !visibleTo(msg.Actor, record) {
		return certificate.ExportRecord{}, certificate.NewError(certificate.KindNotFound, fmt.Sprintf("export %q not found", msg.ExportID), nil)
	}
	return record, nil
}

// ExportHistoryHandler lists export records, newest first.
type ExportHistoryHandler struct {
	Tracker certificate.Tracker
}

func NewExportHistoryHandler(tracker certificate.Tracker) *ExportHistoryHandler {
	return &ExportHistoryHandler{Tracker: tracker}
}

func (h *ExportHistoryHandler) Query(ctx context.Context, msg ExportHistory) ([]certificate.ExportRecord, error) {
	if h == nil || h.Tracker == nil {
		return nil, trackerRequired()
	}
	records, err := h.Tracker.List(ctx, msg.Filter)
	if err != nil {
		return nil, err
	}
	out := make([]certificate.ExportRecord, 0, len(records))
	for _, record := range records {
		if visibleTo(msg.Actor, record) {
			out = append(out, record)
		}
	}
	return out, nil
}

// PlaceholdersHandler returns catalog definitions.
type PlaceholdersHandler struct{}

func NewPlaceholdersHandler() *PlaceholdersHandler {
	return &PlaceholdersHandler{}
}

func (h *PlaceholdersHandler) Query(ctx context.Context, msg Placeholders) ([]placeholder.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.Category == "" {
		return placeholder.Catalog(), nil
	}
	return placeholder.ByCategory()[msg.Category], nil
}

func visibleTo(actor certificate.Actor, record certificate.ExportRecord) bool {
	if actor.TenantID == "" || record.RequestedBy.TenantID == "" {
		return true
	}
	return actor.TenantID == record.RequestedBy.TenantID
}

func trackerRequired() error {
	return errors.New("export tracker is required", errors.CategoryInternal).
		WithTextCode("TRACKER_REQUIRED")
}
