package query

import (
	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/placeholder"
	"github.com/goliatone/go-errors"
)

// ExportStatus requests a single export record.
type ExportStatus struct {
	Actor    certificate.Actor
	ExportID string
}

func (ExportStatus) Type() string { return "certificate:status" }

func (msg ExportStatus) Validate() error {
	if msg.ExportID == "" {
		return errors.New("export ID is required", errors.CategoryValidation).
			WithTextCode("EXPORT_ID_REQUIRED")
	}
	return nil
}

// ExportHistory requests export records matching a filter.
type ExportHistory struct {
	Actor  certificate.Actor
	Filter certificate.RecordFilter
}

func (ExportHistory) Type() string { return "certificate:history" }

func (msg ExportHistory) Validate() error {
	if !msg.Filter.Since.IsZero() && !msg.Filter.Until.IsZero() && msg.Filter.Until.Before(msg.Filter.Since) {
		return errors.New("until must not be before since", errors.CategoryValidation).
			WithTextCode("INVALID_RANGE")
	}
	return nil
}

// Placeholders requests the placeholder catalog, optionally for one category.
type Placeholders struct {
	Category placeholder.Category
}

func (Placeholders) Type() string { return "certificate:placeholders" }

func (msg Placeholders) Validate() error {
	if msg.Category == "" {
		return nil
	}
	for _, category := range placeholder.Categories() {
		if category == msg.Category {
			return nil
		}
	}
	return errors.New("unknown placeholder category", errors.CategoryValidation).
		WithTextCode("CATEGORY_INVALID")
}
