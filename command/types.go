package command

import (
	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/placeholder"
	"github.com/goliatone/go-errors"
)

// GenerateCertificate populates a canvas with one recipient and delivers it.
type GenerateCertificate struct {
	Actor    certificate.Actor
	Canvas   certificate.Canvas
	Data     placeholder.Data
	Filename string
	Options  certificate.ExportOptions
	Result   *certificate.ExportResult
}

func (GenerateCertificate) Type() string { return "certificate:generate" }

func (msg GenerateCertificate) Validate() error {
	if msg.Canvas == nil {
		return errors.New("canvas is required", errors.CategoryValidation).
			WithTextCode("CANVAS_REQUIRED")
	}
	return nil
}

// GenerateBatch populates a canvas once per row.
type GenerateBatch struct {
	Actor   certificate.Actor
	Canvas  certificate.Canvas
	Rows    []placeholder.Data
	Options certificate.BatchOptions
	Result  *certificate.BatchResult
}

func (GenerateBatch) Type() string { return "certificate:batch" }

func (msg GenerateBatch) Validate() error {
	if msg.Canvas == nil {
		return errors.New("canvas is required", errors.CategoryValidation).
			WithTextCode("CANVAS_REQUIRED")
	}
	if len(msg.Rows) == 0 {
		return errors.New("at least one row is required", errors.CategoryValidation).
			WithTextCode("ROWS_REQUIRED")
	}
	return nil
}

// ExportCanvas delivers a canvas as-is, without placeholder substitution.
type ExportCanvas struct {
	Actor   certificate.Actor
	Canvas  certificate.Canvas
	Options certificate.ExportOptions
	Result  *certificate.ExportResult
}

func (ExportCanvas) Type() string { return "certificate:export" }

func (msg ExportCanvas) Validate() error {
	if msg.Canvas == nil {
		return errors.New("canvas is required", errors.CategoryValidation).
			WithTextCode("CANVAS_REQUIRED")
	}
	return msg.Options.Validate()
}
