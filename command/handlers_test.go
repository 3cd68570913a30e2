package command

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/placeholder"
	gcmd "github.com/goliatone/go-command"
)

type stubService struct {
	generate func(ctx context.Context, canvas certificate.Canvas, data placeholder.Data, filename string, opts certificate.ExportOptions) (certificate.ExportResult, error)
	batch    func(ctx context.Context, canvas certificate.Canvas, rows []placeholder.Data, opts certificate.BatchOptions) (certificate.BatchResult, error)
	export   func(ctx context.Context, canvas certificate.Canvas, opts certificate.ExportOptions) (certificate.ExportResult, error)
}

func (s *stubService) GenerateAndDownload(ctx context.Context, canvas certificate.Canvas, data placeholder.Data, filename string, opts certificate.ExportOptions) (certificate.ExportResult, error) {
	if s.generate != nil {
		return s.generate(ctx, canvas, data, filename, opts)
	}
	return certificate.ExportResult{}, nil
}

func (s *stubService) GenerateBatch(ctx context.Context, canvas certificate.Canvas, rows []placeholder.Data, opts certificate.BatchOptions) (certificate.BatchResult, error) {
	if s.batch != nil {
		return s.batch(ctx, canvas, rows, opts)
	}
	return certificate.BatchResult{}, nil
}

func (s *stubService) ExportWithOptions(ctx context.Context, canvas certificate.Canvas, opts certificate.ExportOptions) (certificate.ExportResult, error) {
	if s.export != nil {
		return s.export(ctx, canvas, opts)
	}
	return certificate.ExportResult{}, nil
}

func (s *stubService) Preview(ctx context.Context, canvas certificate.Canvas, quality certificate.Quality) ([]byte, error) {
	return nil, nil
}

func newCanvas() certificate.Canvas {
	return certificate.NewMemoryCanvas("doc-1", 800, 600, nil, &certificate.TextNode{ID: "t", Text: "{recipient_name}"})
}

func TestGenerateCertificateHandler_StoresResults(t *testing.T) {
	var seenActor certificate.Actor
	svc := &stubService{
		generate: func(ctx context.Context, canvas certificate.Canvas, data placeholder.Data, filename string, opts certificate.ExportOptions) (certificate.ExportResult, error) {
			seenActor, _ = certificate.ActorFromContext(ctx)
			return certificate.ExportResult{ID: "exp-1", Filename: filename + ".pdf"}, nil
		},
	}

	handler := NewGenerateCertificateHandler(svc)
	var got certificate.ExportResult
	result := gcmd.NewResult[certificate.ExportResult]()
	ctx := gcmd.ContextWithResult(context.Background(), result)

	err := handler.Execute(ctx, GenerateCertificate{
		Actor:    certificate.Actor{ID: "actor-1"},
		Canvas:   newCanvas(),
		Data:     placeholder.Data{"recipient_name": "Ann"},
		Filename: "ann",
		Result:   &got,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.ID != "exp-1" || got.Filename != "ann.pdf" {
		t.Fatalf("unexpected result pointer %+v", got)
	}
	stored, ok := result.Load()
	if !ok || stored.ID != "exp-1" {
		t.Fatalf("expected context result, got %+v", stored)
	}
	if seenActor.ID != "actor-1" {
		t.Fatalf("expected actor in context, got %+v", seenActor)
	}
}

func TestGenerateBatchHandler_KeepsPartialResult(t *testing.T) {
	stop := errors.New("row 2 failed")
	svc := &stubService{
		batch: func(ctx context.Context, canvas certificate.Canvas, rows []placeholder.Data, opts certificate.BatchOptions) (certificate.BatchResult, error) {
			return certificate.BatchResult{
				Results:  []certificate.ExportResult{{ID: "exp-1"}},
				Failures: []certificate.BatchFailure{{Row: 2, Kind: certificate.KindExternal, Error: stop.Error()}},
			}, stop
		},
	}

	var got certificate.BatchResult
	err := NewGenerateBatchHandler(svc).Execute(context.Background(), GenerateBatch{
		Canvas:  newCanvas(),
		Rows:    []placeholder.Data{{"recipient_name": "Ann"}, {"recipient_name": "Bo"}},
		Options: certificate.BatchOptions{StopOnError: true},
		Result:  &got,
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected batch error, got %v", err)
	}
	if got.Succeeded() != 1 || len(got.Failures) != 1 {
		t.Fatalf("expected partial result, got %+v", got)
	}
}

func TestExportCanvasHandler(t *testing.T) {
	svc := &stubService{
		export: func(ctx context.Context, canvas certificate.Canvas, opts certificate.ExportOptions) (certificate.ExportResult, error) {
			return certificate.ExportResult{ID: "exp-2", FileType: opts.FileType}, nil
		},
	}
	var got certificate.ExportResult
	err := NewExportCanvasHandler(svc).Execute(context.Background(), ExportCanvas{
		Canvas:  newCanvas(),
		Options: certificate.ExportOptions{FileType: certificate.FileTypePNG},
		Result:  &got,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.FileType != certificate.FileTypePNG {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestHandlers_RequireService(t *testing.T) {
	var handler *GenerateCertificateHandler
	if err := handler.Execute(context.Background(), GenerateCertificate{Canvas: newCanvas()}); err == nil {
		t.Fatalf("expected service required error")
	}
	if err := NewExportCanvasHandler(nil).Execute(context.Background(), ExportCanvas{}); err == nil {
		t.Fatalf("expected service required error")
	}
}

func TestMessages_Validate(t *testing.T) {
	if err := (GenerateCertificate{}).Validate(); err == nil {
		t.Fatalf("expected canvas required")
	}
	if err := (GenerateBatch{Canvas: newCanvas()}).Validate(); err == nil {
		t.Fatalf("expected rows required")
	}
	if err := (ExportCanvas{Canvas: newCanvas(), Options: certificate.ExportOptions{Quality: "ultra"}}).Validate(); err == nil {
		t.Fatalf("expected invalid quality")
	}
	if err := (ExportCanvas{Canvas: newCanvas()}).Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
}
