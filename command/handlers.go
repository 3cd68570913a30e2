package command

import (
	"context"

	"github.com/goliatone/go-certificate/certificate"
	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
)

// GenerateCertificateHandler runs GenerateAndDownload.
type GenerateCertificateHandler struct {
	Service certificate.Service
}

func NewGenerateCertificateHandler(svc certificate.Service) *GenerateCertificateHandler {
	return &GenerateCertificateHandler{Service: svc}
}

func (h *GenerateCertificateHandler) Execute(ctx context.Context, msg GenerateCertificate) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	result, err := h.Service.GenerateAndDownload(withActor(ctx, msg.Actor), msg.Canvas, msg.Data, msg.Filename, msg.Options)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[certificate.ExportResult](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// GenerateBatchHandler runs GenerateBatch. Partial results are stored even
// when the batch stops on an error.
type GenerateBatchHandler struct {
	Service certificate.Service
}

func NewGenerateBatchHandler(svc certificate.Service) *GenerateBatchHandler {
	return &GenerateBatchHandler{Service: svc}
}

func (h *GenerateBatchHandler) Execute(ctx context.Context, msg GenerateBatch) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	result, err := h.Service.GenerateBatch(withActor(ctx, msg.Actor), msg.Canvas, msg.Rows, msg.Options)
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[certificate.BatchResult](ctx); res != nil {
		res.Store(result)
	}
	return err
}

// ExportCanvasHandler runs ExportWithOptions.
type ExportCanvasHandler struct {
	Service certificate.Service
}

func NewExportCanvasHandler(svc certificate.Service) *ExportCanvasHandler {
	return &ExportCanvasHandler{Service: svc}
}

func (h *ExportCanvasHandler) Execute(ctx context.Context, msg ExportCanvas) error {
	if h == nil || h.Service == nil {
		return serviceRequired()
	}
	result, err := h.Service.ExportWithOptions(withActor(ctx, msg.Actor), msg.Canvas, msg.Options)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[certificate.ExportResult](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

func withActor(ctx context.Context, actor certificate.Actor) context.Context {
	if actor == (certificate.Actor{}) {
		return ctx
	}
	return certificate.ContextWithActor(ctx, actor)
}

func serviceRequired() error {
	return errors.New("certificate service is required", errors.CategoryInternal).
		WithTextCode("SERVICE_REQUIRED")
}
