package main

import (
	"context"

	"github.com/goliatone/go-certificate/certificate"
	"go.uber.org/zap"
)

// logMetrics reports export timings as structured log entries.
type logMetrics struct {
	log *zap.Logger
}

var _ certificate.MetricsHook = logMetrics{}

func (m logMetrics) Emit(_ context.Context, evt certificate.MetricsEvent) error {
	fields := []zap.Field{
		zap.String("export_id", evt.ExportID),
		zap.String("document_id", evt.DocumentID),
		zap.String("file_type", string(evt.FileType)),
		zap.String("actor", evt.Actor.ID),
		zap.Int64("bytes", evt.Bytes),
		zap.Int("artifacts", evt.Artifacts),
		zap.Int("qr_replaced", evt.QRReplaced),
		zap.Int("qr_failed", evt.QRFailed),
		zap.Duration("duration", evt.Duration),
	}
	if evt.ErrorKind != "" {
		fields = append(fields, zap.String("error_kind", string(evt.ErrorKind)))
	}
	m.log.Info(evt.Name, fields...)
	return nil
}
