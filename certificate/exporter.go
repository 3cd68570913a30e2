package certificate

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-certificate/placeholder"
)

const (
	ContentTypePDF = "application/pdf"
	ContentTypePNG = "image/png"
)

// Lifecycle event names emitted through ChangeEmitter.
const (
	EventExportStarted   = "certificate.export.started"
	EventExportCompleted = "certificate.export.completed"
	EventExportFailed    = "certificate.export.failed"
)

// ExporterConfig supplies dependencies for Exporter.
type ExporterConfig struct {
	Assembler     PageAssembler
	Capturer      ElementCapturer
	Loader        ImageLoader
	Sink          Sink
	Locker        DocumentLocker
	Tracker       Tracker
	Emitter       ChangeEmitter
	Metrics       MetricsHook
	Logger        Logger
	QR            QRConfig
	QRConcurrency int
	Now           func() time.Time
}

// Exporter runs the certificate export pipeline.
type Exporter struct {
	assembler     PageAssembler
	capturer      ElementCapturer
	loader        ImageLoader
	sink          Sink
	locker        DocumentLocker
	tracker       Tracker
	emitter       ChangeEmitter
	metrics       MetricsHook
	logger        Logger
	qr            QRConfig
	qrConcurrency int
	now           func() time.Time
}

var _ Service = (*Exporter)(nil)

// NewExporter creates an Exporter. Missing locker, sink and logger fall back
// to in-memory and no-op implementations.
func NewExporter(cfg ExporterConfig) *Exporter {
	locker := cfg.Locker
	if locker == nil {
		locker = NewMemoryLocker()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = StoreSink{Store: NewMemoryStore()}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Exporter{
		assembler:     cfg.Assembler,
		capturer:      cfg.Capturer,
		loader:        cfg.Loader,
		sink:          sink,
		locker:        locker,
		tracker:       cfg.Tracker,
		emitter:       cfg.Emitter,
		metrics:       cfg.Metrics,
		logger:        logger,
		qr:            cfg.QR,
		qrConcurrency: cfg.QRConcurrency,
		now:           nowFn,
	}
}

// WithSink returns a copy of the exporter delivering to sink. Locks, tracker
// and emitter are shared.
func (e *Exporter) WithSink(sink Sink) *Exporter {
	if sink == nil {
		return e
	}
	clone := *e
	clone.sink = sink
	return &clone
}

// ExportPDF rasterizes the canvas and wraps it in a formatted PDF page.
func (e *Exporter) ExportPDF(ctx context.Context, canvas Canvas, opts ExportOptions) ([]byte, error) {
	if canvas == nil {
		return nil, NewError(KindValidation, "canvas is required", nil)
	}
	if e.assembler == nil {
		return nil, NewError(KindNotImpl, "pdf assembler not configured", nil)
	}
	opts = opts.withDefaults()
	layout, err := ComputePageLayout(opts)
	if err != nil {
		return nil, err
	}
	quality, err := QualityFor(opts.Quality)
	if err != nil {
		return nil, err
	}

	image, err := canvas.ToImage(ctx, RenderOptions{
		Format:     "png",
		Quality:    quality.ImageQuality,
		Multiplier: quality.Scale,
	})
	if err != nil {
		return nil, wrapStepError("rasterize canvas", err)
	}
	pdf, err := e.assembler.Assemble(ctx, AssembleRequest{Layout: layout, Image: image, ImageType: "PNG"})
	if err != nil {
		return nil, wrapStepError("assemble pdf", err)
	}
	return pdf, nil
}

// ExportPNG rasterizes the canvas at the quality's scale.
func (e *Exporter) ExportPNG(ctx context.Context, canvas Canvas, quality Quality) ([]byte, error) {
	if canvas == nil {
		return nil, NewError(KindValidation, "canvas is required", nil)
	}
	if quality == "" {
		quality = DefaultExportOptions().Quality
	}
	settings, err := QualityFor(quality)
	if err != nil {
		return nil, err
	}
	image, err := canvas.ToImage(ctx, RenderOptions{
		Format:     "png",
		Quality:    settings.ImageQuality,
		Multiplier: settings.Scale,
	})
	if err != nil {
		return nil, wrapStepError("rasterize canvas", err)
	}
	return image, nil
}

// ExportElementPDF is the fallback path for generic on-screen elements. It
// captures the element and builds the page without bleed or crop marks.
func (e *Exporter) ExportElementPDF(ctx context.Context, el Element, opts ExportOptions) ([]byte, error) {
	if e.capturer == nil {
		return nil, NewError(KindNotImpl, "element capturer not configured", nil)
	}
	if e.assembler == nil {
		return nil, NewError(KindNotImpl, "pdf assembler not configured", nil)
	}
	if el.HTML == "" && el.URL == "" {
		return nil, NewError(KindValidation, "element html or url is required", nil)
	}
	opts = opts.withDefaults()
	layout, err := ElementLayout(opts)
	if err != nil {
		return nil, err
	}
	quality, err := QualityFor(opts.Quality)
	if err != nil {
		return nil, err
	}

	image, err := e.capturer.Capture(ctx, el, CaptureOptions{
		Scale:           quality.Scale,
		UseCORS:         true,
		AllowTaint:      true,
		BackgroundColor: "#ffffff",
		ImageQuality:    quality.ImageQuality,
	})
	if err != nil {
		return nil, wrapStepError("capture element", err)
	}
	pdf, err := e.assembler.Assemble(ctx, AssembleRequest{Layout: layout, Image: image, ImageType: "PNG"})
	if err != nil {
		return nil, wrapStepError("assemble pdf", err)
	}
	return pdf, nil
}

// DownloadPDF exports a PDF and delivers it as filename, adding .pdf when
// missing.
func (e *Exporter) DownloadPDF(ctx context.Context, canvas Canvas, filename string, opts ExportOptions) (ArtifactRef, error) {
	data, err := e.ExportPDF(ctx, canvas, opts)
	if err != nil {
		return ArtifactRef{}, err
	}
	return e.deliver(ctx, NormalizeFilename(filename, "pdf"), ContentTypePDF, data)
}

// DownloadPNG exports a PNG and delivers it as filename, adding .png when
// missing.
func (e *Exporter) DownloadPNG(ctx context.Context, canvas Canvas, filename string, quality Quality) (ArtifactRef, error) {
	data, err := e.ExportPNG(ctx, canvas, quality)
	if err != nil {
		return ArtifactRef{}, err
	}
	return e.deliver(ctx, NormalizeFilename(filename, "png"), ContentTypePNG, data)
}

func (e *Exporter) deliver(ctx context.Context, filename, contentType string, data []byte) (ArtifactRef, error) {
	ref, err := e.sink.Deliver(ctx, File{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		return ArtifactRef{}, wrapStepError("deliver "+filename, err)
	}
	if ref.Meta.Filename == "" {
		ref.Meta.Filename = filename
	}
	if ref.Meta.Size == 0 {
		ref.Meta.Size = int64(len(data))
	}
	return ref, nil
}

// ExportWithOptions delivers PDF, PNG or both depending on opts.FileType.
func (e *Exporter) ExportWithOptions(ctx context.Context, canvas Canvas, opts ExportOptions) (ExportResult, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return ExportResult{}, err
	}
	artifacts, err := e.exportFiles(ctx, canvas, opts.Filename, opts)
	if err != nil {
		return ExportResult{}, err
	}
	return newExportResult(uuid.NewString(), opts.FileType, artifacts, QRReport{}), nil
}

func (e *Exporter) exportFiles(ctx context.Context, canvas Canvas, filename string, opts ExportOptions) ([]ArtifactRef, error) {
	base := StripExtension(filename)
	if base == "" {
		base = DefaultFilename
	}

	artifacts := []ArtifactRef{}
	if opts.FileType == FileTypePDF || opts.FileType == FileTypeBoth {
		ref, err := e.DownloadPDF(ctx, canvas, base, opts)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, ref)
	}
	if opts.FileType == FileTypePNG || opts.FileType == FileTypeBoth {
		ref, err := e.DownloadPNG(ctx, canvas, base, opts.Quality)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, ref)
	}
	return artifacts, nil
}

// GenerateAndDownload populates the canvas with data, replaces QR placeholders
// when data carries a certificate id, delivers the output and always restores
// the canvas before returning.
func (e *Exporter) GenerateAndDownload(ctx context.Context, canvas Canvas, data placeholder.Data, filename string, opts ExportOptions) (result ExportResult, err error) {
	if canvas == nil {
		return ExportResult{}, NewError(KindValidation, "canvas is required", nil)
	}
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return ExportResult{}, err
	}
	if filename == "" {
		filename = opts.Filename
	}

	release, err := e.locker.Acquire(ctx, canvas.ID())
	if err != nil {
		return ExportResult{}, err
	}
	defer release()

	data = e.enrichData(data)
	certificateID := data.Get(placeholder.FieldCertificateID)
	run := e.start(ctx, canvas.ID(), certificateID, filename, opts.FileType)

	var qr QRReport
	defer func() {
		if err != nil {
			e.fail(ctx, run, err)
			return
		}
		e.complete(ctx, run, result)
	}()

	snapshot := StoreOriginalText(canvas)
	defer func() {
		reverted := RevertQRPlaceholders(canvas, qr)
		restored := RestoreOriginalText(canvas, snapshot)
		e.logger.Debugf("certificate: restored %d text nodes, reverted %d qr nodes on %s", restored, reverted, canvas.ID())
	}()

	PrepareCanvasForExport(canvas, data)

	if certificateID != "" {
		qr, err = e.replaceQR(ctx, canvas, certificateID)
		if err != nil {
			return ExportResult{}, err
		}
	}

	artifacts, err := e.exportFiles(ctx, canvas, filename, opts)
	if err != nil {
		return ExportResult{}, err
	}
	return newExportResult(run.id, opts.FileType, artifacts, qr), nil
}

// Preview renders the canvas populated with sample data as PNG.
func (e *Exporter) Preview(ctx context.Context, canvas Canvas, quality Quality) ([]byte, error) {
	if canvas == nil {
		return nil, NewError(KindValidation, "canvas is required", nil)
	}
	release, err := e.locker.Acquire(ctx, canvas.ID())
	if err != nil {
		return nil, err
	}
	defer release()

	snapshot := StoreOriginalText(canvas)
	defer RestoreOriginalText(canvas, snapshot)

	PrepareCanvasForExport(canvas, placeholder.SampleData())
	return e.ExportPNG(ctx, canvas, quality)
}

func (e *Exporter) replaceQR(ctx context.Context, canvas Canvas, certificateID string) (QRReport, error) {
	if e.loader == nil {
		e.logger.Infof("certificate: no image loader configured, qr placeholders on %s left unchanged", canvas.ID())
		return QRReport{}, nil
	}
	return QRReplacer{
		Loader:      e.loader,
		Config:      e.qr,
		Concurrency: e.qrConcurrency,
		Logger:      e.logger,
	}.Replace(ctx, canvas, certificateID)
}

// enrichData fills verification_url from certificate_id when a verify base is
// configured and the caller did not provide one.
func (e *Exporter) enrichData(data placeholder.Data) placeholder.Data {
	out := data.Clone()
	id := out.Get(placeholder.FieldCertificateID)
	if id == "" || e.qr.VerifyBaseURL == "" || out.Get(placeholder.FieldVerificationURL) != "" {
		return out
	}
	out[placeholder.FieldVerificationURL] = VerifyURL(id, e.qr.VerifyBaseURL)
	return out
}

type exportRun struct {
	id            string
	documentID    string
	certificateID string
	fileType      FileType
	actor         Actor
	tracked       bool
	startedAt     time.Time
}

func (e *Exporter) start(ctx context.Context, documentID, certificateID, filename string, fileType FileType) exportRun {
	actor, _ := ActorFromContext(ctx)
	run := exportRun{
		id:            uuid.NewString(),
		documentID:    documentID,
		certificateID: certificateID,
		fileType:      fileType,
		actor:         actor,
		startedAt:     e.now(),
	}
	if e.tracker != nil {
		id, err := e.tracker.Start(ctx, ExportRecord{
			ID:            run.id,
			DocumentID:    documentID,
			CertificateID: certificateID,
			FileType:      fileType,
			Filename:      filename,
			State:         StateRunning,
			RequestedBy:   actor,
			CreatedAt:     e.now(),
		})
		if err != nil {
			e.logger.Errorf("certificate: tracker start failed: %v", err)
		} else {
			run.id = id
			run.tracked = true
		}
	}
	e.emit(ctx, run, EventExportStarted, nil)
	return run
}

func (e *Exporter) complete(ctx context.Context, run exportRun, result ExportResult) {
	if run.tracked {
		outcome := ExportOutcome{Bytes: result.Bytes, QRReplaced: result.QRReplaced, QRFailed: result.QRFailed}
		if len(result.Artifacts) > 0 {
			outcome.Artifact = result.Artifacts[0]
		}
		if err := e.tracker.Complete(ctx, run.id, outcome); err != nil {
			e.logger.Errorf("certificate: tracker complete failed for %s: %v", run.id, err)
		}
	}
	e.emit(ctx, run, EventExportCompleted, map[string]any{
		"bytes":       result.Bytes,
		"qr_replaced": result.QRReplaced,
		"qr_failed":   result.QRFailed,
		"artifacts":   len(result.Artifacts),
	})
	e.emitMetrics(ctx, run, EventExportCompleted, result, nil)
}

func (e *Exporter) fail(ctx context.Context, run exportRun, err error) {
	if run.tracked {
		// the request context may already be done; record the failure anyway
		if trackErr := e.tracker.Fail(context.WithoutCancel(ctx), run.id, err); trackErr != nil {
			e.logger.Errorf("certificate: tracker fail failed for %s: %v", run.id, trackErr)
		}
	}
	e.logger.Errorf("certificate: export %s failed: %v", run.id, err)
	e.emit(ctx, run, EventExportFailed, map[string]any{
		"error": err.Error(),
		"kind":  string(KindFromError(err)),
	})
	e.emitMetrics(ctx, run, EventExportFailed, ExportResult{}, err)
}

func (e *Exporter) emitMetrics(ctx context.Context, run exportRun, name string, result ExportResult, err error) {
	if e.metrics == nil {
		return
	}
	now := e.now()
	kind := ErrorKind("")
	if err != nil {
		kind = KindFromError(err)
	}
	if metricsErr := e.metrics.Emit(context.WithoutCancel(ctx), MetricsEvent{
		Name:       name,
		ExportID:   run.id,
		DocumentID: run.documentID,
		FileType:   run.fileType,
		Actor:      run.actor,
		Bytes:      result.Bytes,
		Artifacts:  len(result.Artifacts),
		QRReplaced: result.QRReplaced,
		QRFailed:   result.QRFailed,
		Duration:   now.Sub(run.startedAt),
		ErrorKind:  kind,
		Timestamp:  now,
	}); metricsErr != nil {
		e.logger.Errorf("certificate: metrics %s failed: %v", name, metricsErr)
	}
}

func (e *Exporter) emit(ctx context.Context, run exportRun, name string, meta map[string]any) {
	if e.emitter == nil {
		return
	}
	if err := e.emitter.Emit(context.WithoutCancel(ctx), ChangeEvent{
		Name:          name,
		ExportID:      run.id,
		DocumentID:    run.documentID,
		CertificateID: run.certificateID,
		FileType:      run.fileType,
		Actor:         run.actor,
		Timestamp:     e.now(),
		Metadata:      meta,
	}); err != nil {
		e.logger.Errorf("certificate: emit %s failed: %v", name, err)
	}
}

func newExportResult(id string, fileType FileType, artifacts []ArtifactRef, qr QRReport) ExportResult {
	result := ExportResult{
		ID:         id,
		FileType:   fileType,
		QRReplaced: qr.Replaced,
		QRFailed:   qr.Failed,
		Artifacts:  artifacts,
	}
	for _, ref := range artifacts {
		result.Bytes += ref.Meta.Size
	}
	if len(artifacts) > 0 {
		result.Filename = artifacts[0].Meta.Filename
	}
	return result
}

// wrapStepError labels err with the failing step, keeping its kind.
func wrapStepError(step string, err error) error {
	return NewError(KindFromError(err), step, err)
}
