package certificate

import (
	"context"
	"io"
	"time"

	"github.com/goliatone/go-certificate/placeholder"
)

// PaperFormat is the output paper size.
type PaperFormat string

const (
	FormatA4     PaperFormat = "A4"
	FormatLetter PaperFormat = "Letter"
	FormatA3     PaperFormat = "A3"
	FormatA5     PaperFormat = "A5"
	FormatCustom PaperFormat = "Custom"
)

// Orientation is the page orientation.
type Orientation string

const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
)

// Quality selects the rasterization scale and nominal DPI.
type Quality string

const (
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
	QualityPrint    Quality = "print"
	QualityPrint300 Quality = "print-300dpi"
)

// FileType selects which outputs ExportWithOptions produces.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypePNG  FileType = "png"
	FileTypeBoth FileType = "both"
)

// DefaultBleedMM is applied when bleed is requested without a size.
const DefaultBleedMM = 3.0

// ExportOptions configures a single export call.
type ExportOptions struct {
	Format       PaperFormat `json:"format,omitempty"`
	Orientation  Orientation `json:"orientation,omitempty"`
	Quality      Quality     `json:"quality,omitempty"`
	Filename     string      `json:"filename,omitempty"`
	IncludeBleed bool        `json:"include_bleed,omitempty"`
	BleedMM      *float64    `json:"bleed_mm,omitempty"`
	FileType     FileType    `json:"file_type,omitempty"`
}

// QualitySettings holds the raster parameters for a Quality.
type QualitySettings struct {
	Scale        float64
	ImageQuality float64
	DPI          int
}

// SizeMM is a width/height pair in millimeters.
type SizeMM struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RenderOptions configures canvas rasterization.
type RenderOptions struct {
	Format     string
	Quality    float64
	Multiplier float64
}

// Rasterizer renders a canvas scene to encoded image bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, scene Scene, opts RenderOptions) ([]byte, error)
}

// RasterizerFunc adapts a function to a Rasterizer.
type RasterizerFunc func(ctx context.Context, scene Scene, opts RenderOptions) ([]byte, error)

func (f RasterizerFunc) Rasterize(ctx context.Context, scene Scene, opts RenderOptions) ([]byte, error) {
	if f == nil {
		return nil, NewError(KindInternal, "rasterizer func is nil", nil)
	}
	return f(ctx, scene, opts)
}

// AssembleRequest describes a single PDF page build.
type AssembleRequest struct {
	Layout    PageLayout
	Image     []byte
	ImageType string
}

// PageAssembler wraps a raster image into a formatted PDF page.
type PageAssembler interface {
	Assemble(ctx context.Context, req AssembleRequest) ([]byte, error)
}

// Element is an on-screen visual element captured by the fallback path.
type Element struct {
	HTML     string
	URL      string
	Selector string
	Width    int
	Height   int
}

// CaptureOptions configures element capture.
type CaptureOptions struct {
	Scale           float64
	UseCORS         bool
	AllowTaint      bool
	BackgroundColor string
	ImageQuality    float64
}

// ElementCapturer rasterizes an element through a screenshot-style renderer.
type ElementCapturer interface {
	Capture(ctx context.Context, el Element, opts CaptureOptions) ([]byte, error)
}

// Image is a loaded image payload.
type Image struct {
	Data        []byte
	ContentType string
}

// ImageLoader fetches images by URL.
type ImageLoader interface {
	Load(ctx context.Context, url string) (Image, error)
}

// ImageLoaderFunc adapts a function to an ImageLoader.
type ImageLoaderFunc func(ctx context.Context, url string) (Image, error)

func (f ImageLoaderFunc) Load(ctx context.Context, url string) (Image, error) {
	if f == nil {
		return Image{}, NewError(KindInternal, "image loader func is nil", nil)
	}
	return f(ctx, url)
}

// File is a produced output handed to a Sink.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Sink delivers produced files, standing in for a browser download.
type Sink interface {
	Deliver(ctx context.Context, file File) (ArtifactRef, error)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, file File) (ArtifactRef, error)

func (f SinkFunc) Deliver(ctx context.Context, file File) (ArtifactRef, error) {
	if f == nil {
		return ArtifactRef{}, NewError(KindInternal, "sink func is nil", nil)
	}
	return f(ctx, file)
}

// ArtifactMeta captures stored artifact metadata.
type ArtifactMeta struct {
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Filename    string    `json:"filename"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtifactRef references a delivered artifact.
type ArtifactRef struct {
	Key  string       `json:"key"`
	Meta ArtifactMeta `json:"meta"`
}

// ArtifactStore stores produced certificates.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error)
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ExportState captures export progress states.
type ExportState string

const (
	StateRunning   ExportState = "running"
	StateCompleted ExportState = "completed"
	StateFailed    ExportState = "failed"
)

// ExportRecord captures tracker state for one export.
type ExportRecord struct {
	ID            string      `json:"id"`
	DocumentID    string      `json:"document_id"`
	CertificateID string      `json:"certificate_id,omitempty"`
	FileType      FileType    `json:"file_type"`
	Filename      string      `json:"filename"`
	State         ExportState `json:"state"`
	RequestedBy   Actor       `json:"requested_by"`
	Bytes         int64       `json:"bytes"`
	QRReplaced    int         `json:"qr_replaced"`
	QRFailed      int         `json:"qr_failed"`
	Error         string      `json:"error,omitempty"`
	Artifact      ArtifactRef `json:"artifact"`
	CreatedAt     time.Time   `json:"created_at"`
	CompletedAt   time.Time   `json:"completed_at"`
}

// ExportOutcome is recorded when an export completes.
type ExportOutcome struct {
	Bytes      int64
	QRReplaced int
	QRFailed   int
	Artifact   ArtifactRef
}

// RecordFilter filters tracker lists.
type RecordFilter struct {
	DocumentID    string
	CertificateID string
	State         ExportState
	Since         time.Time
	Until         time.Time
}

// Tracker records export progress.
type Tracker interface {
	Start(ctx context.Context, record ExportRecord) (string, error)
	Complete(ctx context.Context, id string, outcome ExportOutcome) error
	Fail(ctx context.Context, id string, err error) error
	Status(ctx context.Context, id string) (ExportRecord, error)
	List(ctx context.Context, filter RecordFilter) ([]ExportRecord, error)
}

// Actor identifies the requesting principal.
type Actor struct {
	ID       string `json:"id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	OrgID    string `json:"org_id,omitempty"`
}

// ChangeEvent describes export lifecycle events.
type ChangeEvent struct {
	Name          string
	ExportID      string
	DocumentID    string
	CertificateID string
	FileType      FileType
	Actor         Actor
	Timestamp     time.Time
	Metadata      map[string]any
}

// ChangeEmitter emits lifecycle events.
type ChangeEmitter interface {
	Emit(ctx context.Context, evt ChangeEvent) error
}

// MetricsEvent describes a finished export run.
type MetricsEvent struct {
	Name       string
	ExportID   string
	DocumentID string
	FileType   FileType
	Actor      Actor
	Bytes      int64
	Artifacts  int
	QRReplaced int
	QRFailed   int
	Duration   time.Duration
	ErrorKind  ErrorKind
	Timestamp  time.Time
}

// MetricsHook receives duration and size observations for export runs.
type MetricsHook interface {
	Emit(ctx context.Context, evt MetricsEvent) error
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// ExportResult summarizes a completed download.
type ExportResult struct {
	ID         string        `json:"id"`
	Filename   string        `json:"filename"`
	FileType   FileType      `json:"file_type"`
	Bytes      int64         `json:"bytes"`
	QRReplaced int           `json:"qr_replaced"`
	QRFailed   int           `json:"qr_failed"`
	Artifacts  []ArtifactRef `json:"artifacts"`
}

// Service is the certificate export surface used by transports and commands.
type Service interface {
	GenerateAndDownload(ctx context.Context, canvas Canvas, data placeholder.Data, filename string, opts ExportOptions) (ExportResult, error)
	GenerateBatch(ctx context.Context, canvas Canvas, rows []placeholder.Data, opts BatchOptions) (BatchResult, error)
	ExportWithOptions(ctx context.Context, canvas Canvas, opts ExportOptions) (ExportResult, error)
	Preview(ctx context.Context, canvas Canvas, quality Quality) ([]byte, error)
}
