package certhttp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/placeholder"
	"github.com/goliatone/go-certificate/query"
)

// DefaultBasePath is used when Config.BasePath is empty.
const DefaultBasePath = "/api/certificates"

// BatchScheduler queues batches and returns their tracked record.
type BatchScheduler interface {
	RequestBatch(ctx context.Context, actor certificate.Actor, document []byte, rows []placeholder.Data, opts certificate.BatchOptions) (certificate.ExportRecord, error)
}

// Verifier checks signed artifact URLs.
type Verifier interface {
	Verify(key, expires, signature string) error
}

// Config configures the HTTP transport.
type Config struct {
	Service    certificate.Service
	Rasterizer certificate.Rasterizer
	Store      certificate.ArtifactStore
	Tracker    certificate.Tracker
	// Batches enables POST {base}/batches?async=1.
	Batches BatchScheduler
	// Verifier enables GET {base}/artifacts/* for signed URLs.
	Verifier     Verifier
	Actor        ActorFunc
	BasePath     string
	SignedURLTTL time.Duration
	Logger       certificate.Logger
}

// Handler exposes certificate endpoints on fiber.
type Handler struct {
	service      certificate.Service
	rasterizer   certificate.Rasterizer
	store        certificate.ArtifactStore
	tracker      certificate.Tracker
	batches      BatchScheduler
	verifier     Verifier
	actor        ActorFunc
	basePath     string
	signedURLTTL time.Duration
	logger       certificate.Logger
}

// NewHandler creates a fiber handler.
func NewHandler(cfg Config) *Handler {
	basePath := strings.TrimRight(cfg.BasePath, "/")
	if basePath == "" {
		basePath = DefaultBasePath
	}
	actor := cfg.Actor
	if actor == nil {
		actor = HeaderActor
	}
	logger := cfg.Logger
	if logger == nil {
		logger = certificate.NopLogger{}
	}
	return &Handler{
		service:      cfg.Service,
		rasterizer:   cfg.Rasterizer,
		store:        cfg.Store,
		tracker:      cfg.Tracker,
		batches:      cfg.Batches,
		verifier:     cfg.Verifier,
		actor:        actor,
		basePath:     basePath,
		signedURLTTL: cfg.SignedURLTTL,
		logger:       logger,
	}
}

// BasePath returns the mounted path prefix.
func (h *Handler) BasePath() string {
	return h.basePath
}

// RegisterRoutes mounts the certificate routes on r.
func (h *Handler) RegisterRoutes(r fiber.Router) {
	g := r.Group(h.basePath, h.withActor)

	g.Get("/placeholders", h.ListPlaceholders)
	g.Get("/placeholders/sample", h.SamplePlaceholders)
	g.Get("/dimensions", h.Dimensions)
	g.Post("/exports", h.CreateExport)
	g.Get("/exports", h.ListExports)
	g.Get("/exports/:id", h.ExportStatus)
	g.Post("/batches", h.CreateBatch)
	g.Post("/preview", h.Preview)
	if h.verifier != nil {
		g.Get("/artifacts/*", h.DownloadArtifact)
	}
}

// ListPlaceholders returns the placeholder catalog, optionally filtered by ?category=.
func (h *Handler) ListPlaceholders(c *fiber.Ctx) error {
	msg := query.Placeholders{Category: placeholder.Category(c.Query("category"))}
	if err := msg.Validate(); err != nil {
		return writeError(c, err)
	}
	defs, err := query.NewPlaceholdersHandler().Query(c.UserContext(), msg)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"placeholders": defs,
		"categories":   placeholder.Categories(),
	})
}

// SamplePlaceholders returns the preview data set.
func (h *Handler) SamplePlaceholders(c *fiber.Ctx) error {
	return c.JSON(placeholder.SampleData())
}

// Dimensions reports page size and pixel dimensions for a format.
func (h *Handler) Dimensions(c *fiber.Ctx) error {
	opts, err := parseDimensionOptions(c)
	if err != nil {
		return writeError(c, err)
	}
	defaults := certificate.DefaultExportOptions()
	if opts.Orientation == "" {
		opts.Orientation = defaults.Orientation
	}
	if opts.Quality == "" {
		opts.Quality = defaults.Quality
	}

	layout, err := certificate.ComputePageLayout(opts)
	if err != nil {
		return writeError(c, err)
	}
	settings, err := certificate.QualityFor(opts.Quality)
	if err != nil {
		return writeError(c, err)
	}
	pixels, err := certificate.PixelDimensions(opts.Format, opts.Orientation, settings.DPI)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"format":      opts.Format,
		"orientation": opts.Orientation,
		"quality":     opts.Quality,
		"dpi":         settings.DPI,
		"content_mm":  layout.Content,
		"page_mm":     layout.Page,
		"bleed_mm":    layout.Bleed,
		"pixels":      pixels,
	})
}

// CreateExport populates the document and streams the result. Responses are
// JSON when file_type is "both" or ?respond=json is set.
func (h *Handler) CreateExport(c *fiber.Ctx) error {
	if h.service == nil {
		return writeError(c, certificate.NewError(certificate.KindNotImpl, "certificate service not configured", nil))
	}
	var req ExportRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	canvas, err := h.canvas(req.Document)
	if err != nil {
		return writeError(c, err)
	}

	result, err := h.service.GenerateAndDownload(c.UserContext(), canvas, req.Data, req.Filename, req.Options)
	if err != nil {
		h.logger.Errorf("certificate export %s failed: %v", canvas.ID(), err)
		return writeError(c, err)
	}
	c.Set("X-Export-ID", result.ID)

	if len(result.Artifacts) == 1 && c.Query("respond") != "json" && h.store != nil {
		return h.stream(c, result.Artifacts[0])
	}
	return c.Status(http.StatusCreated).JSON(h.exportResponse(c, result))
}

// CreateBatch generates one certificate per row. With ?async=1 the batch is
// queued and the tracked record is returned with 202.
func (h *Handler) CreateBatch(c *fiber.Ctx) error {
	async := c.QueryBool("async", false)
	if async && h.batches == nil {
		return writeError(c, certificate.NewError(certificate.KindNotImpl, "async batches not configured", nil))
	}
	if !async && h.service == nil {
		return writeError(c, certificate.NewError(certificate.KindNotImpl, "certificate service not configured", nil))
	}
	req, err := decodeBatch(c)
	if err != nil {
		return writeError(c, err)
	}
	canvas, err := h.canvas(req.Document)
	if err != nil {
		return writeError(c, err)
	}

	if async {
		actor, _ := certificate.ActorFromContext(c.UserContext())
		record, err := h.batches.RequestBatch(c.UserContext(), actor, req.Document, req.Rows, req.Options)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(http.StatusAccepted).JSON(record)
	}

	result, err := h.service.GenerateBatch(c.UserContext(), canvas, req.Rows, req.Options)
	if err != nil && result.Results == nil {
		return writeError(c, err)
	}
	status := http.StatusOK
	if err != nil || len(result.Failures) > 0 {
		status = http.StatusMultiStatus
	}
	return c.Status(status).JSON(result)
}

// Preview renders the document with sample data as PNG.
func (h *Handler) Preview(c *fiber.Ctx) error {
	if h.service == nil {
		return writeError(c, certificate.NewError(certificate.KindNotImpl, "certificate service not configured", nil))
	}
	var req PreviewRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, err)
	}
	canvas, err := h.canvas(req.Document)
	if err != nil {
		return writeError(c, err)
	}
	quality := req.Quality
	if quality == "" {
		quality = certificate.QualityStandard
	}

	png, err := h.service.Preview(c.UserContext(), canvas, quality)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, certificate.ContentTypePNG)
	return c.Send(png)
}

// ExportStatus returns one tracked export.
func (h *Handler) ExportStatus(c *fiber.Ctx) error {
	if h.tracker == nil {
		return writeError(c, certificate.NewError(certificate.KindNotImpl, "export tracking not configured", nil))
	}
	actor, _ := certificate.ActorFromContext(c.UserContext())
	msg := query.ExportStatus{Actor: actor, ExportID: c.Params("id")}
	if err := msg.Validate(); err != nil {
		return writeError(c, err)
	}
	record, err := query.NewExportStatusHandler(h.tracker).Query(c.UserContext(), msg)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(record)
}

// ListExports returns tracked exports visible to the actor, newest first.
func (h *Handler) ListExports(c *fiber.Ctx) error {
	if h.tracker == nil {
		return writeError(c, certificate.NewError(certificate.KindNotImpl, "export tracking not configured", nil))
	}
	filter, err := parseFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	actor, _ := certificate.ActorFromContext(c.UserContext())
	msg := query.ExportHistory{Actor: actor, Filter: filter}
	if err := msg.Validate(); err != nil {
		return writeError(c, err)
	}
	records, err := query.NewExportHistoryHandler(h.tracker).Query(c.UserContext(), msg)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"exports": records})
}

// DownloadArtifact serves a stored artifact behind a signed URL.
func (h *Handler) DownloadArtifact(c *fiber.Ctx) error {
	key := c.Params("*")
	if err := h.verifier.Verify(key, c.Query("expires"), c.Query("signature")); err != nil {
		return writeError(c, fiber.NewError(http.StatusForbidden, err.Error()))
	}
	if h.store == nil {
		return writeError(c, certificate.NewError(certificate.KindNotImpl, "artifact store not configured", nil))
	}
	return h.stream(c, certificate.ArtifactRef{Key: key})
}

func (h *Handler) canvas(document []byte) (*certificate.MemoryCanvas, error) {
	if len(bytes.TrimSpace(document)) == 0 {
		return nil, certificate.NewError(certificate.KindValidation, "document is required", nil)
	}
	return certificate.NewCanvasFromJSON(document, h.rasterizer)
}

func (h *Handler) stream(c *fiber.Ctx, ref certificate.ArtifactRef) error {
	reader, meta, err := h.store.Open(c.UserContext(), ref.Key)
	if err != nil {
		return writeError(c, err)
	}
	filename := meta.Filename
	if filename == "" {
		filename = ref.Meta.Filename
	}
	if meta.ContentType != "" {
		c.Set(fiber.HeaderContentType, meta.ContentType)
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	size := -1
	if meta.Size > 0 {
		size = int(meta.Size)
	}
	// fiber closes the reader once the body is written
	return c.SendStream(reader, size)
}

func (h *Handler) exportResponse(c *fiber.Ctx, result certificate.ExportResult) ExportResponse {
	resp := ExportResponse{ExportResult: result}
	if h.store == nil || h.signedURLTTL <= 0 {
		return resp
	}
	for _, ref := range result.Artifacts {
		signed, err := h.store.SignedURL(c.UserContext(), ref.Key, h.signedURLTTL)
		if err != nil {
			h.logger.Debugf("certificate: no signed url for %s: %v", ref.Key, err)
			continue
		}
		resp.URLs = append(resp.URLs, signed)
	}
	return resp
}
