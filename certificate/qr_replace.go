package certificate

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultQRConcurrency bounds concurrent QR image loads.
const DefaultQRConcurrency = 4

// QRSwap records one placeholder replaced by a generated QR node.
type QRSwap struct {
	Placeholder *ImageNode
	Generated   *ImageNode
}

// QRReport summarizes a QR replacement pass.
type QRReport struct {
	Replaced int
	Failed   int
	Swaps    []QRSwap
}

// QRReplacer replaces QR placeholder images with generated codes.
type QRReplacer struct {
	Loader      ImageLoader
	Config      QRConfig
	Concurrency int
	Logger      Logger
}

// ReplaceQRPlaceholders replaces every QR placeholder on the canvas using
// loader and the default QR service.
func ReplaceQRPlaceholders(ctx context.Context, canvas Canvas, certificateID string, loader ImageLoader) (QRReport, error) {
	return QRReplacer{Loader: loader}.Replace(ctx, canvas, certificateID)
}

type qrLoad struct {
	placeholder *ImageNode
	generated   *ImageNode
}

// Replace loads QR images concurrently and applies the swaps in enumeration
// order. A failed load is logged and counted; the placeholder stays.
func (r QRReplacer) Replace(ctx context.Context, canvas Canvas, certificateID string) (QRReport, error) {
	if canvas == nil {
		return QRReport{}, NewError(KindValidation, "canvas is required", nil)
	}
	if certificateID == "" {
		return QRReport{}, NewError(KindValidation, "certificate id is required", nil)
	}
	if r.Loader == nil {
		return QRReport{}, NewError(KindValidation, "image loader is required", nil)
	}
	logger := r.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultQRConcurrency
	}

	placeholders := []*ImageNode{}
	for _, node := range canvas.Objects() {
		node.Accept(NodeFuncs{Image: func(n *ImageNode) {
			if n.QRPlaceholder {
				placeholders = append(placeholders, n)
			}
		}})
	}
	if len(placeholders) == 0 {
		return QRReport{}, nil
	}

	src := r.Config.URL(certificateID, ExportQRSize, "")
	loads := make([]qrLoad, len(placeholders))

	group := &errgroup.Group{}
	group.SetLimit(limit)
	for i, node := range placeholders {
		i, node := i, node
		loads[i].placeholder = node
		group.Go(func() error {
			img, err := r.Loader.Load(ctx, src)
			if err != nil {
				logger.Errorf("certificate: qr load failed for node %s: %v", node.ID, err)
				return nil
			}
			loads[i].generated = generatedQRNode(node, src, img)
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return QRReport{}, NewError(KindFromError(err), "qr replacement interrupted", err)
	}

	report := QRReport{}
	for _, load := range loads {
		if load.generated == nil {
			report.Failed++
			continue
		}
		replaceNode(canvas, load.placeholder, load.generated)
		report.Swaps = append(report.Swaps, QRSwap{Placeholder: load.placeholder, Generated: load.generated})
		report.Replaced++
	}
	if report.Replaced > 0 {
		canvas.RequestRenderAll()
	}
	logger.Debugf("certificate: qr replaced=%d failed=%d", report.Replaced, report.Failed)
	return report, nil
}

// RevertQRPlaceholders puts the original placeholder nodes back and returns
// how many swaps were undone.
func RevertQRPlaceholders(canvas Canvas, report QRReport) int {
	if canvas == nil || len(report.Swaps) == 0 {
		return 0
	}
	for i := len(report.Swaps) - 1; i >= 0; i-- {
		swap := report.Swaps[i]
		replaceNode(canvas, swap.Generated, swap.Placeholder)
	}
	canvas.RequestRenderAll()
	return len(report.Swaps)
}

// generatedQRNode copies placement from the placeholder. The display box keeps
// the placeholder size so scale and rotation carry over unchanged.
func generatedQRNode(placeholder *ImageNode, src string, img Image) *ImageNode {
	width, height := placeholder.Width, placeholder.Height
	if width <= 0 {
		width = ExportQRSize
	}
	if height <= 0 {
		height = ExportQRSize
	}
	return &ImageNode{
		ID:          uuid.NewString(),
		Src:         src,
		Data:        img.Data,
		ContentType: img.ContentType,
		Width:       width,
		Height:      height,
		Transform:   placeholder.Transform,
	}
}
