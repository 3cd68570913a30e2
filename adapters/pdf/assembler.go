package certpdf

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"

	"github.com/goliatone/go-certificate/certificate"
)

const defaultCreator = "go-certificate"

// FPDFAssembler builds PDF pages with go-pdf/fpdf.
type FPDFAssembler struct {
	Creator     string
	Compression *bool
	Now         func() time.Time
}

var _ certificate.PageAssembler = FPDFAssembler{}

// Assemble places the image at the layout's content rect and draws crop marks.
func (a FPDFAssembler) Assemble(ctx context.Context, req certificate.AssembleRequest) ([]byte, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if len(req.Image) == 0 {
		return nil, certificate.NewError(certificate.KindValidation, "image is required", nil)
	}
	layout := req.Layout
	if layout.Page.Width <= 0 || layout.Page.Height <= 0 {
		return nil, certificate.NewError(certificate.KindValidation, "page size is required", nil)
	}

	pdf := fpdf.NewCustom(pageInit(layout.Page))
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCreator(a.creator(), true)
	if a.Compression != nil {
		pdf.SetCompression(*a.Compression)
	}
	if a.Now != nil {
		pdf.SetCreationDate(a.Now())
	}
	pdf.AddPage()

	imageType := strings.ToUpper(strings.TrimSpace(req.ImageType))
	if imageType == "" {
		imageType = "PNG"
	}
	name := "certificate-" + uuid.NewString()
	options := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(name, options, bytes.NewReader(req.Image))
	if pdf.Err() {
		return nil, certificate.NewError(certificate.KindValidation, "invalid certificate image", pdf.Error())
	}
	img := layout.Image
	pdf.ImageOptions(name, img.X, img.Y, img.Width, img.Height, false, options, 0, "")

	if len(layout.CropMarks) > 0 {
		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(certificate.CropMarkLineWidth)
		for _, mark := range layout.CropMarks {
			pdf.Line(mark.X1, mark.Y1, mark.X2, mark.Y2)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, certificate.NewError(certificate.KindInternal, "pdf output failed", err)
	}
	return buf.Bytes(), nil
}

func (a FPDFAssembler) creator() string {
	if a.Creator == "" {
		return defaultCreator
	}
	return a.Creator
}

// pageInit builds the fpdf init for a custom page in millimeters. fpdf swaps
// the size for landscape, so the size is given short side first.
func pageInit(page certificate.SizeMM) *fpdf.InitType {
	orientation := "P"
	short, long := page.Width, page.Height
	if page.Width > page.Height {
		orientation = "L"
		short, long = page.Height, page.Width
	}
	return &fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: short, Ht: long},
	}
}
