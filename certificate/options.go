package certificate

import (
	"fmt"
	"math"
	"strings"
)

const mmPerInch = 25.4

var qualityTable = map[Quality]QualitySettings{
	QualityStandard: {Scale: 1, ImageQuality: 0.8, DPI: 72},
	QualityHigh:     {Scale: 2, ImageQuality: 0.92, DPI: 150},
	QualityPrint:    {Scale: 3, ImageQuality: 1.0, DPI: 200},
	QualityPrint300: {Scale: 4.17, ImageQuality: 1.0, DPI: 300},
}

// Landscape baseline sizes. Custom aliases A4 until callers can supply their
// own dimensions.
var formatTable = map[PaperFormat]SizeMM{
	FormatA4:     {Width: 297, Height: 210},
	FormatLetter: {Width: 279.4, Height: 215.9},
	FormatA3:     {Width: 420, Height: 297},
	FormatA5:     {Width: 210, Height: 148},
	FormatCustom: {Width: 297, Height: 210},
}

// DefaultExportOptions returns the defaults used for empty option fields.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:      FormatA4,
		Orientation: OrientationLandscape,
		Quality:     QualityHigh,
		FileType:    FileTypePDF,
	}
}

// QualityFor returns the raster settings for a quality.
func QualityFor(q Quality) (QualitySettings, error) {
	settings, ok := qualityTable[q]
	if !ok {
		return QualitySettings{}, NewError(KindValidation, fmt.Sprintf("unsupported quality: %s", q), nil)
	}
	return settings, nil
}

// FormatSize returns the landscape millimeter size of a paper format.
func FormatSize(format PaperFormat) (SizeMM, error) {
	size, ok := formatTable[format]
	if !ok {
		return SizeMM{}, NewError(KindValidation, fmt.Sprintf("unsupported paper format: %s", format), nil)
	}
	return size, nil
}

// OrientedSize returns the format size swapped for portrait orientation.
func OrientedSize(format PaperFormat, orientation Orientation) (SizeMM, error) {
	size, err := FormatSize(format)
	if err != nil {
		return SizeMM{}, err
	}
	switch orientation {
	case OrientationLandscape:
		return size, nil
	case OrientationPortrait:
		return SizeMM{Width: size.Height, Height: size.Width}, nil
	default:
		return SizeMM{}, NewError(KindValidation, fmt.Sprintf("unsupported orientation: %s", orientation), nil)
	}
}

// PixelDimensions converts a paper format to pixels at dpi.
func PixelDimensions(format PaperFormat, orientation Orientation, dpi int) (Dimensions, error) {
	size, err := OrientedSize(format, orientation)
	if err != nil {
		return Dimensions{}, err
	}
	if dpi <= 0 {
		return Dimensions{}, NewError(KindValidation, "dpi must be positive", nil)
	}
	return Dimensions{
		Width:  mmToPixels(size.Width, dpi),
		Height: mmToPixels(size.Height, dpi),
	}, nil
}

func mmToPixels(mm float64, dpi int) int {
	return int(math.Round(mm * (1 / mmPerInch) * float64(dpi)))
}

// Bleed returns the bleed margin in millimeters for the options.
func (o ExportOptions) Bleed() float64 {
	if !o.IncludeBleed {
		return 0
	}
	if o.BleedMM != nil {
		return *o.BleedMM
	}
	return DefaultBleedMM
}

// withDefaults fills empty fields from DefaultExportOptions.
func (o ExportOptions) withDefaults() ExportOptions {
	defaults := DefaultExportOptions()
	if o.Format == "" {
		o.Format = defaults.Format
	}
	if o.Orientation == "" {
		o.Orientation = defaults.Orientation
	}
	if o.Quality == "" {
		o.Quality = defaults.Quality
	}
	if o.FileType == "" {
		o.FileType = defaults.FileType
	}
	return o
}

// Validate checks the options against the supported tables.
func (o ExportOptions) Validate() error {
	o = o.withDefaults()
	if _, err := OrientedSize(o.Format, o.Orientation); err != nil {
		return err
	}
	if _, err := QualityFor(o.Quality); err != nil {
		return err
	}
	switch o.FileType {
	case FileTypePDF, FileTypePNG, FileTypeBoth:
	default:
		return NewError(KindValidation, fmt.Sprintf("unsupported file type: %s", o.FileType), nil)
	}
	if o.BleedMM != nil && *o.BleedMM < 0 {
		return NewError(KindValidation, "bleed must not be negative", nil)
	}
	return nil
}

// ParsePaperFormat matches a format name case-insensitively.
func ParsePaperFormat(value string) (PaperFormat, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return FormatA4, nil
	}
	for format := range formatTable {
		if strings.EqualFold(string(format), value) {
			return format, nil
		}
	}
	return "", NewError(KindValidation, fmt.Sprintf("unsupported paper format: %s", value), nil)
}
