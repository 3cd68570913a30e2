package certificate

// CropMarkLength is the maximum length of each crop mark segment in
// millimeters. Segments are clamped to the bleed margin.
const CropMarkLength = 5.0

// CropMarkLineWidth is the stroke width of crop marks in millimeters.
const CropMarkLineWidth = 0.25

// Rect is a placement rectangle in millimeters.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Line is a segment in millimeters.
type Line struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// PageLayout is the resolved geometry of one exported PDF page.
type PageLayout struct {
	Orientation Orientation `json:"orientation"`
	Content     SizeMM      `json:"content"`
	Page        SizeMM      `json:"page"`
	Bleed       float64     `json:"bleed"`
	Image       Rect        `json:"image"`
	CropMarks   []Line      `json:"crop_marks,omitempty"`
}

// ComputePageLayout resolves page size, image placement and crop marks.
func ComputePageLayout(opts ExportOptions) (PageLayout, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return PageLayout{}, err
	}
	content, err := OrientedSize(opts.Format, opts.Orientation)
	if err != nil {
		return PageLayout{}, err
	}
	bleed := opts.Bleed()

	layout := PageLayout{
		Orientation: opts.Orientation,
		Content:     content,
		Bleed:       bleed,
		Page: SizeMM{
			Width:  content.Width + 2*bleed,
			Height: content.Height + 2*bleed,
		},
		Image: Rect{
			X:      bleed,
			Y:      bleed,
			Width:  content.Width,
			Height: content.Height,
		},
	}
	if bleed > 0 {
		layout.CropMarks = cropMarks(layout.Page, bleed, CropMarkLength)
	}
	return layout, nil
}

// cropMarks returns two segments per corner lying on the trim lines. Each
// starts at the page edge and stops at the trim corner at the latest, so no
// mark is printed over the artwork.
func cropMarks(page SizeMM, bleed, length float64) []Line {
	length = min(length, bleed)
	w, h := page.Width, page.Height
	return []Line{
		// top-left
		{X1: 0, Y1: bleed, X2: length, Y2: bleed},
		{X1: bleed, Y1: 0, X2: bleed, Y2: length},
		// top-right
		{X1: w - length, Y1: bleed, X2: w, Y2: bleed},
		{X1: w - bleed, Y1: 0, X2: w - bleed, Y2: length},
		// bottom-left
		{X1: 0, Y1: h - bleed, X2: length, Y2: h - bleed},
		{X1: bleed, Y1: h - length, X2: bleed, Y2: h},
		// bottom-right
		{X1: w - length, Y1: h - bleed, X2: w, Y2: h - bleed},
		{X1: w - bleed, Y1: h - length, X2: w - bleed, Y2: h},
	}
}

// ElementLayout resolves the reduced fallback layout: no bleed, no marks.
func ElementLayout(opts ExportOptions) (PageLayout, error) {
	opts.IncludeBleed = false
	opts.BleedMM = nil
	return ComputePageLayout(opts)
}
