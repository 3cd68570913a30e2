package certificate

import (
	"testing"
)

func TestComputePageLayout_Bleed(t *testing.T) {
	bleed := 3.0
	layout, err := ComputePageLayout(ExportOptions{
		Format:       FormatA4,
		Orientation:  OrientationLandscape,
		IncludeBleed: true,
		BleedMM:      &bleed,
	})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if layout.Page.Width != 303 || layout.Page.Height != 216 {
		t.Fatalf("expected 303x216 page, got %vx%v", layout.Page.Width, layout.Page.Height)
	}
	want := Rect{X: 3, Y: 3, Width: 297, Height: 210}
	if layout.Image != want {
		t.Fatalf("expected image %+v, got %+v", want, layout.Image)
	}
	if len(layout.CropMarks) != 8 {
		t.Fatalf("expected 8 crop mark segments, got %d", len(layout.CropMarks))
	}
}

func TestComputePageLayout_NoBleed(t *testing.T) {
	layout, err := ComputePageLayout(ExportOptions{Format: FormatLetter, Orientation: OrientationPortrait})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if layout.Page != (SizeMM{Width: 215.9, Height: 279.4}) {
		t.Fatalf("unexpected page %+v", layout.Page)
	}
	if layout.Image.X != 0 || layout.Image.Y != 0 {
		t.Fatalf("expected image at origin, got %+v", layout.Image)
	}
	if len(layout.CropMarks) != 0 {
		t.Fatalf("expected no crop marks, got %d", len(layout.CropMarks))
	}
}

func TestComputePageLayout_CropMarksOnTrimLines(t *testing.T) {
	layout, err := ComputePageLayout(ExportOptions{IncludeBleed: true})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	b := layout.Bleed
	w, h := layout.Page.Width, layout.Page.Height
	for _, mark := range layout.CropMarks {
		horizontal := mark.Y1 == mark.Y2
		vertical := mark.X1 == mark.X2
		if horizontal == vertical {
			t.Fatalf("expected axis-aligned mark, got %+v", mark)
		}
		length := mark.X2 - mark.X1 + mark.Y2 - mark.Y1
		if want := min(CropMarkLength, b); length != want {
			t.Fatalf("expected %vmm mark, got %v", want, length)
		}
		if horizontal && mark.Y1 != b && mark.Y1 != h-b {
			t.Fatalf("horizontal mark off trim line: %+v", mark)
		}
		if vertical && mark.X1 != b && mark.X1 != w-b {
			t.Fatalf("vertical mark off trim line: %+v", mark)
		}
	}
}

func TestComputePageLayout_CropMarksStayInBleed(t *testing.T) {
	for _, bleed := range []float64{1, 3, 8} {
		layout, err := ComputePageLayout(ExportOptions{IncludeBleed: true, BleedMM: &bleed})
		if err != nil {
			t.Fatalf("layout: %v", err)
		}
		img := layout.Image
		inside := func(x, y float64) bool {
			return x > img.X && x < img.X+img.Width && y > img.Y && y < img.Y+img.Height
		}
		for _, mark := range layout.CropMarks {
			if inside(mark.X1, mark.Y1) || inside(mark.X2, mark.Y2) {
				t.Fatalf("bleed %v: mark %+v reaches into the artwork %+v", bleed, mark, img)
			}
			if length := mark.X2 - mark.X1 + mark.Y2 - mark.Y1; length != min(CropMarkLength, bleed) {
				t.Fatalf("bleed %v: unexpected mark length %v", bleed, length)
			}
		}
	}
}

func TestElementLayout_IgnoresBleed(t *testing.T) {
	layout, err := ElementLayout(ExportOptions{IncludeBleed: true})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if layout.Bleed != 0 || len(layout.CropMarks) != 0 {
		t.Fatalf("expected no bleed in element layout, got %+v", layout)
	}
	if layout.Page != (SizeMM{Width: 297, Height: 210}) {
		t.Fatalf("unexpected page %+v", layout.Page)
	}
}
