package certificate

import (
	"context"
	"testing"
)

func twoQRCanvas() *MemoryCanvas {
	return NewMemoryCanvas("doc-qr", 800, 600, textRasterizer(),
		&ImageNode{ID: "qr-a", QRPlaceholder: true, Transform: Transform{Left: 1, Top: 2, ScaleX: 1, ScaleY: 1}},
		&TextNode{ID: "t", Text: "hello"},
		&ImageNode{ID: "qr-b", QRPlaceholder: true, Width: 80, Height: 80, Transform: Transform{Left: 5, Top: 6, ScaleX: 0.5, ScaleY: 0.5, Angle: 90}},
	)
}

func TestReplaceQRPlaceholders_ReplacesInPlace(t *testing.T) {
	canvas := twoQRCanvas()
	report, err := ReplaceQRPlaceholders(context.Background(), canvas, "CERT-1", &stubLoader{})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if report.Replaced != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	objects := canvas.Objects()
	if len(objects) != 3 {
		t.Fatalf("expected node count unchanged, got %d", len(objects))
	}
	second, ok := objects[2].(*ImageNode)
	if !ok || second.QRPlaceholder {
		t.Fatalf("expected generated qr node at index 2, got %#v", objects[2])
	}
	if second.Transform != (Transform{Left: 5, Top: 6, ScaleX: 0.5, ScaleY: 0.5, Angle: 90}) {
		t.Fatalf("expected transform copied, got %+v", second.Transform)
	}
	if second.Width != 80 || second.Height != 80 {
		t.Fatalf("expected placeholder box kept, got %vx%v", second.Width, second.Height)
	}
	if second.Src != QRCodeURL("CERT-1", ExportQRSize, "") {
		t.Fatalf("unexpected src %q", second.Src)
	}
}

func TestReplaceQRPlaceholders_PartialFailure(t *testing.T) {
	canvas := twoQRCanvas()
	loader := &stubLoader{fail: map[int]bool{1: true}}
	report, err := QRReplacer{Loader: loader, Concurrency: 1}.Replace(context.Background(), canvas, "CERT-1")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if report.Replaced != 1 || report.Failed != 1 {
		t.Fatalf("expected one replaced and one failed, got %+v", report)
	}
	placeholders := 0
	for _, node := range canvas.Objects() {
		if img, ok := node.(*ImageNode); ok && img.QRPlaceholder {
			placeholders++
		}
	}
	if placeholders != 1 {
		t.Fatalf("expected one placeholder left, got %d", placeholders)
	}
}

func TestRevertQRPlaceholders_RestoresOriginalNodes(t *testing.T) {
	canvas := twoQRCanvas()
	original := canvas.Objects()
	report, err := ReplaceQRPlaceholders(context.Background(), canvas, "CERT-1", &stubLoader{})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if reverted := RevertQRPlaceholders(canvas, report); reverted != 2 {
		t.Fatalf("expected 2 reverted, got %d", reverted)
	}
	after := canvas.Objects()
	for i := range original {
		if original[i] != after[i] {
			t.Fatalf("node %d not restored", i)
		}
	}
}

func TestReplaceQRPlaceholders_NoPlaceholders(t *testing.T) {
	canvas := NewMemoryCanvas("plain", 10, 10, nil, &TextNode{ID: "a", Text: "x"})
	loader := &stubLoader{}
	report, err := ReplaceQRPlaceholders(context.Background(), canvas, "CERT-1", loader)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if report.Replaced != 0 || loader.calls != 0 {
		t.Fatalf("expected no loads, got %+v calls=%d", report, loader.calls)
	}
}

func TestReplaceQRPlaceholders_CanceledContext(t *testing.T) {
	canvas := twoQRCanvas()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReplaceQRPlaceholders(ctx, canvas, "CERT-1", &stubLoader{})
	if KindFromError(err) != KindCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
	for _, node := range canvas.Objects() {
		if img, ok := node.(*ImageNode); ok && !img.QRPlaceholder {
			t.Fatalf("expected no swaps after cancel")
		}
	}
}

func TestReplaceQRPlaceholders_Validation(t *testing.T) {
	canvas := twoQRCanvas()
	if _, err := ReplaceQRPlaceholders(context.Background(), canvas, "", &stubLoader{}); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation for empty id, got %v", err)
	}
	if _, err := ReplaceQRPlaceholders(context.Background(), canvas, "C", nil); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation for nil loader, got %v", err)
	}
}
