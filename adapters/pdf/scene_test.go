package certpdf

import (
	"strings"
	"testing"

	"github.com/goliatone/go-certificate/certificate"
)

func TestSceneHTML_RendersNodes(t *testing.T) {
	out, err := SceneHTML(certificate.Scene{
		Width:  800,
		Height: 600,
		Nodes: []certificate.Node{
			&certificate.TextNode{ID: "t1", Text: "Jane <Doe>", FontSize: 24, Fill: "#333", Transform: certificate.Transform{Left: 10, Top: 20.5, Angle: 45}},
			&certificate.ImageNode{ID: "qr", Data: []byte("png"), ContentType: "image/png", Width: 100, Height: 100},
			&certificate.ImageNode{ID: "logo", Src: "https://cdn.test/logo.png"},
			&certificate.ImageNode{ID: "empty"},
			&certificate.OtherNode{ID: "rect", Type: "rect"},
		},
	})
	if err != nil {
		t.Fatalf("scene html: %v", err)
	}

	checks := []string{
		"width: 800px; height: 600px",
		"background: #ffffff",
		"Jane &lt;Doe&gt;",
		"left:10px;top:20.5px;transform:rotate(45deg) scale(1,1)",
		"font-size:24px",
		"data:image/png;base64,cG5n",
		"https://cdn.test/logo.png",
	}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in scene html:\n%s", want, out)
		}
	}
	if strings.Contains(out, `data-id="empty"`) || strings.Contains(out, `data-id="rect"`) {
		t.Fatalf("expected empty images and shapes skipped")
	}
}
