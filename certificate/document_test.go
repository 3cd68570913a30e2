package certificate

import (
	"encoding/json"
	"strings"
	"testing"
)

const sampleDocument = `{
  "id": "tpl-1",
  "width": 1000,
  "height": 700,
  "background": "#fafafa",
  "objects": [
    {"type": "textbox", "id": "name", "text": "{recipient_name}", "left": 100, "top": 200, "fontSize": 32},
    {"type": "i-text", "text": "Issued {issue_date}"},
    {"type": "image", "src": "https://cdn.test/qr.png", "isQrPlaceholder": true, "scaleX": 0.5, "scaleY": 0.5},
    {"type": "rect", "left": 5, "top": 5, "stroke": "#000"}
  ]
}`

func TestLoadDocument_BuildsNodes(t *testing.T) {
	doc, nodes, err := LoadDocument([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.ID != "tpl-1" || doc.Width != 1000 {
		t.Fatalf("unexpected document header %+v", doc)
	}
	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(nodes))
	}
	if _, ok := nodes[0].(*TextNode); !ok {
		t.Fatalf("expected text node, got %T", nodes[0])
	}
	img, ok := nodes[2].(*ImageNode)
	if !ok || !img.QRPlaceholder || img.Transform.ScaleX != 0.5 {
		t.Fatalf("expected qr placeholder image, got %#v", nodes[2])
	}
	other, ok := nodes[3].(*OtherNode)
	if !ok || other.Type != "rect" {
		t.Fatalf("expected other node, got %#v", nodes[3])
	}
	for _, node := range nodes {
		if node.NodeID() == "" {
			t.Fatalf("expected every node to have an id")
		}
	}
	if nodes[0].NodeID() != "name" {
		t.Fatalf("expected existing id kept, got %q", nodes[0].NodeID())
	}
}

func TestLoadDocument_Invalid(t *testing.T) {
	if _, _, err := LoadDocument(nil); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, _, err := LoadDocument([]byte("{not json")); KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarshalCanvas_RoundTrip(t *testing.T) {
	canvas, err := NewCanvasFromJSON([]byte(sampleDocument), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out, err := MarshalCanvas(canvas)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"stroke":"#000"`) {
		t.Fatalf("expected raw fields kept for other nodes: %s", out)
	}

	reloaded, err := NewCanvasFromJSON(out, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	first, second := canvas.Objects(), reloaded.Objects()
	if len(first) != len(second) {
		t.Fatalf("expected %d nodes, got %d", len(first), len(second))
	}
	for i := range first {
		if first[i].NodeID() != second[i].NodeID() {
			t.Fatalf("node %d id changed: %s vs %s", i, first[i].NodeID(), second[i].NodeID())
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["background"] != "#fafafa" {
		t.Fatalf("expected background kept, got %v", decoded["background"])
	}
}

func TestLoadDocument_ReplacesDuplicateIDs(t *testing.T) {
	doc, nodes, err := LoadDocument([]byte(`{"id":"tpl","objects":[
		{"type":"text","id":"t","text":"Dear {recipient_name}"},
		{"type":"text","id":"t","text":"Signed"},
		{"type":"rect","id":"t"}
	]}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if nodes[0].NodeID() != "t" {
		t.Fatalf("expected first id kept, got %q", nodes[0].NodeID())
	}
	seen := map[string]bool{}
	for _, node := range nodes {
		if seen[node.NodeID()] {
			t.Fatalf("duplicate node id %q", node.NodeID())
		}
		seen[node.NodeID()] = true
	}
	if doc.Objects[2].ID != nodes[2].NodeID() {
		t.Fatalf("expected document object id updated")
	}
	other := nodes[2].(*OtherNode)
	if !strings.Contains(string(other.Raw), `"id":"`+other.ID+`"`) {
		t.Fatalf("expected raw object id rewritten, got %s", other.Raw)
	}
}
