package certificate

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Document is the serialized canvas format: a fabric-style object list.
type Document struct {
	ID         string           `json:"id,omitempty"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Background string           `json:"background,omitempty"`
	Objects    []documentObject `json:"objects"`
}

type documentObject struct {
	Type            string  `json:"type"`
	ID              string  `json:"id,omitempty"`
	Text            string  `json:"text,omitempty"`
	Src             string  `json:"src,omitempty"`
	IsQRPlaceholder bool    `json:"isQrPlaceholder,omitempty"`
	Left            float64 `json:"left"`
	Top             float64 `json:"top"`
	ScaleX          float64 `json:"scaleX,omitempty"`
	ScaleY          float64 `json:"scaleY,omitempty"`
	Angle           float64 `json:"angle,omitempty"`
	Width           float64 `json:"width,omitempty"`
	Height          float64 `json:"height,omitempty"`
	FontFamily      string  `json:"fontFamily,omitempty"`
	FontSize        float64 `json:"fontSize,omitempty"`
	FontWeight      string  `json:"fontWeight,omitempty"`
	Fill            string  `json:"fill,omitempty"`
	TextAlign       string  `json:"textAlign,omitempty"`
}

// Default canvas size in CSS pixels: A4 landscape at 96dpi.
const (
	DefaultCanvasWidth  = 1123
	DefaultCanvasHeight = 794
)

var textTypes = map[string]struct{}{
	"text":    {},
	"i-text":  {},
	"textbox": {},
}

// LoadDocument parses a document and assigns stable IDs to nodes that lack
// one or repeat an earlier ID.
func LoadDocument(data []byte) (*Document, []Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, NewError(KindValidation, "document is required", nil)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, NewError(KindValidation, "invalid document", err)
	}
	var raws struct {
		Objects []json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, NewError(KindValidation, "invalid document objects", err)
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Width <= 0 {
		doc.Width = DefaultCanvasWidth
	}
	if doc.Height <= 0 {
		doc.Height = DefaultCanvasHeight
	}

	seen := make(map[string]struct{}, len(doc.Objects))
	nodes := make([]Node, 0, len(doc.Objects))
	for i := range doc.Objects {
		obj := &doc.Objects[i]
		if _, dup := seen[obj.ID]; obj.ID == "" || dup {
			obj.ID = uuid.NewString()
		}
		seen[obj.ID] = struct{}{}
		nodes = append(nodes, obj.node(raws.Objects[i]))
	}
	return &doc, nodes, nil
}

// NewCanvasFromJSON loads a document into a MemoryCanvas.
func NewCanvasFromJSON(data []byte, rasterizer Rasterizer) (*MemoryCanvas, error) {
	doc, nodes, err := LoadDocument(data)
	if err != nil {
		return nil, err
	}
	canvas := NewMemoryCanvas(doc.ID, doc.Width, doc.Height, rasterizer, nodes...)
	if doc.Background != "" {
		canvas.SetBackground(doc.Background)
	}
	return canvas, nil
}

// MarshalCanvas serializes a MemoryCanvas back to the document format.
func MarshalCanvas(c *MemoryCanvas) ([]byte, error) {
	c.mu.RLock()
	doc := Document{
		ID:         c.id,
		Width:      c.width,
		Height:     c.height,
		Background: c.background,
	}
	nodes := append([]Node(nil), c.nodes...)
	c.mu.RUnlock()

	objects := make([]any, 0, len(nodes))
	for _, node := range nodes {
		var obj any
		node.Accept(NodeFuncs{
			Text: func(n *TextNode) {
				obj = documentObject{
					Type: n.Type, ID: n.ID, Text: n.Text,
					Left: n.Transform.Left, Top: n.Transform.Top,
					ScaleX: n.Transform.ScaleX, ScaleY: n.Transform.ScaleY, Angle: n.Transform.Angle,
					Width: n.Width, FontFamily: n.FontFamily, FontSize: n.FontSize,
					FontWeight: n.FontWeight, Fill: n.Fill, TextAlign: n.TextAlign,
				}
			},
			Image: func(n *ImageNode) {
				obj = documentObject{
					Type: "image", ID: n.ID, Src: n.Src, IsQRPlaceholder: n.QRPlaceholder,
					Left: n.Transform.Left, Top: n.Transform.Top,
					ScaleX: n.Transform.ScaleX, ScaleY: n.Transform.ScaleY, Angle: n.Transform.Angle,
					Width: n.Width, Height: n.Height,
				}
			},
			Other: func(n *OtherNode) {
				if len(n.Raw) > 0 {
					obj = n.Raw
					return
				}
				obj = documentObject{Type: n.Type, ID: n.ID, Left: n.Transform.Left, Top: n.Transform.Top}
			},
		})
		objects = append(objects, obj)
	}

	return json.Marshal(struct {
		ID         string `json:"id,omitempty"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Background string `json:"background,omitempty"`
		Objects    []any  `json:"objects"`
	}{doc.ID, doc.Width, doc.Height, doc.Background, objects})
}

func (o documentObject) transform() Transform {
	t := Transform{Left: o.Left, Top: o.Top, ScaleX: o.ScaleX, ScaleY: o.ScaleY, Angle: o.Angle}
	if t.ScaleX == 0 {
		t.ScaleX = 1
	}
	if t.ScaleY == 0 {
		t.ScaleY = 1
	}
	return t
}

func (o documentObject) node(raw json.RawMessage) Node {
	kind := strings.ToLower(strings.TrimSpace(o.Type))
	if _, ok := textTypes[kind]; ok {
		return &TextNode{
			ID:         o.ID,
			Type:       kind,
			Text:       o.Text,
			Transform:  o.transform(),
			Width:      o.Width,
			FontFamily: o.FontFamily,
			FontSize:   o.FontSize,
			FontWeight: o.FontWeight,
			Fill:       o.Fill,
			TextAlign:  o.TextAlign,
		}
	}
	if kind == "image" {
		return &ImageNode{
			ID:            o.ID,
			Src:           o.Src,
			QRPlaceholder: o.IsQRPlaceholder,
			Width:         o.Width,
			Height:        o.Height,
			Transform:     o.transform(),
		}
	}
	return &OtherNode{ID: o.ID, Type: kind, Transform: o.transform(), Raw: withID(raw, o.ID)}
}

// withID sets the object id in raw object JSON when it differs.
func withID(raw json.RawMessage, id string) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return raw
	}
	if current, ok := fields["id"]; ok {
		var existing string
		if json.Unmarshal(current, &existing) == nil && existing == id {
			return raw
		}
	}
	encoded, err := json.Marshal(id)
	if err != nil {
		return raw
	}
	fields["id"] = encoded
	out, err := json.Marshal(fields)
	if err != nil {
		return raw
	}
	return out
}
