package certificate

import (
	"encoding/json"
)

// Transform carries position, scale and rotation shared by all node kinds.
type Transform struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
	Angle  float64 `json:"angle"`
}

// Node is a graphical node on a canvas. The set of kinds is closed:
// *TextNode, *ImageNode and *OtherNode.
type Node interface {
	NodeID() string
	Accept(v NodeVisitor)
	isNode()
}

// NodeVisitor handles every node kind. Adding a kind adds a method here.
type NodeVisitor interface {
	VisitText(n *TextNode)
	VisitImage(n *ImageNode)
	VisitOther(n *OtherNode)
}

// NodeFuncs adapts optional callbacks to a NodeVisitor. Nil callbacks skip
// that kind explicitly.
type NodeFuncs struct {
	Text  func(n *TextNode)
	Image func(n *ImageNode)
	Other func(n *OtherNode)
}

func (f NodeFuncs) VisitText(n *TextNode) {
	if f.Text != nil {
		f.Text(n)
	}
}

func (f NodeFuncs) VisitImage(n *ImageNode) {
	if f.Image != nil {
		f.Image(n)
	}
}

func (f NodeFuncs) VisitOther(n *OtherNode) {
	if f.Other != nil {
		f.Other(n)
	}
}

// TextNode is a text-bearing node.
type TextNode struct {
	ID         string
	Type       string
	Text       string
	Transform  Transform
	Width      float64
	FontFamily string
	FontSize   float64
	FontWeight string
	Fill       string
	TextAlign  string
}

func (n *TextNode) NodeID() string       { return n.ID }
func (n *TextNode) Accept(v NodeVisitor) { v.VisitText(n) }
func (*TextNode) isNode()                {}

// ImageNode is an image node. QRPlaceholder marks nodes replaced by a
// generated QR code at export time.
type ImageNode struct {
	ID            string
	Src           string
	Data          []byte
	ContentType   string
	QRPlaceholder bool
	Width         float64
	Height        float64
	Transform     Transform
}

func (n *ImageNode) NodeID() string       { return n.ID }
func (n *ImageNode) Accept(v NodeVisitor) { v.VisitImage(n) }
func (*ImageNode) isNode()                {}

// OtherNode is any node the pipeline does not interpret. Raw keeps the
// source JSON so documents round-trip.
type OtherNode struct {
	ID        string
	Type      string
	Transform Transform
	Raw       json.RawMessage
}

func (n *OtherNode) NodeID() string       { return n.ID }
func (n *OtherNode) Accept(v NodeVisitor) { v.VisitOther(n) }
func (*OtherNode) isNode()                {}

// TextNodes returns the text-bearing nodes in enumeration order.
func TextNodes(nodes []Node) []*TextNode {
	out := []*TextNode{}
	for _, node := range nodes {
		node.Accept(NodeFuncs{Text: func(n *TextNode) { out = append(out, n) }})
	}
	return out
}
