package certificate

import (
	"github.com/goliatone/go-certificate/placeholder"
)

// TextSnapshot holds the original text of every text node, keyed by node
// identity so duplicate or empty IDs cannot collide.
type TextSnapshot struct {
	texts map[*TextNode]string
}

// Len returns the number of captured nodes.
func (s TextSnapshot) Len() int {
	return len(s.texts)
}

// Text returns the captured text for a node.
func (s TextSnapshot) Text(node *TextNode) (string, bool) {
	text, ok := s.texts[node]
	return text, ok
}

// StoreOriginalText captures the text of every text node on the canvas.
func StoreOriginalText(canvas Canvas) TextSnapshot {
	snapshot := TextSnapshot{texts: map[*TextNode]string{}}
	for _, node := range TextNodes(canvas.Objects()) {
		snapshot.texts[node] = node.Text
	}
	return snapshot
}

// RestoreOriginalText writes captured text back onto the captured nodes and
// returns how many were restored. Nodes added after the snapshot are left
// alone; nodes removed since are skipped.
func RestoreOriginalText(canvas Canvas, snapshot TextSnapshot) int {
	restored := 0
	for _, node := range TextNodes(canvas.Objects()) {
		text, ok := snapshot.texts[node]
		if !ok {
			continue
		}
		node.Text = text
		restored++
	}
	canvas.RequestRenderAll()
	return restored
}

// PrepareCanvasForExport substitutes placeholders in every text node in place
// and requests a redraw. It returns how many nodes changed.
func PrepareCanvasForExport(canvas Canvas, data placeholder.Data) int {
	replacer := placeholder.NewReplacer(data)
	changed := 0
	for _, node := range TextNodes(canvas.Objects()) {
		next := replacer.Replace(node.Text)
		if next != node.Text {
			node.Text = next
			changed++
		}
	}
	canvas.RequestRenderAll()
	return changed
}
