package certificate

import (
	"context"
	"sync"
)

// Canvas is the drawing document an export borrows for one call.
type Canvas interface {
	ID() string
	Objects() []Node
	Add(nodes ...Node)
	Remove(nodes ...Node)
	RequestRenderAll()
	ToImage(ctx context.Context, opts RenderOptions) ([]byte, error)
}

// NodeReplacer is implemented by canvases that can swap a node in place,
// keeping its stacking position.
type NodeReplacer interface {
	Replace(old, replacement Node) bool
}

// Scene is a read-only view of a canvas handed to a Rasterizer.
type Scene struct {
	Width      int
	Height     int
	Background string
	Nodes      []Node
}

// MemoryCanvas is an in-process Canvas backed by a node slice.
type MemoryCanvas struct {
	mu         sync.RWMutex
	id         string
	width      int
	height     int
	background string
	nodes      []Node
	rasterizer Rasterizer
	renders    int
}

// NewMemoryCanvas creates a canvas of the given CSS pixel size.
func NewMemoryCanvas(id string, width, height int, rasterizer Rasterizer, nodes ...Node) *MemoryCanvas {
	return &MemoryCanvas{
		id:         id,
		width:      width,
		height:     height,
		background: "#ffffff",
		nodes:      append([]Node(nil), nodes...),
		rasterizer: rasterizer,
	}
}

// SetBackground sets the canvas background color.
func (c *MemoryCanvas) SetBackground(color string) {
	c.mu.Lock()
	c.background = color
	c.mu.Unlock()
}

// SetRasterizer replaces the rasterizer used by ToImage.
func (c *MemoryCanvas) SetRasterizer(r Rasterizer) {
	c.mu.Lock()
	c.rasterizer = r
	c.mu.Unlock()
}

func (c *MemoryCanvas) ID() string {
	return c.id
}

// Objects returns the nodes in enumeration order. The slice is a copy; the
// nodes are shared.
func (c *MemoryCanvas) Objects() []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Node(nil), c.nodes...)
}

func (c *MemoryCanvas) Add(nodes ...Node) {
	c.mu.Lock()
	c.nodes = append(c.nodes, nodes...)
	c.mu.Unlock()
}

func (c *MemoryCanvas) Remove(nodes ...Node) {
	if len(nodes) == 0 {
		return
	}
	drop := make(map[Node]struct{}, len(nodes))
	for _, n := range nodes {
		drop[n] = struct{}{}
	}
	c.mu.Lock()
	kept := c.nodes[:0]
	for _, n := range c.nodes {
		if _, ok := drop[n]; ok {
			continue
		}
		kept = append(kept, n)
	}
	for i := len(kept); i < len(c.nodes); i++ {
		c.nodes[i] = nil
	}
	c.nodes = kept
	c.mu.Unlock()
}

// Replace swaps old for replacement at the same index.
func (c *MemoryCanvas) Replace(old, replacement Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.nodes {
		if n == old {
			c.nodes[i] = replacement
			return true
		}
	}
	return false
}

// RequestRenderAll records a redraw request.
func (c *MemoryCanvas) RequestRenderAll() {
	c.mu.Lock()
	c.renders++
	c.mu.Unlock()
}

// RenderCount returns how many redraws were requested.
func (c *MemoryCanvas) RenderCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.renders
}

// Size returns the canvas size in CSS pixels.
func (c *MemoryCanvas) Size() Dimensions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Dimensions{Width: c.width, Height: c.height}
}

// ToImage rasterizes the current scene.
func (c *MemoryCanvas) ToImage(ctx context.Context, opts RenderOptions) ([]byte, error) {
	c.mu.RLock()
	rasterizer := c.rasterizer
	scene := Scene{
		Width:      c.width,
		Height:     c.height,
		Background: c.background,
		Nodes:      append([]Node(nil), c.nodes...),
	}
	c.mu.RUnlock()

	if rasterizer == nil {
		return nil, NewError(KindNotImpl, "canvas has no rasterizer", nil)
	}
	return rasterizer.Rasterize(ctx, scene, opts)
}

func replaceNode(canvas Canvas, old, replacement Node) {
	if r, ok := canvas.(NodeReplacer); ok && r.Replace(old, replacement) {
		return
	}
	canvas.Remove(old)
	canvas.Add(replacement)
}
