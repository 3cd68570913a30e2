package certificate

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// textRasterizer encodes the scene text so tests can assert on what was rendered.
func textRasterizer() RasterizerFunc {
	return func(ctx context.Context, scene Scene, opts RenderOptions) ([]byte, error) {
		parts := []string{}
		for _, node := range scene.Nodes {
			node.Accept(NodeFuncs{
				Text: func(n *TextNode) { parts = append(parts, n.Text) },
				Image: func(n *ImageNode) {
					if n.QRPlaceholder {
						parts = append(parts, "[qr-placeholder]")
					} else if len(n.Data) > 0 {
						parts = append(parts, "[img:"+string(n.Data)+"]")
					}
				},
			})
		}
		return []byte(strings.Join(parts, "|")), nil
	}
}

type stubAssembler struct {
	mu       sync.Mutex
	requests []AssembleRequest
	err      error
}

func (s *stubAssembler) Assemble(_ context.Context, req AssembleRequest) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return append([]byte("%PDF:"), req.Image...), nil
}

type stubLoader struct {
	mu    sync.Mutex
	calls int
	fail  map[int]bool
}

func (l *stubLoader) Load(_ context.Context, url string) (Image, error) {
	l.mu.Lock()
	l.calls++
	call := l.calls
	l.mu.Unlock()
	if l.fail[call] {
		return Image{}, errors.New("qr service unavailable")
	}
	return Image{Data: []byte("qr"), ContentType: "image/png"}, nil
}

type failingSink struct{}

func (failingSink) Deliver(ctx context.Context, file File) (ArtifactRef, error) {
	return ArtifactRef{}, errors.New("disk full")
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (r *recordingEmitter) Emit(ctx context.Context, evt ChangeEvent) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

func (r *recordingEmitter) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Name)
	}
	return out
}

func newTestCanvas() *MemoryCanvas {
	return NewMemoryCanvas("doc-1", 1123, 794, textRasterizer(),
		&TextNode{ID: "title", Text: "Certificate for {recipient_name}"},
		&ImageNode{ID: "logo", Src: "logo.png"},
		&TextNode{ID: "event", Text: "{event_name} on {event_date}"},
		&ImageNode{ID: "qr", QRPlaceholder: true, Width: 100, Height: 100, Transform: Transform{Left: 10, Top: 20, ScaleX: 2, ScaleY: 2, Angle: 15}},
		&OtherNode{ID: "frame", Type: "rect"},
	)
}

func texts(c Canvas) []string {
	out := []string{}
	for _, n := range TextNodes(c.Objects()) {
		out = append(out, n.Text)
	}
	return out
}
