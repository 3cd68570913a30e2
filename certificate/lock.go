package certificate

import (
	"context"
	"sync"
)

// DocumentLocker serializes exports against a single document.
type DocumentLocker interface {
	// Acquire fails fast with ErrDocumentBusy when the document is held.
	Acquire(ctx context.Context, documentID string) (release func(), err error)
}

// MemoryLocker is an in-process DocumentLocker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, documentID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if documentID == "" {
		return nil, NewError(KindValidation, "document id is required", nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]struct{})
	}
	if _, busy := l.held[documentID]; busy {
		return nil, ErrDocumentBusy
	}
	l.held[documentID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, documentID)
			l.mu.Unlock()
		})
	}, nil
}

// Held reports whether a document is currently locked.
func (l *MemoryLocker) Held(documentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[documentID]
	return ok
}
