package lockredis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed process can hold a document.
const DefaultTTL = 2 * time.Minute

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Client is the subset of go-redis used by Locker.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Locker is a DocumentLocker shared across processes through Redis.
type Locker struct {
	Client Client
	Prefix string
	TTL    time.Duration
	Logger certificate.Logger
}

var _ certificate.DocumentLocker = (*Locker)(nil)

// NewLocker creates a Redis-backed document locker.
func NewLocker(client Client) *Locker {
	return &Locker{Client: client, Prefix: "certificate:lock:", TTL: DefaultTTL}
}

// Acquire takes the document lock or fails with ErrDocumentBusy.
func (l *Locker) Acquire(ctx context.Context, documentID string) (func(), error) {
	if l == nil || l.Client == nil {
		return nil, certificate.NewError(certificate.KindNotImpl, "redis client not configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, certificate.NewError(certificate.KindValidation, "document id is required", nil)
	}

	key := l.Prefix + documentID
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, l.ttl()).Result()
	if err != nil {
		return nil, certificate.NewError(certificate.KindExternal, "acquire document lock", err)
	}
	if !ok {
		return nil, certificate.ErrDocumentBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// release must run even when the export context was canceled
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := l.Client.Eval(releaseCtx, releaseScript, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger().Errorf("release lock %s: %v", key, err)
			}
		})
	}, nil
}

func (l *Locker) ttl() time.Duration {
	if l.TTL <= 0 {
		return DefaultTTL
	}
	return l.TTL
}

func (l *Locker) logger() certificate.Logger {
	if l.Logger == nil {
		return certificate.NopLogger{}
	}
	return l.Logger
}
