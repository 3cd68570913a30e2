package certactivity

import (
	"context"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-users/pkg/types"
)

// LogSink writes activity records to a logger. It stands in for a persistent
// activity store.
type LogSink struct {
	Logger certificate.Logger
}

var _ types.ActivitySink = LogSink{}

// Log records the activity at info level.
func (s LogSink) Log(ctx context.Context, record types.ActivityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Logger == nil {
		return nil
	}
	s.Logger.Infof("activity %+v", record)
	return nil
}
