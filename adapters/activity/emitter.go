package certactivity

import (
	"context"
	"strings"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-users/activity"
	"github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Config configures the activity emitter adapter.
type Config struct {
	Sink       types.ActivitySink
	Channel    string
	ObjectType string
}

// Emitter records certificate export lifecycle events as go-users activity.
type Emitter struct {
	sink       types.ActivitySink
	channel    string
	objectType string
}

var _ certificate.ChangeEmitter = (*Emitter)(nil)

// NewEmitter creates a new activity emitter.
func NewEmitter(cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = "certificate"
	}
	objectType := strings.TrimSpace(cfg.ObjectType)
	if objectType == "" {
		objectType = "certificate_export"
	}
	return &Emitter{
		sink:       cfg.Sink,
		channel:    channel,
		objectType: objectType,
	}
}

// Emit logs an export event to the configured ActivitySink.
func (e *Emitter) Emit(ctx context.Context, evt certificate.ChangeEvent) error {
	if e == nil {
		return certificate.NewError(certificate.KindInternal, "activity emitter is nil", nil)
	}
	if e.sink == nil {
		return certificate.NewError(certificate.KindNotImpl, "activity sink not configured", nil)
	}
	verb := strings.TrimSpace(evt.Name)
	if verb == "" {
		return certificate.NewError(certificate.KindValidation, "activity verb is required", nil)
	}
	objectID := strings.TrimSpace(evt.ExportID)
	if objectID == "" {
		return certificate.NewError(certificate.KindValidation, "activity object ID is required", nil)
	}

	record, err := activity.BuildRecordFromUUID(
		parseUUID(evt.Actor.ID),
		verb,
		e.objectType,
		objectID,
		metadata(evt),
		activity.WithChannel(e.channel),
		activity.WithOccurredAt(evt.Timestamp),
		activity.WithTenant(parseUUID(evt.Actor.TenantID)),
		activity.WithOrg(parseUUID(evt.Actor.OrgID)),
	)
	if err != nil {
		return err
	}
	return e.sink.Log(ctx, record)
}

func metadata(evt certificate.ChangeEvent) map[string]any {
	meta := make(map[string]any, len(evt.Metadata)+3)
	if evt.DocumentID != "" {
		meta["document_id"] = evt.DocumentID
	}
	if evt.CertificateID != "" {
		meta["certificate_id"] = evt.CertificateID
	}
	if evt.FileType != "" {
		meta["file_type"] = string(evt.FileType)
	}
	for k, v := range evt.Metadata {
		meta[k] = v
	}
	return meta
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
