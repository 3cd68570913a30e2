package certjob

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-command/dispatcher"
	job "github.com/goliatone/go-job"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/command"
	"github.com/goliatone/go-certificate/placeholder"
)

const (
	DefaultBatchTaskID   = "certificate:batch"
	DefaultBatchTaskPath = "certificate:batch"
)

// Payload captures the job execution input. Document is the raw canvas
// document so the payload survives a serialized queue.
type Payload struct {
	BatchID  string                   `json:"batch_id"`
	Actor    certificate.Actor        `json:"actor"`
	Document json.RawMessage          `json:"document"`
	Rows     []placeholder.Data       `json:"rows"`
	Options  certificate.BatchOptions `json:"options"`
}

// BatchDispatch dispatches a batch generation command.
type BatchDispatch func(ctx context.Context, msg command.GenerateBatch) error

// TaskConfig configures the batch task.
type TaskConfig struct {
	ID             string
	Path           string
	Config         job.Config
	HandlerOptions job.HandlerOptions
	Tracker        certificate.Tracker
	Rasterizer     certificate.Rasterizer
	Logger         certificate.Logger
	Dispatch       BatchDispatch
}

// BatchTask runs queued certificate batches and settles their tracked
// record.
type BatchTask struct {
	id             string
	path           string
	config         job.Config
	handlerOptions job.HandlerOptions
	tracker        certificate.Tracker
	rasterizer     certificate.Rasterizer
	logger         certificate.Logger
	dispatch       BatchDispatch
}

// NewBatchTask creates a batch task. Dispatch defaults to the go-command
// dispatcher, so a GenerateBatch handler must be subscribed.
func NewBatchTask(cfg TaskConfig) *BatchTask {
	logger := cfg.Logger
	if logger == nil {
		logger = certificate.NopLogger{}
	}
	id := cfg.ID
	if id == "" {
		id = DefaultBatchTaskID
	}
	path := cfg.Path
	if path == "" {
		path = DefaultBatchTaskPath
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = func(ctx context.Context, msg command.GenerateBatch) error {
			return dispatcher.Dispatch(ctx, msg)
		}
	}
	return &BatchTask{
		id:             id,
		path:           path,
		config:         cfg.Config,
		handlerOptions: cfg.HandlerOptions,
		tracker:        cfg.Tracker,
		rasterizer:     cfg.Rasterizer,
		logger:         logger,
		dispatch:       dispatch,
	}
}

func (t *BatchTask) GetID() string { return t.id }

// GetHandler reports an error: batches only run from queued messages.
func (t *BatchTask) GetHandler() func() error {
	return func() error {
		return certificate.NewError(certificate.KindNotImpl, "batch task runs from execution messages only", nil)
	}
}

func (t *BatchTask) GetHandlerConfig() job.HandlerOptions { return t.handlerOptions }

func (t *BatchTask) GetConfig() job.Config { return t.config }

func (t *BatchTask) GetPath() string { return t.path }

// GetEngine returns nil because this task is code-driven.
func (t *BatchTask) GetEngine() job.Engine { return nil }

// Execute runs the batch in msg and completes or fails its tracked record.
func (t *BatchTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil {
		return certificate.NewError(certificate.KindInternal, "task is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}
	if payload.BatchID == "" {
		return certificate.NewError(certificate.KindValidation, "batch ID is required", nil)
	}

	result, err := t.run(ctx, payload)
	t.settle(ctx, payload.BatchID, result, err)
	return err
}

func (t *BatchTask) run(ctx context.Context, payload Payload) (certificate.BatchResult, error) {
	canvas, err := certificate.NewCanvasFromJSON(payload.Document, t.rasterizer)
	if err != nil {
		return certificate.BatchResult{}, err
	}
	var result certificate.BatchResult
	err = t.dispatch(ctx, command.GenerateBatch{
		Actor:   payload.Actor,
		Canvas:  canvas,
		Rows:    payload.Rows,
		Options: payload.Options,
		Result:  &result,
	})
	if err == nil && len(result.Results) == 0 && len(result.Failures) > 0 {
		first := result.Failures[0]
		err = certificate.NewError(first.Kind, fmt.Sprintf("every batch row failed, row %d: %s", first.Row, first.Error), nil)
	}
	return result, err
}

// settle records the batch outcome. Rows that failed without stopping the
// batch are tracked on their own records.
func (t *BatchTask) settle(ctx context.Context, batchID string, result certificate.BatchResult, err error) {
	if t.tracker == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		if trackErr := t.tracker.Fail(ctx, batchID, err); trackErr != nil {
			t.logger.Errorf("certificate: batch %s fail tracking failed: %v", batchID, trackErr)
		}
		return
	}
	outcome := certificate.ExportOutcome{}
	for _, row := range result.Results {
		outcome.Bytes += row.Bytes
		outcome.QRReplaced += row.QRReplaced
		outcome.QRFailed += row.QRFailed
		if outcome.Artifact.Key == "" && len(row.Artifacts) > 0 {
			outcome.Artifact = row.Artifacts[0]
		}
	}
	if trackErr := t.tracker.Complete(ctx, batchID, outcome); trackErr != nil {
		t.logger.Errorf("certificate: batch %s complete tracking failed: %v", batchID, trackErr)
	}
	t.logger.Infof("certificate: batch %s finished, %d exported, %d failed", batchID, result.Succeeded(), len(result.Failures))
}

func encodePayload(payload Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, certificate.NewError(certificate.KindValidation, "batch payload is not serializable", err)
	}
	return json.RawMessage(raw), nil
}

func decodePayload(msg *job.ExecutionMessage) (Payload, error) {
	if msg == nil || msg.Parameters == nil {
		return Payload{}, certificate.NewError(certificate.KindValidation, "job payload is required", nil)
	}
	raw, ok := msg.Parameters["payload"]
	if !ok {
		return Payload{}, certificate.NewError(certificate.KindValidation, "job payload missing", nil)
	}

	switch value := raw.(type) {
	case Payload:
		return value, nil
	case *Payload:
		if value == nil {
			return Payload{}, certificate.NewError(certificate.KindValidation, "job payload is nil", nil)
		}
		return *value, nil
	case json.RawMessage:
		return unmarshalPayload(value)
	case []byte:
		return unmarshalPayload(value)
	case string:
		return unmarshalPayload([]byte(value))
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return Payload{}, certificate.NewError(certificate.KindValidation, "job payload is invalid", err)
		}
		return unmarshalPayload(data)
	}
}

func unmarshalPayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, certificate.NewError(certificate.KindValidation, "job payload is empty", nil)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, certificate.NewError(certificate.KindValidation, "job payload is invalid", err)
	}
	return payload, nil
}
