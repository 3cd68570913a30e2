package certjob

import (
	"bytes"
	"context"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/google/uuid"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/placeholder"
)

// BatchFilename labels tracked batch records.
const BatchFilename = "batch"

// Enqueuer delivers execution messages to go-job.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *job.ExecutionMessage) error
}

// EnqueuerFunc adapts a function to an Enqueuer.
type EnqueuerFunc func(ctx context.Context, msg *job.ExecutionMessage) error

func (f EnqueuerFunc) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if f == nil {
		return certificate.NewError(certificate.KindInternal, "enqueuer is nil", nil)
	}
	return f(ctx, msg)
}

// Config configures the batch scheduler.
type Config struct {
	Enqueuer Enqueuer
	Tracker  certificate.Tracker
	TaskID   string
	TaskPath string
	Logger   certificate.Logger
	Now      func() time.Time
}

// Scheduler tracks and enqueues certificate batches.
type Scheduler struct {
	enqueuer Enqueuer
	tracker  certificate.Tracker
	taskID   string
	taskPath string
	logger   certificate.Logger
	now      func() time.Time
}

// NewScheduler creates a batch scheduler.
func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = certificate.NopLogger{}
	}
	taskID := cfg.TaskID
	if taskID == "" {
		taskID = DefaultBatchTaskID
	}
	taskPath := cfg.TaskPath
	if taskPath == "" {
		taskPath = DefaultBatchTaskPath
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		enqueuer: cfg.Enqueuer,
		tracker:  cfg.Tracker,
		taskID:   taskID,
		taskPath: taskPath,
		logger:   logger,
		now:      now,
	}
}

// RequestBatch records a running batch for actor and enqueues it. The
// returned record ID is the handle for status lookups.
func (s *Scheduler) RequestBatch(ctx context.Context, actor certificate.Actor, document []byte, rows []placeholder.Data, opts certificate.BatchOptions) (certificate.ExportRecord, error) {
	if s == nil {
		return certificate.ExportRecord{}, certificate.NewError(certificate.KindInternal, "scheduler is nil", nil)
	}
	if s.enqueuer == nil {
		return certificate.ExportRecord{}, certificate.NewError(certificate.KindNotImpl, "job enqueuer not configured", nil)
	}
	if s.tracker == nil {
		return certificate.ExportRecord{}, certificate.NewError(certificate.KindNotImpl, "export tracking not configured", nil)
	}
	if len(bytes.TrimSpace(document)) == 0 {
		return certificate.ExportRecord{}, certificate.NewError(certificate.KindValidation, "document is required", nil)
	}
	if len(rows) == 0 {
		return certificate.ExportRecord{}, certificate.NewError(certificate.KindValidation, "at least one row is required", nil)
	}
	if err := opts.Export.Validate(); err != nil {
		return certificate.ExportRecord{}, err
	}
	doc, _, err := certificate.LoadDocument(document)
	if err != nil {
		return certificate.ExportRecord{}, err
	}

	record := certificate.ExportRecord{
		ID:          uuid.NewString(),
		DocumentID:  doc.ID,
		FileType:    opts.Export.FileType,
		Filename:    BatchFilename,
		State:       certificate.StateRunning,
		RequestedBy: actor,
		CreatedAt:   s.now(),
	}
	if record.FileType == "" {
		record.FileType = certificate.DefaultExportOptions().FileType
	}
	id, err := s.tracker.Start(ctx, record)
	if err != nil {
		return certificate.ExportRecord{}, err
	}
	record.ID = id

	encoded, err := encodePayload(Payload{
		BatchID:  record.ID,
		Actor:    actor,
		Document: document,
		Rows:     rows,
		Options:  opts,
	})
	if err != nil {
		s.failRecord(ctx, record.ID, "payload", err)
		return record, err
	}

	msg := &job.ExecutionMessage{
		JobID:      s.taskID,
		ScriptPath: s.taskPath,
		Parameters: map[string]any{"payload": encoded},
	}
	if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		s.failRecord(ctx, record.ID, "enqueue", err)
		return record, err
	}
	s.logger.Infof("certificate: batch %s queued with %d rows", record.ID, len(rows))
	return record, nil
}

func (s *Scheduler) failRecord(ctx context.Context, id, stage string, err error) {
	if ferr := s.tracker.Fail(context.WithoutCancel(ctx), id, err); ferr != nil {
		s.logger.Errorf("certificate: batch %s %s failure tracking failed: %v", id, stage, ferr)
	}
}

// NewLocalEnqueuer runs each message on task in its own goroutine, bounded
// by timeout when positive.
func NewLocalEnqueuer(task *BatchTask, timeout time.Duration, logger certificate.Logger) EnqueuerFunc {
	if logger == nil {
		logger = certificate.NopLogger{}
	}
	commander := job.NewTaskCommander(task)
	return func(ctx context.Context, msg *job.ExecutionMessage) error {
		go func() {
			execCtx := context.WithoutCancel(ctx)
			if timeout > 0 {
				var cancel context.CancelFunc
				execCtx, cancel = context.WithTimeout(execCtx, timeout)
				defer cancel()
			}
			if err := commander.Execute(execCtx, msg); err != nil {
				logger.Errorf("certificate: queued job %s failed: %v", msg.JobID, err)
			}
		}()
		return nil
	}
}
