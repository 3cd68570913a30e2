package certjob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	job "github.com/goliatone/go-job"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/command"
	"github.com/goliatone/go-certificate/placeholder"
)

const testDocument = `{"id":"doc-1","width":400,"height":300,"objects":[{"type":"textbox","id":"name","text":"Awarded to {recipient_name}"}]}`

type textRasterizer struct{}

func (textRasterizer) Rasterize(ctx context.Context, scene certificate.Scene, opts certificate.RenderOptions) ([]byte, error) {
	var parts []string
	for _, node := range scene.Nodes {
		if text, ok := node.(*certificate.TextNode); ok {
			parts = append(parts, text.Text)
		}
	}
	return []byte(strings.Join(parts, "|")), nil
}

func pngBatch() certificate.BatchOptions {
	return certificate.BatchOptions{
		Export:          certificate.ExportOptions{FileType: certificate.FileTypePNG},
		FilenamePattern: "cert_{{.Index}}",
	}
}

func TestScheduler_RequestBatch_EnqueueAndComplete(t *testing.T) {
	tracker := certificate.NewMemoryTracker()
	exporter := certificate.NewExporter(certificate.ExporterConfig{Tracker: tracker})

	sub := dispatcher.SubscribeCommand(command.NewGenerateBatchHandler(exporter))
	defer sub.Unsubscribe()

	task := NewBatchTask(TaskConfig{Tracker: tracker, Rasterizer: textRasterizer{}})
	cmd := job.NewTaskCommander(task)
	var enqueued *job.ExecutionMessage
	scheduler := NewScheduler(Config{
		Tracker: tracker,
		Enqueuer: EnqueuerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error {
			enqueued = msg
			return cmd.Execute(ctx, msg)
		}),
	})

	actor := certificate.Actor{ID: "user-1", TenantID: "acme"}
	ctx := context.Background()
	record, err := scheduler.RequestBatch(ctx, actor, []byte(testDocument), []placeholder.Data{
		{"recipient_name": "Ann"},
		{"recipient_name": "Bo"},
	}, pngBatch())
	if err != nil {
		t.Fatalf("request batch: %v", err)
	}
	if enqueued == nil || enqueued.JobID != DefaultBatchTaskID {
		t.Fatalf("expected batch message enqueued, got %+v", enqueued)
	}
	if record.ID == "" || record.DocumentID != "doc-1" || record.Filename != BatchFilename {
		t.Fatalf("unexpected batch record %+v", record)
	}

	status, err := tracker.Status(ctx, record.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != certificate.StateCompleted || status.Bytes == 0 || status.RequestedBy != actor {
		t.Fatalf("expected completed batch record, got %+v", status)
	}

	records, err := tracker.List(ctx, certificate.RecordFilter{DocumentID: "doc-1", State: certificate.StateCompleted})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected batch record plus two row records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.RequestedBy.TenantID != "acme" {
			t.Fatalf("expected row records scoped to the requesting tenant, got %+v", rec)
		}
	}
}

func TestScheduler_RequestBatch_Validation(t *testing.T) {
	scheduler := NewScheduler(Config{
		Tracker:  certificate.NewMemoryTracker(),
		Enqueuer: EnqueuerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error { return nil }),
	})
	rows := []placeholder.Data{{"recipient_name": "Ann"}}
	cases := map[string]func() error{
		"document": func() error {
			_, err := scheduler.RequestBatch(context.Background(), certificate.Actor{}, nil, rows, pngBatch())
			return err
		},
		"rows": func() error {
			_, err := scheduler.RequestBatch(context.Background(), certificate.Actor{}, []byte(testDocument), nil, pngBatch())
			return err
		},
		"file type": func() error {
			opts := pngBatch()
			opts.Export.FileType = "svg"
			_, err := scheduler.RequestBatch(context.Background(), certificate.Actor{}, []byte(testDocument), rows, opts)
			return err
		},
		"malformed document": func() error {
			_, err := scheduler.RequestBatch(context.Background(), certificate.Actor{}, []byte(`{"objects":`), rows, pngBatch())
			return err
		},
	}
	for name, run := range cases {
		if kind := certificate.KindFromError(run()); kind != certificate.KindValidation {
			t.Errorf("%s: expected validation error, got %q", name, kind)
		}
	}

	if _, err := NewScheduler(Config{}).RequestBatch(context.Background(), certificate.Actor{}, []byte(testDocument), rows, pngBatch()); certificate.KindFromError(err) != certificate.KindNotImpl {
		t.Fatalf("expected not implemented without enqueuer, got %v", err)
	}
}

func TestScheduler_EnqueueFailureFailsRecord(t *testing.T) {
	tracker := certificate.NewMemoryTracker()
	scheduler := NewScheduler(Config{
		Tracker: tracker,
		Enqueuer: EnqueuerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error {
			return errors.New("queue unavailable")
		}),
	})

	record, err := scheduler.RequestBatch(context.Background(), certificate.Actor{ID: "u"}, []byte(testDocument), []placeholder.Data{{"recipient_name": "Ann"}}, pngBatch())
	if err == nil {
		t.Fatalf("expected enqueue error")
	}
	status, err := tracker.Status(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != certificate.StateFailed || !strings.Contains(status.Error, "queue unavailable") {
		t.Fatalf("expected failed record, got %+v", status)
	}
}

func TestBatchTask_FailsRecordWhenEveryRowFails(t *testing.T) {
	tracker := certificate.NewMemoryTracker()
	id, _ := tracker.Start(context.Background(), certificate.ExportRecord{DocumentID: "doc-1"})
	task := NewBatchTask(TaskConfig{
		Tracker: tracker,
		Dispatch: func(ctx context.Context, msg command.GenerateBatch) error {
			*msg.Result = certificate.BatchResult{Failures: []certificate.BatchFailure{
				{Row: 1, Kind: certificate.KindExternal, Error: "qr service down"},
			}}
			return nil
		},
	})
	encoded, err := encodePayload(Payload{BatchID: id, Document: []byte(testDocument), Rows: []placeholder.Data{{}}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	err = task.Execute(context.Background(), &job.ExecutionMessage{Parameters: map[string]any{"payload": encoded}})
	if certificate.KindFromError(err) != certificate.KindExternal {
		t.Fatalf("expected external error, got %v", err)
	}
	status, _ := tracker.Status(context.Background(), id)
	if status.State != certificate.StateFailed || !strings.Contains(status.Error, "qr service down") {
		t.Fatalf("expected failed batch record, got %+v", status)
	}
}

func TestBatchTask_RejectsMissingPayload(t *testing.T) {
	task := NewBatchTask(TaskConfig{})
	for _, msg := range []*job.ExecutionMessage{nil, {Parameters: map[string]any{}}, {Parameters: map[string]any{"payload": "{}"}}} {
		if err := task.Execute(context.Background(), msg); certificate.KindFromError(err) != certificate.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	}
	if err := task.GetHandler()(); certificate.KindFromError(err) != certificate.KindNotImpl {
		t.Fatalf("expected handler to refuse direct runs, got %v", err)
	}
}

func TestNewLocalEnqueuer_RunsInBackground(t *testing.T) {
	tracker := certificate.NewMemoryTracker()
	done := make(chan command.GenerateBatch, 1)
	task := NewBatchTask(TaskConfig{
		Tracker:    tracker,
		Rasterizer: textRasterizer{},
		Dispatch: func(ctx context.Context, msg command.GenerateBatch) error {
			*msg.Result = certificate.BatchResult{Results: []certificate.ExportResult{{ID: "row-1", Bytes: 10}}}
			done <- msg
			return nil
		},
	})
	scheduler := NewScheduler(Config{Tracker: tracker, Enqueuer: NewLocalEnqueuer(task, time.Minute, nil)})

	ctx, cancel := context.WithCancel(context.Background())
	record, err := scheduler.RequestBatch(ctx, certificate.Actor{ID: "u"}, []byte(testDocument), []placeholder.Data{{"recipient_name": "Ann"}}, pngBatch())
	cancel()
	if err != nil {
		t.Fatalf("request batch: %v", err)
	}

	select {
	case msg := <-done:
		if msg.Canvas.ID() != "doc-1" || len(msg.Rows) != 1 || msg.Actor.ID != "u" {
			t.Fatalf("unexpected dispatched batch %+v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("batch was not executed")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, _ := tracker.Status(context.Background(), record.ID)
		if status.State == certificate.StateCompleted {
			if status.Bytes != 10 {
				t.Fatalf("expected batch bytes recorded, got %+v", status)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("batch record not completed")
}
