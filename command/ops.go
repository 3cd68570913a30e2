package command

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/placeholder"
	certsource "github.com/goliatone/go-certificate/sources/sheet"
	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
)

// BatchJob is one batch run: a serialized document and its recipient rows.
type BatchJob struct {
	Actor    certificate.Actor        `json:"actor"`
	Document []byte                   `json:"document"`
	Rows     []placeholder.Data       `json:"rows"`
	Options  certificate.BatchOptions `json:"options"`
}

// BatchLoader loads pending batch jobs for scheduled runs.
type BatchLoader func(ctx context.Context) ([]BatchJob, error)

// BatchSummary counts the rows processed by a command run.
type BatchSummary struct {
	Jobs      int
	Succeeded int
	Failed    int
}

// BatchLimits bounds batch execution throughput.
type BatchLimits struct {
	MaxJobs     int
	MinInterval time.Duration
}

// BatchCommand wires CLI/Cron execution for certificate batches.
type BatchCommand struct {
	service    certificate.Service
	rasterizer certificate.Rasterizer
	loader     BatchLoader
	cliConfig  gcmd.CLIConfig
	cronConfig gcmd.HandlerConfig
	limits     BatchLimits
	logger     certificate.Logger
	sleep      func(time.Duration)
}

// BatchOption customizes batch commands.
type BatchOption func(*BatchCommand)

// WithBatchCLIConfig overrides CLI configuration.
func WithBatchCLIConfig(cfg gcmd.CLIConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cliConfig = cfg
	}
}

// WithBatchCronConfig overrides cron configuration.
func WithBatchCronConfig(cfg gcmd.HandlerConfig) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.cronConfig = cfg
	}
}

// WithBatchLimits overrides batch execution limits.
func WithBatchLimits(limits BatchLimits) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.limits = limits
	}
}

// WithBatchLoader sets the loader used by scheduled runs.
func WithBatchLoader(loader BatchLoader) BatchOption {
	return func(cmd *BatchCommand) {
		cmd.loader = loader
	}
}

// WithBatchLogger sets the command logger.
func WithBatchLogger(logger certificate.Logger) BatchOption {
	return func(cmd *BatchCommand) {
		if logger != nil {
			cmd.logger = logger
		}
	}
}

// NewBatchCommand creates a certificate batch CLI/Cron command. The rasterizer
// backs the canvases built from job documents.
func NewBatchCommand(svc certificate.Service, rasterizer certificate.Rasterizer, opts ...BatchOption) *BatchCommand {
	cmd := &BatchCommand{
		service:    svc,
		rasterizer: rasterizer,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"certificates-batch"},
			Description: "Generate certificates for every row of a sheet",
			Group:       "certificates",
		},
		cronConfig: gcmd.HandlerConfig{Expression: "*/15 * * * *"},
		logger:     certificate.NopLogger{},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	return cmd
}

// CronHandler runs the jobs returned by the loader.
func (c *BatchCommand) CronHandler() func() error {
	return func() error {
		_, err := c.runLoaded(context.Background())
		return err
	}
}

// CronOptions returns cron configuration.
func (c *BatchCommand) CronOptions() gcmd.HandlerConfig {
	if c == nil {
		return gcmd.HandlerConfig{}
	}
	return c.cronConfig
}

// CLIHandler exposes the CLI handler.
func (c *BatchCommand) CLIHandler() any {
	return &batchCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *BatchCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

func (c *BatchCommand) runLoaded(ctx context.Context) (BatchSummary, error) {
	if c == nil {
		return BatchSummary{}, errors.New("batch command is nil", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	if c.loader == nil {
		return BatchSummary{}, errors.New("batch loader not configured", errors.CategoryValidation).
			WithTextCode("LOADER_REQUIRED")
	}
	jobs, err := c.loader(ctx)
	if err != nil {
		return BatchSummary{}, err
	}
	return c.run(ctx, jobs)
}

func (c *BatchCommand) run(ctx context.Context, jobs []BatchJob) (BatchSummary, error) {
	if c.service == nil {
		return BatchSummary{}, serviceRequired()
	}

	summary := BatchSummary{}
	handler := NewGenerateBatchHandler(c.service)
	for _, job := range jobs {
		if c.limits.MaxJobs > 0 && summary.Jobs >= c.limits.MaxJobs {
			break
		}
		canvas, err := certificate.NewCanvasFromJSON(job.Document, c.rasterizer)
		if err != nil {
			return summary, err
		}

		var result certificate.BatchResult
		err = handler.Execute(ctx, GenerateBatch{
			Actor:   job.Actor,
			Canvas:  canvas,
			Rows:    job.Rows,
			Options: job.Options,
			Result:  &result,
		})
		summary.Jobs++
		summary.Succeeded += result.Succeeded()
		summary.Failed += len(result.Failures)
		if err != nil {
			return summary, err
		}
		c.logger.Infof("certificate batch %s: %d exported, %d failed", canvas.ID(), result.Succeeded(), len(result.Failures))

		if c.limits.MinInterval > 0 && c.sleep != nil {
			c.sleep(c.limits.MinInterval)
		}
	}
	return summary, nil
}

type batchCLI struct {
	cmd         *BatchCommand
	Document    string `kong:"name='document',required,help='Path to the certificate document JSON'"`
	Rows        string `kong:"name='rows',required,help='Path to the recipients sheet (xlsx, csv or tsv)'"`
	Pattern     string `kong:"name='pattern',help='Filename pattern, e.g. certificate_{{.Index}}'"`
	FileType    string `kong:"name='file-type',default='pdf',help='pdf, png or both'"`
	StopOnError bool   `kong:"name='stop-on-error',help='Abort on the first failed row'"`
}

func (c *batchCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("batch command is required", errors.CategoryInternal).
			WithTextCode("BATCH_CMD_NIL")
	}
	job, err := loadBatchJob(context.Background(), c.Document, c.Rows)
	if err != nil {
		return err
	}
	job.Options = certificate.BatchOptions{
		Export:          certificate.ExportOptions{FileType: certificate.FileType(strings.ToLower(c.FileType))},
		FilenamePattern: c.Pattern,
		StopOnError:     c.StopOnError,
	}
	_, err = c.cmd.run(context.Background(), []BatchJob{job})
	return err
}

func loadBatchJob(ctx context.Context, documentPath, rowsPath string) (BatchJob, error) {
	document, err := os.ReadFile(documentPath)
	if err != nil {
		return BatchJob{}, errors.Wrap(err, errors.CategoryExternal, "read document file failed").
			WithTextCode("DOCUMENT_FILE_READ")
	}
	file, err := os.Open(rowsPath)
	if err != nil {
		return BatchJob{}, errors.Wrap(err, errors.CategoryExternal, "open rows file failed").
			WithTextCode("ROWS_FILE_READ")
	}
	defer file.Close()

	source, err := certsource.ForFile(rowsPath, file)
	if err != nil {
		return BatchJob{}, err
	}
	rows, err := source.Rows(ctx)
	if err != nil {
		return BatchJob{}, err
	}
	return BatchJob{Document: document, Rows: rows}, nil
}
