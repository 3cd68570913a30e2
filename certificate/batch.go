package certificate

import (
	"context"

	"github.com/goliatone/go-certificate/placeholder"
)

// BatchOptions configures GenerateBatch.
type BatchOptions struct {
	Export          ExportOptions `json:"export"`
	FilenamePattern string        `json:"filename_pattern,omitempty"`
	StopOnError     bool          `json:"stop_on_error,omitempty"`
}

// BatchFailure records a failed row.
type BatchFailure struct {
	Row   int       `json:"row"`
	Kind  ErrorKind `json:"kind"`
	Error string    `json:"error"`
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Results  []ExportResult `json:"results"`
	Failures []BatchFailure `json:"failures,omitempty"`
}

// Succeeded returns the number of rows exported.
func (r BatchResult) Succeeded() int {
	return len(r.Results)
}

// GenerateBatch runs GenerateAndDownload for every row against one canvas.
// Rows are 1-indexed in filenames and failures. The canvas is restored after
// each row.
func (e *Exporter) GenerateBatch(ctx context.Context, canvas Canvas, rows []placeholder.Data, opts BatchOptions) (BatchResult, error) {
	if canvas == nil {
		return BatchResult{}, NewError(KindValidation, "canvas is required", nil)
	}
	if len(rows) == 0 {
		return BatchResult{}, NewError(KindValidation, "at least one row is required", nil)
	}
	exportOpts := opts.Export.withDefaults()
	if err := exportOpts.Validate(); err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Results: []ExportResult{}}
	for i, row := range rows {
		index := i + 1
		if err := ctx.Err(); err != nil {
			return result, NewError(KindFromError(err), "batch interrupted", err)
		}

		filename, err := RenderFilename(opts.FilenamePattern, index, row, e.now())
		if err == nil {
			var out ExportResult
			out, err = e.GenerateAndDownload(ctx, canvas, row, filename, exportOpts)
			if err == nil {
				result.Results = append(result.Results, out)
				continue
			}
		}

		result.Failures = append(result.Failures, BatchFailure{
			Row:   index,
			Kind:  KindFromError(err),
			Error: err.Error(),
		})
		e.logger.Errorf("certificate: batch row %d failed: %v", index, err)
		if opts.StopOnError {
			return result, err
		}
	}
	e.logger.Infof("certificate: batch on %s done, %d ok, %d failed", canvas.ID(), len(result.Results), len(result.Failures))
	return result, nil
}
