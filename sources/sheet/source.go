package certsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/placeholder"
	"github.com/xuri/excelize/v2"
)

// Source yields recipient rows for batch generation.
type Source interface {
	Rows(ctx context.Context) ([]placeholder.Data, error)
}

// SourceFunc adapts a function into a Source.
type SourceFunc func(ctx context.Context) ([]placeholder.Data, error)

func (f SourceFunc) Rows(ctx context.Context) ([]placeholder.Data, error) {
	if f == nil {
		return nil, certificate.NewError(certificate.KindValidation, "source func is nil", nil)
	}
	return f(ctx)
}

// XLSX reads rows from a workbook. The first row holds field names.
type XLSX struct {
	Reader io.Reader
	// Sheet defaults to the first sheet in the workbook.
	Sheet string
}

// Rows parses the workbook.
func (s XLSX) Rows(ctx context.Context) ([]placeholder.Data, error) {
	if s.Reader == nil {
		return nil, certificate.NewError(certificate.KindValidation, "xlsx reader is required", nil)
	}
	file, err := excelize.OpenReader(s.Reader)
	if err != nil {
		return nil, certificate.NewError(certificate.KindValidation, "open xlsx", err)
	}
	defer func() {
		_ = file.Close()
	}()

	sheet := s.Sheet
	if sheet == "" {
		sheets := file.GetSheetList()
		if len(sheets) == 0 {
			return nil, certificate.NewError(certificate.KindValidation, "workbook has no sheets", nil)
		}
		sheet = sheets[0]
	}
	records, err := file.GetRows(sheet)
	if err != nil {
		return nil, certificate.NewError(certificate.KindValidation, fmt.Sprintf("read sheet %q", sheet), err)
	}
	return toData(ctx, records)
}

// CSV reads rows from comma separated text. The first record holds field names.
type CSV struct {
	Reader io.Reader
	Comma  rune
}

// Rows parses the CSV input.
func (s CSV) Rows(ctx context.Context) ([]placeholder.Data, error) {
	if s.Reader == nil {
		return nil, certificate.NewError(certificate.KindValidation, "csv reader is required", nil)
	}
	reader := csv.NewReader(s.Reader)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if s.Comma != 0 {
		reader.Comma = s.Comma
	}

	records := [][]string{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, certificate.NewError(certificate.KindValidation, "read csv", err)
		}
		records = append(records, record)
	}
	return toData(ctx, records)
}

// ForFile picks a Source from the filename extension.
func ForFile(filename string, r io.Reader) (Source, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return XLSX{Reader: r}, nil
	case ".csv":
		return CSV{Reader: r}, nil
	case ".tsv":
		return CSV{Reader: r, Comma: '\t'}, nil
	default:
		return nil, certificate.NewError(certificate.KindValidation, fmt.Sprintf("unsupported row file %q", filename), nil)
	}
}

// NormalizeHeader maps a column header to a placeholder field name:
// "{Recipient Name}" and "recipient name" both become "recipient_name".
func NormalizeHeader(header string) string {
	field := placeholder.FieldName(strings.TrimSpace(header))
	field = strings.ToLower(strings.TrimSpace(field))
	return strings.Join(strings.FieldsFunc(field, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

func toData(ctx context.Context, records [][]string) ([]placeholder.Data, error) {
	if len(records) == 0 {
		return nil, certificate.NewError(certificate.KindValidation, "row file is empty", nil)
	}
	headers := make([]string, len(records[0]))
	named := 0
	for i, header := range records[0] {
		headers[i] = NormalizeHeader(header)
		if headers[i] != "" {
			named++
		}
	}
	if named == 0 {
		return nil, certificate.NewError(certificate.KindValidation, "header row is empty", nil)
	}

	rows := make([]placeholder.Data, 0, len(records)-1)
	for _, record := range records[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := placeholder.Data{}
		blank := true
		for i, value := range record {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			value = strings.TrimSpace(value)
			if value != "" {
				blank = false
			}
			row[headers[i]] = value
		}
		if blank {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
