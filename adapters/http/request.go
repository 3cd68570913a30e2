package certhttp

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-certificate/certificate"
	"github.com/goliatone/go-certificate/placeholder"
	certsource "github.com/goliatone/go-certificate/sources/sheet"
)

// ExportRequest is the body of POST {base}/exports.
type ExportRequest struct {
	Document json.RawMessage           `json:"document"`
	Data     placeholder.Data          `json:"data"`
	Filename string                    `json:"filename,omitempty"`
	Options  certificate.ExportOptions `json:"options"`
}

// PreviewRequest is the body of POST {base}/preview.
type PreviewRequest struct {
	Document json.RawMessage     `json:"document"`
	Quality  certificate.Quality `json:"quality,omitempty"`
}

// BatchRequest is the body of POST {base}/batches. Multipart requests carry
// document and options as JSON form fields and the rows as a "rows" file.
type BatchRequest struct {
	Document json.RawMessage          `json:"document"`
	Rows     []placeholder.Data       `json:"rows"`
	Options  certificate.BatchOptions `json:"options"`
}

func decodeJSON(c *fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return certificate.NewError(certificate.KindValidation, "request body is required", nil)
	}
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return certificate.NewError(certificate.KindValidation, "invalid JSON body", err)
	}
	return nil
}

func decodeBatch(c *fiber.Ctx) (BatchRequest, error) {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		var req BatchRequest
		err := decodeJSON(c, &req)
		return req, err
	}

	req := BatchRequest{Document: json.RawMessage(c.FormValue("document"))}
	if raw := c.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Options); err != nil {
			return BatchRequest{}, certificate.NewError(certificate.KindValidation, "invalid batch options", err)
		}
	}
	header, err := c.FormFile("rows")
	if err != nil {
		return BatchRequest{}, certificate.NewError(certificate.KindValidation, "rows file is required", err)
	}
	file, err := header.Open()
	if err != nil {
		return BatchRequest{}, certificate.NewError(certificate.KindValidation, "open rows file", err)
	}
	defer file.Close()

	source, err := certsource.ForFile(header.Filename, io.Reader(file))
	if err != nil {
		return BatchRequest{}, err
	}
	req.Rows, err = source.Rows(c.UserContext())
	if err != nil {
		return BatchRequest{}, err
	}
	return req, nil
}

func parseFilter(c *fiber.Ctx) (certificate.RecordFilter, error) {
	filter := certificate.RecordFilter{
		DocumentID:    c.Query("document_id"),
		CertificateID: c.Query("certificate_id"),
		State:         certificate.ExportState(c.Query("state")),
	}
	var err error
	if filter.Since, err = parseTime(c.Query("since"), "since"); err != nil {
		return certificate.RecordFilter{}, err
	}
	if filter.Until, err = parseTime(c.Query("until"), "until"); err != nil {
		return certificate.RecordFilter{}, err
	}
	return filter, nil
}

func parseTime(value, name string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, certificate.NewError(certificate.KindValidation, fmt.Sprintf("invalid %s timestamp", name), err)
	}
	return ts, nil
}

func parseDimensionOptions(c *fiber.Ctx) (certificate.ExportOptions, error) {
	format, err := certificate.ParsePaperFormat(c.Query("format"))
	if err != nil {
		return certificate.ExportOptions{}, err
	}
	opts := certificate.ExportOptions{
		Format:       format,
		Orientation:  certificate.Orientation(strings.ToLower(c.Query("orientation"))),
		Quality:      certificate.Quality(strings.ToLower(c.Query("quality"))),
		IncludeBleed: c.QueryBool("include_bleed", false),
	}
	if raw := c.Query("bleed_mm"); raw != "" {
		bleed := c.QueryFloat("bleed_mm", -1)
		opts.BleedMM = &bleed
	}
	return opts, nil
}
