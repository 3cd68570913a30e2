package certificate

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/goliatone/go-certificate/placeholder"
)

// DefaultFilename is used when a download has no name.
const DefaultFilename = "certificate"

// DefaultBatchFilename names batch outputs when no pattern is given.
const DefaultBatchFilename = "certificate_{{.Index}}_{{.Field \"recipient_name\"}}"

// NormalizeFilename trims the name and appends ext unless it is already
// present, ignoring case.
func NormalizeFilename(name, ext string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultFilename
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return name
	}
	if strings.HasSuffix(strings.ToLower(name), "."+ext) {
		return name
	}
	return name + "." + ext
}

// StripExtension removes a trailing .pdf or .png.
func StripExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".pdf", ".png"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

type filenameData struct {
	Index     int
	Data      placeholder.Data
	Timestamp string
	Date      string
}

// Field returns a data value with path separators removed.
func (d filenameData) Field(name string) string {
	return sanitizeFilename(d.Data.Get(name))
}

// RenderFilename executes a text/template pattern for a batch row. Pattern
// fields: .Index, .Timestamp, .Date and .Field "name".
func RenderFilename(pattern string, index int, data placeholder.Data, now time.Time) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultBatchFilename
	}
	tmpl, err := template.New("filename").Option("missingkey=zero").Parse(pattern)
	if err != nil {
		return "", NewError(KindValidation, "invalid filename pattern", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, filenameData{
		Index:     index,
		Data:      data,
		Timestamp: now.UTC().Format("20060102T150405Z"),
		Date:      now.UTC().Format("20060102"),
	}); err != nil {
		return "", NewError(KindValidation, "render filename", err)
	}

	result := strings.Trim(strings.TrimSpace(buf.String()), "_-")
	if result == "" {
		return "", NewError(KindValidation, fmt.Sprintf("empty filename for row %d", index), nil)
	}
	return result, nil
}

func sanitizeFilename(value string) string {
	value = strings.TrimSpace(value)
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "_")
	return replacer.Replace(value)
}
