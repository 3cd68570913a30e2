// Package certqr fetches generated QR images for certificate exports.
package certqr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-certificate/certificate"
)

// DefaultMaxBytes caps a single QR image download.
const DefaultMaxBytes int64 = 1 << 20

// DefaultTimeout bounds a single QR image request.
const DefaultTimeout = 10 * time.Second

// HTTPLoader loads QR images from the QR image service.
type HTTPLoader struct {
	Client    *http.Client
	MaxBytes  int64
	UserAgent string
}

var _ certificate.ImageLoader = (*HTTPLoader)(nil)

// Load fetches url and returns the image payload.
func (l *HTTPLoader) Load(ctx context.Context, url string) (certificate.Image, error) {
	if l == nil {
		return certificate.Image{}, certificate.NewError(certificate.KindInternal, "qr loader is nil", nil)
	}
	if strings.TrimSpace(url) == "" {
		return certificate.Image{}, certificate.NewError(certificate.KindValidation, "qr url is required", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return certificate.Image{}, certificate.NewError(certificate.KindValidation, "qr request invalid", err)
	}
	req.Header.Set("Accept", "image/png,image/*")
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}

	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return certificate.Image{}, certificate.NewError(certificate.KindFromError(ctx.Err()), "qr request canceled", err)
		}
		return certificate.Image{}, certificate.NewError(certificate.KindExternal, "qr request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return certificate.Image{}, certificate.NewError(certificate.KindExternal, fmt.Sprintf("qr service responded %d", resp.StatusCode), nil)
	}

	maxBytes := l.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return certificate.Image{}, certificate.NewError(certificate.KindExternal, "qr response read failed", err)
	}
	if int64(len(data)) > maxBytes {
		return certificate.Image{}, certificate.NewError(certificate.KindExternal, "qr image exceeds size limit", nil)
	}
	if len(data) == 0 {
		return certificate.Image{}, certificate.NewError(certificate.KindExternal, "qr image is empty", nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return certificate.Image{}, certificate.NewError(certificate.KindExternal, fmt.Sprintf("qr service returned %s", contentType), nil)
	}
	return certificate.Image{Data: data, ContentType: contentType}, nil
}
