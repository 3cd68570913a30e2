package certificate

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultQRServiceURL is the QR image service used when none is configured.
	DefaultQRServiceURL = "https://api.qrserver.com/v1/create-qr-code/"
	// DefaultQRSize is the preview QR size in pixels.
	DefaultQRSize = 150
	// ExportQRSize is the fixed resolution used when replacing placeholders.
	ExportQRSize = 300
)

// QRConfig configures QR URL generation.
type QRConfig struct {
	ServiceURL    string
	VerifyBaseURL string
}

func (c QRConfig) serviceURL() string {
	if strings.TrimSpace(c.ServiceURL) == "" {
		return DefaultQRServiceURL
	}
	return c.ServiceURL
}

// VerifyURL returns the verification page for a certificate.
func VerifyURL(certificateID, baseVerifyURL string) string {
	base := strings.TrimRight(baseVerifyURL, "/")
	return base + "/verify/" + certificateID
}

// QRCodeURL builds the QR image service URL for a certificate.
func QRCodeURL(certificateID string, size int, baseVerifyURL string) string {
	return QRConfig{}.URL(certificateID, size, baseVerifyURL)
}

// URL builds the QR image URL using the configured service. An empty base
// falls back to VerifyBaseURL.
func (c QRConfig) URL(certificateID string, size int, baseVerifyURL string) string {
	if size <= 0 {
		size = DefaultQRSize
	}
	if baseVerifyURL == "" {
		baseVerifyURL = c.VerifyBaseURL
	}
	verify := VerifyURL(certificateID, baseVerifyURL)
	return fmt.Sprintf("%s?size=%dx%d&data=%s", c.serviceURL(), size, size, url.QueryEscape(verify))
}
