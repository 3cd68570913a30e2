package storefs

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-certificate/certificate"
)

// HMACSigner signs artifact URLs as {base}/{key}?expires={unix}&signature={hex}.
type HMACSigner struct {
	Secret []byte
	Now    func() time.Time
}

var _ SignedURLSigner = HMACSigner{}

// SignURL signs the key and expiry.
func (s HMACSigner) SignURL(input SignedURLInput) (string, error) {
	if len(s.Secret) == 0 {
		return "", certificate.NewError(certificate.KindValidation, "signing secret is required", nil)
	}
	expires := strconv.FormatInt(input.ExpiresAt.Unix(), 10)
	query := url.Values{}
	query.Set("expires", expires)
	query.Set("signature", s.sign(input.Key, expires))
	return input.BaseURL + "/" + strings.TrimLeft(input.Key, "/") + "?" + query.Encode(), nil
}

// Verify checks a signature produced by SignURL.
func (s HMACSigner) Verify(key, expires, signature string) error {
	if len(s.Secret) == 0 {
		return certificate.NewError(certificate.KindNotImpl, "signing secret is not configured", nil)
	}
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return certificate.NewError(certificate.KindValidation, "invalid expiry", err)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if now().Unix() > unix {
		return certificate.NewError(certificate.KindValidation, "signed URL expired", nil)
	}
	expected := s.sign(key, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return certificate.NewError(certificate.KindValidation, "invalid signature", nil)
	}
	return nil
}

func (s HMACSigner) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(strings.TrimLeft(key, "/")))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}
