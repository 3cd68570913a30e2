package certificate

import (
	"testing"
)

func TestQRCodeURL_Deterministic(t *testing.T) {
	first := QRCodeURL("CERT-123", 150, "https://x.test")
	second := QRCodeURL("CERT-123", 150, "https://x.test")
	if first != second {
		t.Fatalf("expected identical URLs, got %q and %q", first, second)
	}
	want := "https://api.qrserver.com/v1/create-qr-code/?size=150x150&data=https%3A%2F%2Fx.test%2Fverify%2FCERT-123"
	if first != want {
		t.Fatalf("expected %q, got %q", want, first)
	}
}

func TestQRCodeURL_DefaultSize(t *testing.T) {
	got := QRCodeURL("A", 0, "https://x.test/")
	want := "https://api.qrserver.com/v1/create-qr-code/?size=150x150&data=https%3A%2F%2Fx.test%2Fverify%2FA"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestQRConfig_UsesConfiguredService(t *testing.T) {
	cfg := QRConfig{ServiceURL: "https://qr.internal/png", VerifyBaseURL: "https://certs.example.com"}
	got := cfg.URL("C-1", ExportQRSize, "")
	want := "https://qr.internal/png?size=300x300&data=https%3A%2F%2Fcerts.example.com%2Fverify%2FC-1"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestVerifyURL(t *testing.T) {
	if got := VerifyURL("X", "https://a.test/"); got != "https://a.test/verify/X" {
		t.Fatalf("unexpected verify url %q", got)
	}
}
