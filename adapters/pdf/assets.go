package certpdf

import (
	"context"
	"net/url"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/goliatone/go-certificate/certificate"
)

// ExternalAssetsPolicy controls whether rendered pages may fetch remote
// resources.
type ExternalAssetsPolicy string

const (
	// ExternalAssetsBlock refuses network and file requests except to
	// AllowedHosts. It is the default.
	ExternalAssetsBlock ExternalAssetsPolicy = "block"
	// ExternalAssetsAllow lets pages fetch any URL.
	ExternalAssetsAllow ExternalAssetsPolicy = "allow"
)

// ParseExternalAssetsPolicy normalizes a configured policy value. Empty
// means block.
func ParseExternalAssetsPolicy(value string) (ExternalAssetsPolicy, error) {
	switch ExternalAssetsPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", ExternalAssetsBlock:
		return ExternalAssetsBlock, nil
	case ExternalAssetsAllow:
		return ExternalAssetsAllow, nil
	default:
		return "", certificate.NewError(certificate.KindValidation, "unknown external assets policy "+value, nil)
	}
}

var blockedSchemes = []string{"http://*", "https://*", "file://*", "ftp://*", "ws://*", "wss://*"}

// assetActions returns the request filtering set up for a tab. When
// crossOrigin is false every remote request is refused regardless of the
// engine policy.
func (e *ChromiumEngine) assetActions(crossOrigin bool) []chromedp.Action {
	if crossOrigin && e.ExternalAssets == ExternalAssetsAllow {
		return nil
	}
	hosts := e.AllowedHosts
	if !crossOrigin {
		hosts = nil
	}
	if len(hosts) == 0 {
		return []chromedp.Action{
			network.Enable(),
			network.SetBlockedURLs(blockedSchemes),
		}
	}
	return []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			listenAssetRequests(ctx, hosts)
			return fetch.Enable().WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}).Do(ctx)
		}),
	}
}

func listenAssetRequests(ctx context.Context, hosts []string) {
	chromedp.ListenTarget(ctx, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			execCtx := cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Target)
			if paused.Request != nil && assetAllowed(paused.Request.URL, hosts) {
				_ = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
				return
			}
			_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
		}()
	})
}

// assetAllowed reports whether a page may load rawURL. Inline data, blob and
// about: URLs are always allowed. http and https URLs need a host listed in
// hosts, where "*.example.com" matches any subdomain. Other schemes are
// refused.
func assetAllowed(rawURL string, hosts []string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "data", "blob", "about":
		return true
	case "http", "https":
	default:
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	for _, allowed := range hosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}
	return false
}
