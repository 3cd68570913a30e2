package certpdf

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/goliatone/go-certificate/certificate"
)

const (
	defaultViewportWidth  = certificate.DefaultCanvasWidth
	defaultViewportHeight = certificate.DefaultCanvasHeight
)

// ChromiumEngine rasterizes scenes and elements using a shared headless
// Chromium instance. Remote assets are blocked unless ExternalAssets is
// ExternalAssetsAllow or their host is listed in AllowedHosts.
type ChromiumEngine struct {
	BrowserPath    string
	Headless       bool
	Timeout        time.Duration
	Args           []string
	BaseURL        string
	ExternalAssets ExternalAssetsPolicy
	AllowedHosts   []string

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

var (
	_ certificate.Rasterizer      = (*ChromiumEngine)(nil)
	_ certificate.ElementCapturer = (*ChromiumEngine)(nil)
)

// Rasterize renders the scene to HTML and screenshots the canvas root at the
// requested multiplier.
func (e *ChromiumEngine) Rasterize(ctx context.Context, scene certificate.Scene, opts certificate.RenderOptions) ([]byte, error) {
	if e == nil {
		return nil, certificate.NewError(certificate.KindInternal, "chromium engine is nil", nil)
	}
	markup, err := SceneHTML(scene)
	if err != nil {
		return nil, err
	}
	width, height := viewport(scene.Width, scene.Height)

	var shot []byte
	actions := e.assetActions(true)
	actions = append(actions,
		chromedp.EmulateViewport(width, height, chromedp.EmulateScale(scaleOrOne(opts.Multiplier))),
		setContent(markup),
		chromedp.WaitReady(sceneSelector, chromedp.ByQuery),
		screenshot(sceneSelector, opts.Format, opts.Quality, &shot),
	)

	if err := e.run(ctx, actions...); err != nil {
		return nil, certificate.NewError(certificate.KindFromError(err), "chromium rasterize failed", err)
	}
	return shot, nil
}

// Capture screenshots an element from inline HTML or a URL. Without UseCORS
// and AllowTaint, external requests are blocked. Otherwise the engine's
// asset policy applies.
func (e *ChromiumEngine) Capture(ctx context.Context, el certificate.Element, opts certificate.CaptureOptions) ([]byte, error) {
	if e == nil {
		return nil, certificate.NewError(certificate.KindInternal, "chromium engine is nil", nil)
	}
	if el.HTML == "" && el.URL == "" {
		return nil, certificate.NewError(certificate.KindValidation, "element html or url is required", nil)
	}
	selector := strings.TrimSpace(el.Selector)
	if selector == "" {
		selector = "body"
	}
	width, height := viewport(el.Width, el.Height)

	actions := e.assetActions(opts.UseCORS || opts.AllowTaint)
	actions = append(actions, chromedp.EmulateViewport(width, height, chromedp.EmulateScale(scaleOrOne(opts.Scale))))
	if el.URL != "" {
		actions = append(actions, chromedp.Navigate(el.URL))
	} else {
		markup := injectBaseURL([]byte(el.HTML), e.BaseURL)
		markup = injectBackground(markup, opts.BackgroundColor)
		actions = append(actions, setContent(string(markup)))
	}

	var shot []byte
	actions = append(actions,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		screenshot(selector, "png", opts.ImageQuality, &shot),
	)
	if err := e.run(ctx, actions...); err != nil {
		return nil, certificate.NewError(certificate.KindFromError(err), "chromium capture failed", err)
	}
	return shot, nil
}

// Close releases Chromium resources if they have been initialized.
func (e *ChromiumEngine) Close() error {
	if e == nil {
		return nil
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func (e *ChromiumEngine) run(ctx context.Context, actions ...chromedp.Action) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.ensureBrowser(); err != nil {
		return certificate.NewError(certificate.KindInternal, "chromium engine init failed", err)
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()

	execCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()
	if e.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, e.Timeout)
		defer cancelTimeout()
	}

	err := chromedp.Run(execCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (e *ChromiumEngine) ensureBrowser() error {
	e.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(e.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", e.Headless))
		options = append(options, allocatorOptionsFromArgs(e.Args)...)

		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
	})
	if e.allocCtx == nil || e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

func setContent(markup string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, markup).Do(ctx)
		}),
	}
}

// screenshot captures the selector as PNG, or the full page as JPEG when
// format is jpeg.
func screenshot(selector, format string, quality float64, out *[]byte) chromedp.Action {
	if strings.EqualFold(format, "jpeg") || strings.EqualFold(format, "jpg") {
		return chromedp.FullScreenshot(out, jpegQuality(quality))
	}
	return chromedp.Screenshot(selector, out, chromedp.ByQuery, chromedp.NodeVisible)
}

func jpegQuality(q float64) int {
	if q <= 0 || q > 1 {
		return 92
	}
	value := int(math.Round(q * 100))
	if value >= 100 {
		// 100 makes chromedp emit PNG
		return 99
	}
	return value
}

func viewport(width, height int) (int64, int64) {
	if width <= 0 {
		width = defaultViewportWidth
	}
	if height <= 0 {
		height = defaultViewportHeight
	}
	return int64(width), int64(height)
}

func injectBaseURL(htmlInput []byte, baseURL string) []byte {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return htmlInput
	}

	lower := strings.ToLower(string(htmlInput))
	if strings.Contains(lower, "<base") {
		return htmlInput
	}
	return injectHead(htmlInput, fmt.Sprintf(`<base href="%s">`, html.EscapeString(baseURL)))
}

func injectBackground(htmlInput []byte, color string) []byte {
	color = strings.TrimSpace(color)
	if color == "" {
		return htmlInput
	}
	return injectHead(htmlInput, fmt.Sprintf(`<style>html,body{background:%s;}</style>`, html.EscapeString(color)))
}

// injectHead inserts tag right after <head>, creating the head under <html>
// when missing.
func injectHead(htmlInput []byte, tag string) []byte {
	lower := strings.ToLower(string(htmlInput))
	if headIdx := strings.Index(lower, "<head"); headIdx >= 0 {
		if end := strings.Index(lower[headIdx:], ">"); end >= 0 {
			insertPos := headIdx + end + 1
			return append(append([]byte{}, htmlInput[:insertPos]...), append([]byte(tag), htmlInput[insertPos:]...)...)
		}
	}

	if htmlIdx := strings.Index(lower, "<html"); htmlIdx >= 0 {
		if end := strings.Index(lower[htmlIdx:], ">"); end >= 0 {
			insertPos := htmlIdx + end + 1
			injected := fmt.Sprintf("<head>%s</head>", tag)
			return append(append([]byte{}, htmlInput[:insertPos]...), append([]byte(injected), htmlInput[insertPos:]...)...)
		}
	}

	return append([]byte(tag), htmlInput...)
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}
