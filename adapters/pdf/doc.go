// Package certpdf provides the rendering adapters for go-certificate.
//
// FPDFAssembler wraps a rasterized certificate into a single PDF page with the
// requested paper size, bleed and crop marks. ChromiumEngine rasterizes canvas
// scenes (rendered to HTML with pongo2) and captures arbitrary elements through
// a shared headless Chromium instance.
package certpdf
