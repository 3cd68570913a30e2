// Package certificate turns certificate design documents into print-ready
// PDF and PNG output.
//
// An export borrows a Canvas for the duration of one call: placeholder text is
// substituted in place, QR placeholder images are swapped for real QR codes,
// the canvas is rasterized at the quality's scale and, for PDF, placed on a
// page of the requested paper format with optional bleed and crop marks. The
// Exporter restores the original text and QR placeholders before returning,
// including on failure, and serializes exports per document through a
// DocumentLocker.
//
// Rendering, PDF assembly, QR image loading and delivery are pluggable:
// see Rasterizer, PageAssembler, ElementCapturer, ImageLoader and Sink. The
// adapters/pdf, adapters/qr and adapters/store packages provide production
// implementations; MemoryCanvas, MemoryStore and MemoryTracker are intended for
// tests and development.
package certificate
