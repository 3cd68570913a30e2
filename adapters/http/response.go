package certhttp

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-certificate/certificate"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains error details.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExportResponse is returned when an export is not streamed.
type ExportResponse struct {
	certificate.ExportResult
	URLs []string `json:"urls,omitempty"`
}

// StatusForError maps certificate error kinds to HTTP status codes.
func StatusForError(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch certificate.KindFromError(err) {
	case certificate.KindValidation:
		return http.StatusBadRequest
	case certificate.KindNotFound:
		return http.StatusNotFound
	case certificate.KindConflict, certificate.KindCanceled:
		return http.StatusConflict
	case certificate.KindTimeout:
		return http.StatusGatewayTimeout
	case certificate.KindExternal:
		return http.StatusBadGateway
	case certificate.KindNotImpl:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status := StatusForError(err)
	body := ErrorBody{Code: http.StatusText(status), Message: err.Error()}

	var fe *fiber.Error
	if !errors.As(err, &fe) {
		ge := certificate.AsGoError(err)
		body = ErrorBody{Code: ge.TextCode, Message: ge.Message}
	}
	return c.Status(status).JSON(ErrorResponse{Error: body})
}

// ErrorHandler is a fiber error handler that writes the JSON error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return writeError(c, err)
}
