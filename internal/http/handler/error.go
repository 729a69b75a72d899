package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"arkstore/internal/http/middleware"
	"arkstore/internal/ledger"
	"arkstore/internal/service"
	"arkstore/internal/validator"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// TxID is set for failures that leave an addressable remote artifact
	// behind, so clients can reconcile.
	TxID string `json:"tx_id,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "FILE_TOO_LARGE", "RATE_LIMITED", "LEDGER_WRITE_FAILED")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

func writeErrorTx(c *fiber.Ctx, status int, code, message, txID string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			TxID:    txID,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps the pipeline's error taxonomy onto HTTP statuses.
// Validation and rate-limit failures are client errors; connection, timeout
// and remote failures are upstream ones; a ledger failure after a remote
// success is the one case reported as an internal inconsistency.
func writeServiceError(c *fiber.Ctx, err error) error {
	var (
		tooLarge *validator.TooLargeError
		limited  *service.RateLimitedError
		timeout  *service.TimeoutError
		partial  *service.PartialUploadError
		lerr     *service.LedgerError
	)

	switch {
	case errors.Is(err, validator.ErrNotFound):
		return writeError(c, fiber.StatusBadRequest, "FILE_NOT_FOUND", "file not found")
	case errors.Is(err, validator.ErrEmptyFile):
		return writeError(c, fiber.StatusBadRequest, "FILE_EMPTY", "file is empty")
	case errors.Is(err, validator.ErrUnsupportedType):
		return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_TYPE", "unsupported file type")
	case errors.As(err, &tooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			"file exceeds the size limit of "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
	case errors.As(err, &limited):
		retryAfter := int(time.Until(limited.ResetAt).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		return writeError(c, fiber.StatusTooManyRequests, "RATE_LIMITED", "upload rate limit exceeded")
	case errors.Is(err, service.ErrConnection):
		return writeError(c, fiber.StatusServiceUnavailable, "CONNECTION_UNAVAILABLE", "no upload connection available")
	case errors.As(err, &timeout):
		return writeError(c, fiber.StatusGatewayTimeout, "UPLOAD_TIMEOUT", "upload did not complete in time")
	case errors.As(err, &partial):
		return writeErrorTx(c, fiber.StatusBadGateway, "PARTIAL_UPLOAD",
			"metadata upload failed after the logo succeeded", partial.LogoTxID)
	case errors.As(err, &lerr):
		if errors.Is(lerr.Err, ledger.ErrDuplicateTransaction) {
			return writeErrorTx(c, fiber.StatusConflict, "DUPLICATE_TRANSACTION",
				"content already recorded", lerr.TxID)
		}
		return writeErrorTx(c, fiber.StatusInternalServerError, "LEDGER_WRITE_FAILED",
			"upload succeeded but could not be recorded", lerr.TxID)
	case errors.Is(err, service.ErrRemote):
		return writeError(c, fiber.StatusBadGateway, "GATEWAY_ERROR", "remote gateway rejected the upload")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
