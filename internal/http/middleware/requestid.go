package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request id on both request and response.
	RequestIDHeader = "X-Request-ID"
	// RequestIDLocalKey is where RequestID stores the id in context locals.
	RequestIDLocalKey = "request_id"
	// IdentityHeader names the uploader identity a client may present.
	// The upload handlers and the request logger both read it.
	IdentityHeader = "X-Identity"
)

// RequestID tags every request with an id so log lines and error payloads
// can be correlated. A client-supplied X-Request-ID is kept as-is; otherwise
// a fresh UUID is minted. The id is stored in context locals and echoed on
// the response header.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(RequestIDLocalKey, id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}
