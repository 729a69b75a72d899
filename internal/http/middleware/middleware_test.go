package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/uploads/:txid", func(c *fiber.Ctx) error {
		rid := c.Locals(RequestIDLocalKey)
		return c.SendString(rid.(string))
	})

	t.Run("generates an id when the client sends none", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/uploads/tx-1", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ridHeader := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, ridHeader)

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, ridHeader, string(body), "handler sees the same id the response carries")
	})

	t.Run("keeps a client-supplied id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/uploads/tx-1", nil)
		req.Header.Set(RequestIDHeader, "req-abc-123")

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, "req-abc-123", resp.Header.Get(RequestIDHeader))

		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "req-abc-123", string(body))
	})
}

func TestNoop(t *testing.T) {
	app := fiber.New()
	app.Use(Noop())

	app.Get("/dashboard/:identity", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/dashboard/w1", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()

	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, time.UTC))

	app.Post("/uploads", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	req := httptest.NewRequest("POST", "/uploads", strings.NewReader("payload"))
	req.Header.Set(IdentityHeader, "w1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.NotEmpty(t, line["ts"])
	assert.NotEmpty(t, line["request_id"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/uploads", line["path"])
	assert.Equal(t, float64(fiber.StatusCreated), line["status"])
	assert.NotNil(t, line["latency"])
	assert.Equal(t, float64(len("payload")), line["bytes_in"])
	assert.Equal(t, "w1", line["identity"])
}

func TestLogger_OmitsIdentityWhenAbsent(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(LoggerWithWriter(&buf, time.UTC))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	_, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	_, present := line["identity"]
	assert.False(t, present)
}
