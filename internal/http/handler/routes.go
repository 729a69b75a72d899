package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"arkstore/internal/http/middleware"
	"arkstore/internal/ledger"
	"arkstore/internal/model"
	"arkstore/internal/service"
)

// Pinger reports whether the ledger backend is reachable. *sql.DB satisfies
// it; the flat-file backend supplies a no-op.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Deps holds the collaborators the HTTP routes are wired against.
type Deps struct {
	Pinger  Pinger
	Uploads service.UploadService
	Tokens  service.TokenService
	Ledger  ledger.Ledger
	TempDir string
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal and free of business logic.
func RegisterRoutes(app *fiber.App, deps Deps) {
	// Serve the OpenAPI document and a Swagger UI page over it.
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(deps.Pinger))
	app.Get("/healthz", LivenessProbe())

	app.Post("/uploads", UploadFile(deps.Uploads, deps.TempDir))
	app.Get("/uploads/:txid", GetUpload(deps.Ledger))
	app.Post("/tokens", CreateToken(deps.Tokens, deps.TempDir))
	app.Get("/identities/:address/dashboard", GetDashboard(deps.Ledger))
}

// HealthCheck reports whether the ledger backend is reachable.
func HealthCheck(p Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := p.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// identityOf resolves the uploader identity: explicit form value first, then
// the X-Identity header, then a generated per-request session id.
func identityOf(c *fiber.Ctx) string {
	if v := strings.TrimSpace(c.FormValue("identity")); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.Get(middleware.IdentityHeader)); v != "" {
		return v
	}
	return "session-" + uuid.NewString()
}

// parseCustomTags decodes the optional "tags" form field, a JSON array of
// {"name": ..., "value": ...} objects. Order and duplicates are preserved.
func parseCustomTags(raw string) ([]model.Tag, error) {
	if raw == "" {
		return nil, nil
	}
	var tagList []model.Tag
	if err := json.Unmarshal([]byte(raw), &tagList); err != nil {
		return nil, err
	}
	return tagList, nil
}

func parseMetadata(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var md map[string]string
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return nil, err
	}
	return md, nil
}

// saveToTemp spools a multipart part to a uniquely named file under tempDir.
// The original extension is preserved; type resolution depends on it.
func saveToTemp(c *fiber.Ctx, fh *multipart.FileHeader, tempDir string) (string, error) {
	path := filepath.Join(tempDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveFile(fh, path); err != nil {
		return "", err
	}
	return path, nil
}

// UploadFile handles multipart uploads (field name: file). The spooled temp
// file is owned by the pipeline, which deletes it on every outcome.
func UploadFile(svc service.UploadService, tempDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		customTags, err := parseCustomTags(c.FormValue("tags"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_TAGS", "tags must be a JSON array of name/value objects")
		}
		metadata, err := parseMetadata(c.FormValue("metadata"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_METADATA", "metadata must be a JSON object of strings")
		}

		path, err := saveToTemp(c, fh, tempDir)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "FILE_SPOOL_ERROR", "cannot store uploaded file")
		}

		res, err := svc.Upload(c.UserContext(), service.Request{
			Path:       path,
			FileName:   fh.Filename,
			Identity:   identityOf(c),
			SourceAddr: c.IP(),
			CustomTags: customTags,
			Metadata:   metadata,
			RemoveFile: true,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GetUpload returns one recorded upload by transaction id.
func GetUpload(led ledger.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		txID := c.Params("txid")
		up, err := led.GetUpload(c.UserContext(), txID)
		if err != nil {
			if errors.Is(err, ledger.ErrUploadNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "upload not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(up)
	}
}

// CreateToken handles token asset creation (multipart field: logo, plus
// name, symbol and optional description form values).
func CreateToken(svc service.TokenService, tempDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := strings.TrimSpace(c.FormValue("name"))
		symbol := strings.TrimSpace(c.FormValue("symbol"))
		if name == "" || symbol == "" {
			return writeError(c, fiber.StatusBadRequest, "TOKEN_FIELDS_REQUIRED", "name and symbol are required")
		}

		fh, err := c.FormFile("logo")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "LOGO_REQUIRED", "logo file is required")
		}
		path, err := saveToTemp(c, fh, tempDir)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "FILE_SPOOL_ERROR", "cannot store uploaded file")
		}

		res, err := svc.CreateTokenAssets(c.UserContext(), service.TokenParams{
			Name:        name,
			Symbol:      symbol,
			Description: c.FormValue("description"),
			LogoPath:    path,
			RemoveLogo:  true,
		}, identityOf(c), c.IP())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GetDashboard returns aggregate activity for one identity.
func GetDashboard(led ledger.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := c.Params("address")
		recent, err := strconv.Atoi(c.Query("recent", "10"))
		if err != nil || recent < 1 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_RECENT", "recent must be a positive integer")
		}

		dash, err := led.Dashboard(c.UserContext(), address, recent)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(dash)
	}
}
