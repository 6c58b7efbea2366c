package validation

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxRows             int
	MaxTextLength       int
	AllowedContentTypes []string
	// Paths lists the routes whose bodies are audit payloads.
	Paths  []string
	Logger *zap.Logger
}

// auditPayload is the subset of an audit request the validator inspects.
type auditPayload struct {
	Rows     []json.RawMessage `json:"rows"`
	AIOutput string            `json:"ai_output"`
}

// Middleware rejects audit payloads that are malformed or too large before
// they reach a handler.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxRows == 0 {
		cfg.MaxRows = 100000
	}
	if cfg.MaxTextLength == 0 {
		cfg.MaxTextLength = 20000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if len(cfg.Paths) == 0 {
		cfg.Paths = []string{"/api/v1/audits"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost || !matchesPath(c.Path(), cfg.Paths) {
			return c.Next()
		}

		if !allowedContentType(c.Get(fiber.HeaderContentType), cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		var payload auditPayload
		if err := json.Unmarshal(c.Body(), &payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		if len(payload.Rows) > cfg.MaxRows {
			cfg.Logger.Warn("Audit payload rejected",
				zap.String("ip", c.IP()),
				zap.Int("rows", len(payload.Rows)),
				zap.Int("max_rows", cfg.MaxRows),
			)
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Dataset exceeds maximum row count",
			})
		}

		if utf8.RuneCountInString(payload.AIOutput) > cfg.MaxTextLength {
			cfg.Logger.Warn("Audit payload rejected",
				zap.String("ip", c.IP()),
				zap.Int("text_length", len(payload.AIOutput)),
			)
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "AI output exceeds maximum length",
			})
		}

		return c.Next()
	}
}

func matchesPath(path string, paths []string) bool {
	path = strings.TrimRight(path, "/")
	for _, p := range paths {
		if path == p {
			return true
		}
	}
	return false
}

func allowedContentType(contentType string, allowed []string) bool {
	contentType = strings.ToLower(contentType)
	for _, a := range allowed {
		if strings.HasPrefix(contentType, a) {
			return true
		}
	}
	return false
}
