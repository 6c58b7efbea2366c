package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/truthlens/backend/internal/audit"
	"github.com/truthlens/backend/internal/dataset"
	"github.com/truthlens/backend/internal/governance"
	"github.com/truthlens/backend/pkg/logger"
)

const defaultLabel = "dataset"

// AuditRequest is the body of POST /api/v1/audits.
type AuditRequest struct {
	Label    string       `json:"label"`
	Rows     dataset.Rows `json:"rows"`
	AIOutput string       `json:"ai_output"`
}

// toRequest checks the payload and builds the audit request. The returned
// message is suitable for the client when the payload is unusable.
func (r AuditRequest) toRequest() (audit.Request, string) {
	if len(r.Rows.Rows) == 0 {
		return audit.Request{}, "Please upload a dataset first"
	}
	label := strings.TrimSpace(r.Label)
	if label == "" {
		label = defaultLabel
	}
	return audit.Request{
		Dataset:  r.Rows.Dataset(label),
		AIOutput: r.AIOutput,
	}, ""
}

type AuditHandler struct {
	runner audit.Runner
}

func NewAuditHandler(runner audit.Runner) *AuditHandler {
	return &AuditHandler{runner: runner}
}

func (h *AuditHandler) CreateAudit(c *fiber.Ctx) error {
	var req AuditRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Warn("Failed to parse audit request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	auditReq, problem := req.toRequest()
	if problem != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": problem,
		})
	}

	report, err := h.runner.Run(c.Context(), auditReq)
	if err != nil {
		logger.Error("Audit failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": auditErrorMessage(err),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

func auditErrorMessage(err error) string {
	switch {
	case errors.Is(err, governance.ErrInvalidInput):
		return "Audit produced an invalid signal"
	case errors.Is(err, audit.ErrAuditInProgress):
		return "An audit is already in progress"
	default:
		return "Audit failed. Please check your API key and data format."
	}
}
