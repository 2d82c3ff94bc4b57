package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/sqlite"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// URL: GET /api/v1/alerts/:id
func (s *Server) handleGetAlert(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid alert ID", models.ValidationErrorType)
	}

	alert, err := s.store.GetAlert(c.Context(), models.AlertID(id))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return SendErrorWithType(c, fiber.StatusNotFound, "Alert not found", models.NotFoundErrorType)
		}
		s.log.Error("failed to get alert", "alert_id", id, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to retrieve alert", models.DatabaseErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, alert)
}

// handleAcknowledgeAlert moves an active alert to acknowledged. Acknowledging
// twice is not an error; acknowledging a resolved alert is a conflict.
// URL: POST /api/v1/alerts/:id/acknowledge
func (s *Server) handleAcknowledgeAlert(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid alert ID", models.ValidationErrorType)
	}

	alert, err := s.store.AcknowledgeAlert(c.Context(), models.AlertID(id))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return SendErrorWithType(c, fiber.StatusNotFound, "Alert not found", models.NotFoundErrorType)
		case errors.Is(err, sqlite.ErrAlertNotOpen):
			return SendErrorWithType(c, fiber.StatusConflict, "Alert is already resolved", models.ConflictErrorType)
		default:
			s.log.Error("failed to acknowledge alert", "alert_id", id, "error", err)
			return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to acknowledge alert", models.DatabaseErrorType)
		}
	}
	s.log.Info("alert acknowledged", "alert_id", alert.ID, "computer_id", alert.ComputerID)
	return SendSuccess(c, fiber.StatusOK, alert)
}

// URL: POST /api/v1/computers/:id/evaluate
func (s *Server) handleEvaluateComputer(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid computer ID", models.ValidationErrorType)
	}

	result, err := s.evaluator.EvaluateComputer(c.Context(), models.ComputerID(id))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return SendErrorWithType(c, fiber.StatusNotFound, "Computer not found", models.NotFoundErrorType)
		}
		s.log.Error("failed to evaluate computer", "computer_id", id, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to evaluate computer", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, result)
}

// URL: POST /api/v1/evaluate
func (s *Server) handleEvaluateAll(c *fiber.Ctx) error {
	summary, err := s.evaluator.EvaluateAllComputers(c.Context())
	if err != nil {
		s.log.Error("evaluation pass failed", "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to run evaluation pass", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, summary)
}

// URL: POST /api/v1/status/check
func (s *Server) handleCheckStatus(c *fiber.Ctx) error {
	summary, err := s.evaluator.CheckStatus(c.Context())
	if err != nil {
		s.log.Error("status sweep failed", "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to check computer status", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, summary)
}

// parseID reads the positive integer :id route parameter.
func parseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
