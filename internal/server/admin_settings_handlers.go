package server

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// SystemSettingResponse represents a setting in API responses.
type SystemSettingResponse struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	ValueType   string `json:"value_type"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	IsSensitive bool   `json:"is_sensitive"`
	UpdatedAt   string `json:"updated_at"`
}

// UpdateSettingRequest represents a request to update a setting.
type UpdateSettingRequest struct {
	Value       string `json:"value"`
	ValueType   string `json:"value_type"`
	Description string `json:"description"`
	IsSensitive bool   `json:"is_sensitive"`
}

// settingsCategory is the only category the engine reads at runtime.
const settingsCategory = "alerts"

// handleListSettings returns all runtime settings.
// GET /api/v1/settings
func (s *Server) handleListSettings(c *fiber.Ctx) error {
	settings, err := s.store.ListSettings(c.Context())
	if err != nil {
		s.log.Error("failed to list settings", "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "failed to retrieve settings", models.DatabaseErrorType)
	}

	response := make([]SystemSettingResponse, 0, len(settings))
	for i := range settings {
		response = append(response, settingToResponse(settings[i]))
	}
	return SendSuccess(c, fiber.StatusOK, response)
}

// handleGetSetting returns a specific setting by key.
// GET /api/v1/settings/:key
func (s *Server) handleGetSetting(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return SendErrorWithType(c, fiber.StatusBadRequest, "key parameter is required", models.ValidationErrorType)
	}

	value, err := s.store.GetSetting(c.Context(), key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return SendErrorWithType(c, fiber.StatusNotFound, "setting not found", models.NotFoundErrorType)
		}
		s.log.Error("failed to get setting", "key", key, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "failed to retrieve setting", models.DatabaseErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, fiber.Map{"key": key, "value": value})
}

// handleUpdateSetting updates or creates a setting. The alert manager re-reads
// alerts.* keys before every pass, so changes apply from the next pass or
// sweep. Interval changes apply after the current tick.
// PUT /api/v1/settings/:key
func (s *Server) handleUpdateSetting(c *fiber.Ctx) error {
	key := c.Params("key")
	if !strings.HasPrefix(key, settingsCategory+".") {
		return SendErrorWithType(c, fiber.StatusBadRequest, "key must start with \"alerts.\"", models.ValidationErrorType)
	}

	var req UpdateSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "invalid request body", models.ValidationErrorType)
	}
	if req.ValueType == "" {
		req.ValueType = "string"
	}

	if err := validateSettingValue(req.Value, req.ValueType); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, fmt.Sprintf("invalid value: %v", err), models.ValidationErrorType)
	}
	if err := validateSpecificSetting(key, req.Value); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, fmt.Sprintf("validation failed: %v", err), models.ValidationErrorType)
	}

	if err := s.store.UpsertSetting(c.Context(), key, req.Value, req.ValueType, settingsCategory, req.Description, req.IsSensitive); err != nil {
		s.log.Error("failed to update setting", "key", key, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "failed to update setting", models.DatabaseErrorType)
	}

	s.log.Info("setting updated", "key", key)
	return SendSuccess(c, fiber.StatusOK, fiber.Map{"message": "setting updated, applies from the next evaluation pass", "key": key})
}

// handleDeleteSetting deletes a setting, restoring the static default.
// DELETE /api/v1/settings/:key
func (s *Server) handleDeleteSetting(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return SendErrorWithType(c, fiber.StatusBadRequest, "key parameter is required", models.ValidationErrorType)
	}

	if err := s.store.DeleteSetting(c.Context(), key); err != nil {
		s.log.Error("failed to delete setting", "key", key, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "failed to delete setting", models.DatabaseErrorType)
	}

	s.log.Info("setting deleted", "key", key)
	return SendSuccess(c, fiber.StatusOK, fiber.Map{"message": "setting deleted successfully"})
}

// settingToResponse converts a stored setting to API response format.
// Sensitive values are masked.
func settingToResponse(setting models.SystemSetting) SystemSettingResponse {
	response := SystemSettingResponse{
		Key:         setting.Key,
		Value:       setting.Value,
		ValueType:   setting.ValueType,
		Category:    setting.Category,
		Description: setting.Description,
		IsSensitive: setting.IsSensitive,
		UpdatedAt:   setting.UpdatedAt.Format(time.RFC3339),
	}
	if response.IsSensitive && response.Value != "" {
		response.Value = "********"
	}
	return response
}

// validateSettingValue validates a setting value based on its type.
func validateSettingValue(value, valueType string) error {
	switch valueType {
	case "boolean":
		_, err := strconv.ParseBool(value)
		return err
	case "number":
		_, err := strconv.ParseFloat(value, 64)
		return err
	case "duration":
		_, err := time.ParseDuration(value)
		return err
	case "string":
		return nil
	default:
		return fmt.Errorf("invalid value_type: %s (must be: string, number, boolean, or duration)", valueType)
	}
}

func validateSpecificSetting(key, value string) error {
	validator, ok := specificSettingValidators[key]
	if !ok {
		return nil
	}
	return validator(value)
}

var specificSettingValidators = map[string]func(string) error{
	"alerts.workers":                 validatePositiveInt,
	"alerts.evaluation_interval":     validatePositiveDuration,
	"alerts.status_interval":         validatePositiveDuration,
	"alerts.offline_after":           validatePositiveDuration,
	"alerts.notification_timeout":    validatePositiveDuration,
	"alerts.webhook_urls":            validateURLList,
	"alerts.enabled":                 validateBool,
	"alerts.never_seen_offline":      validateBool,
	"alerts.notify_on_resolve":       validateBool,
	"alerts.webhook_skip_tls_verify": validateBool,
}

func validatePositiveInt(value string) error {
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a valid integer")
	}
	if intVal <= 0 {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

func validatePositiveDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration such as 30s or 5m")
	}
	if d <= 0 {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

func validateBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

// validateURLList accepts a comma-separated list of http(s) URLs; empty disables webhooks.
func validateURLList(value string) error {
	for _, raw := range strings.Split(value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid URL %q", raw)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("URL %q must use http or https scheme", raw)
		}
	}
	return nil
}
