package server

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/metrics"
)

// MetaResponse represents the server metadata response
type MetaResponse struct {
	Version      string `json:"version"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

// handleGetMeta returns server metadata including version and configuration
// URL: GET /api/v1/meta
func (s *Server) handleGetMeta(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.StatusOK, MetaResponse{
		Version:      s.version,
		ReadTimeout:  s.config.ReadTimeout.String(),
		WriteTimeout: s.config.WriteTimeout.String(),
	})
}

// URL: GET /healthz
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.StatusOK, fiber.Map{"status": "ok"})
}

// handleMetrics serves the Prometheus text exposition.
// URL: GET /metrics
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	var buf bytes.Buffer
	metrics.WritePrometheus(&buf)
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.Send(buf.Bytes())
}
