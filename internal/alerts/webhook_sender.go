package alerts

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type WebhookSenderOptions struct {
	URLs          []string
	Timeout       time.Duration
	SkipTLSVerify bool
	Logger        *slog.Logger
}

// WebhookSender posts alert transitions as JSON to fixed endpoints.
type WebhookSender struct {
	urls   []string
	client *http.Client
	logger *slog.Logger
}

type webhookPayload struct {
	AlertID     int64      `json:"alert_id"`
	RuleID      int64      `json:"rule_id"`
	RuleName    string     `json:"rule_name"`
	RuleType    string     `json:"rule_type"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Severity    string     `json:"severity"`
	ComputerID  int64      `json:"computer_id"`
	Hostname    string     `json:"hostname"`
	LabID       *int64     `json:"lab_id,omitempty"`
	Metric      string     `json:"metric,omitempty"`
	Condition   string     `json:"condition,omitempty"`
	Threshold   float64    `json:"threshold"`
	Value       *float64   `json:"value,omitempty"`
	TriggeredAt time.Time  `json:"triggered_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func NewWebhookSender(opts WebhookSenderOptions) *WebhookSender {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.SkipTLSVerify}, // #nosec G402
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSender{
		urls:   append([]string(nil), opts.URLs...),
		client: &http.Client{Timeout: timeout, Transport: transport},
		logger: logger.With("component", "alert_webhook_sender"),
	}
}

// Send posts to the sender's URLs plus any carried by the notification.
func (s *WebhookSender) Send(ctx context.Context, notification AlertNotification) error {
	urls := append(append([]string(nil), s.urls...), notification.WebhookURLs...)
	if len(urls) == 0 {
		return nil
	}
	payload := webhookPayload{
		AlertID:     int64(notification.AlertID),
		RuleID:      int64(notification.RuleID),
		RuleName:    notification.RuleName,
		RuleType:    string(notification.RuleType),
		Title:       notification.Title,
		Description: notification.Description,
		Status:      string(notification.Status),
		Severity:    string(notification.Severity),
		ComputerID:  int64(notification.ComputerID),
		Hostname:    notification.Hostname,
		Metric:      notification.Metric,
		Condition:   string(notification.Condition),
		Threshold:   notification.Threshold,
		Value:       notification.Value,
		TriggeredAt: notification.TriggeredAt,
		ResolvedAt:  notification.ResolvedAt,
	}
	if notification.LabID != nil {
		lab := int64(*notification.LabID)
		payload.LabID = &lab
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var errs []string
	for _, url := range urls {
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", url, err))
			continue
		}
		request.Header.Set("Content-Type", "application/json")
		response, err := s.client.Do(request)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", url, err))
			continue
		}
		responseBody, readErr := io.ReadAll(response.Body)
		_ = response.Body.Close()
		if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
			if readErr != nil {
				errs = append(errs, fmt.Sprintf("%s: status %d (body read error: %v)", url, response.StatusCode, readErr))
				continue
			}
			trimmed := strings.TrimSpace(string(responseBody))
			if trimmed == "" {
				trimmed = response.Status
			}
			errs = append(errs, fmt.Sprintf("%s: status %d (%s)", url, response.StatusCode, trimmed))
			continue
		}
		s.logger.Debug("webhook delivered", "url", url, "alert_id", notification.AlertID)
	}
	if len(errs) > 0 {
		return fmt.Errorf("webhook delivery failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
