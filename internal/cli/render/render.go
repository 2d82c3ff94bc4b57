// Package render provides output rendering for the iflab-alerts CLI.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/thiagosluz/iflabcoletty-sub003/internal/alerts"
	"github.com/thiagosluz/iflabcoletty-sub003/internal/bus"
	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// Options configures the renderer
type Options struct {
	Format     string // text, table, json
	Color      bool   // Enable colored output
	TimeFormat string // Timestamp format: rfc3339, short, relative
}

// Renderer writes command results to an output stream.
type Renderer struct {
	opts Options
	w    io.Writer
	now  func() time.Time
}

// New creates a new renderer
func New(w io.Writer, opts Options) (*Renderer, error) {
	if opts.Format == "" {
		opts.Format = "text"
	}
	switch opts.Format {
	case "text", "table", "json":
	default:
		return nil, fmt.Errorf("unknown output format: %s (valid: text, json, table)", opts.Format)
	}
	return &Renderer{opts: opts, w: w, now: time.Now}, nil
}

// Render writes v in the configured format. JSON works for any value; text
// and table know the engine's result types.
func (r *Renderer) Render(v any) error {
	if r.opts.Format == "json" {
		encoder := json.NewEncoder(r.w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	}

	var rows [][]string
	switch val := v.(type) {
	case alerts.PassSummary:
		rows = [][]string{
			{"run", val.RunID},
			{"computers", strconv.Itoa(val.Computers)},
			{"opened", strconv.Itoa(val.Opened)},
			{"resolved", strconv.Itoa(val.Resolved)},
			{"skipped", strconv.Itoa(val.Skipped)},
			{"failed", strconv.Itoa(val.Failed)},
			{"errors", strconv.Itoa(val.Errors)},
			{"duration", val.Duration.Round(time.Millisecond).String()},
		}
	case alerts.ComputerResult:
		rows = [][]string{
			{"computer", strconv.FormatInt(int64(val.ComputerID), 10)},
			{"skipped", strconv.FormatBool(val.Skipped)},
			{"rules", strconv.Itoa(val.RulesEvaluated)},
			{"opened", strconv.Itoa(val.Opened)},
			{"resolved", strconv.Itoa(val.Resolved)},
			{"errors", strconv.Itoa(val.Errors)},
		}
	case alerts.StatusSummary:
		rows = [][]string{
			{"computers", strconv.Itoa(val.Computers)},
			{"online", strconv.Itoa(val.WentOnline)},
			{"offline", strconv.Itoa(val.WentOff)},
			{"skipped", strconv.Itoa(val.Skipped)},
			{"errors", strconv.Itoa(val.Errors)},
		}
	case *models.Alert:
		return r.renderAlert(val)
	case bus.Envelope:
		return r.renderEnvelope(val)
	default:
		return fmt.Errorf("cannot render %T as %s", v, r.opts.Format)
	}

	if r.opts.Format == "table" {
		return r.renderTable([]string{"field", "value"}, rows)
	}
	for _, row := range rows {
		fmt.Fprintf(r.w, "%-10s %s\n", r.dim(row[0]+":"), row[1])
	}
	return nil
}

func (r *Renderer) renderAlert(a *models.Alert) error {
	value := ""
	if a.TriggerValue != nil {
		value = formatValue(*a.TriggerValue)
	}
	if r.opts.Format == "table" {
		return r.renderTable(
			[]string{"id", "status", "severity", "title", "value", "created"},
			[][]string{{
				strconv.FormatInt(int64(a.ID), 10),
				string(a.Status),
				string(a.Severity),
				a.Title,
				value,
				r.formatTimestamp(a.CreatedAt),
			}},
		)
	}
	line := fmt.Sprintf("#%d %s %s %s", a.ID, r.styleSeverity(a.Severity), a.Status, a.Title)
	if value != "" {
		line += " (" + value + ")"
	}
	fmt.Fprintln(r.w, r.dim(r.formatTimestamp(a.CreatedAt))+" "+line)
	return nil
}

func (r *Renderer) renderEnvelope(env bus.Envelope) error {
	var payload struct {
		UserID  int64  `json:"user_id"`
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.Title == "" {
		fmt.Fprintf(r.w, "%s %s %s\n", r.dim(r.formatTimestamp(env.SentAt)), env.Type, string(env.Payload))
		return nil
	}
	fmt.Fprintf(r.w, "%s %s user=%d %s: %s\n",
		r.dim(r.formatTimestamp(env.SentAt)), r.styleEvent(env.Type), payload.UserID, payload.Title, payload.Message)
	return nil
}

// renderTable renders as a formatted table
func (r *Renderer) renderTable(headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers(headers...).
		Rows(rows...)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252"))
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if row%2 == 0 {
			return lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		}
		return lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	})

	_, err := fmt.Fprintln(r.w, t.Render())
	return err
}

var (
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func (r *Renderer) dim(s string) string {
	if !r.opts.Color {
		return s
	}
	return dimStyle.Render(s)
}

func (r *Renderer) styleSeverity(s models.Severity) string {
	label := strings.ToUpper(string(s))
	if !r.opts.Color {
		return label
	}
	switch s {
	case models.SeverityCritical:
		return criticalStyle.Render(label)
	case models.SeverityWarning:
		return warnStyle.Render(label)
	default:
		return infoStyle.Render(label)
	}
}

func (r *Renderer) styleEvent(eventType string) string {
	if !r.opts.Color {
		return eventType
	}
	switch {
	case strings.HasPrefix(eventType, "hardware."), eventType == string(models.EventComputerOffline):
		return warnStyle.Render(eventType)
	case eventType == string(models.EventAlertResolved), eventType == string(models.EventComputerOnline):
		return infoStyle.Render(eventType)
	default:
		return eventType
	}
}

func (r *Renderer) formatTimestamp(t time.Time) string {
	switch r.opts.TimeFormat {
	case "short":
		return t.Local().Format("01-02 15:04:05")
	case "time":
		return t.Local().Format("15:04:05")
	case "relative":
		return formatRelativeTime(r.now().Sub(t))
	default:
		return t.Format(time.RFC3339)
	}
}

func formatRelativeTime(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
