package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/thiagosluz/iflabcoletty-sub003/pkg/models"
)

// MessageData is the input of every catalogue template.
type MessageData struct {
	Hostname  string
	RuleName  string
	Metric    string
	Severity  string
	Software  string
	Version   string
	HasValue  bool
	ValueFmt  string // value with at most two decimals
	ThreshFmt string
}

type messageTemplate struct {
	title   *template.Template
	message *template.Template
}

func mustTemplate(eventType models.EventType, title, message string) messageTemplate {
	return messageTemplate{
		title:   template.Must(template.New(string(eventType) + ".title").Parse(title)),
		message: template.Must(template.New(string(eventType) + ".message").Parse(message)),
	}
}

// catalogue holds the title and message of every event type.
var catalogue = map[models.EventType]messageTemplate{
	models.EventComputerOnline: mustTemplate(models.EventComputerOnline,
		"Computador online",
		"O computador {{.Hostname}} voltou a ficar online."),
	models.EventComputerOffline: mustTemplate(models.EventComputerOffline,
		"Computador offline",
		"O computador {{.Hostname}} está offline."),
	models.EventSoftwareInstalled: mustTemplate(models.EventSoftwareInstalled,
		"Software instalado",
		"{{.Software}}{{if .Version}} {{.Version}}{{end}} foi instalado no computador {{.Hostname}}."),
	models.EventSoftwareRemoved: mustTemplate(models.EventSoftwareRemoved,
		"Software removido",
		"{{.Software}}{{if .Version}} {{.Version}}{{end}} foi removido do computador {{.Hostname}}."),
	models.EventHardwareCPUHigh: mustTemplate(models.EventHardwareCPUHigh,
		"Uso de CPU elevado",
		"O uso de CPU do computador {{.Hostname}} está em {{.ValueFmt}}% (limite: {{.ThreshFmt}}%)."),
	models.EventHardwareMemHigh: mustTemplate(models.EventHardwareMemHigh,
		"Uso de memória elevado",
		"O uso de memória do computador {{.Hostname}} está em {{.ValueFmt}}% (limite: {{.ThreshFmt}}%)."),
	models.EventHardwareDiskHigh: mustTemplate(models.EventHardwareDiskHigh,
		"Uso de disco elevado",
		"O uso de disco do computador {{.Hostname}} está em {{.ValueFmt}}% (limite: {{.ThreshFmt}}%)."),
	models.EventHardwareOffline: mustTemplate(models.EventHardwareOffline,
		"Computador sem comunicação",
		"{{if .HasValue}}O computador {{.Hostname}} não envia atividade há {{.ValueFmt}} minutos.{{else}}O computador {{.Hostname}} nunca enviou atividade.{{end}}"),
	models.EventHardwareThreshold: mustTemplate(models.EventHardwareThreshold,
		"Alerta: {{.RuleName}}",
		"A regra {{.RuleName}} disparou no computador {{.Hostname}}{{if .HasValue}} com valor {{.ValueFmt}}{{end}}."),
	models.EventAlertResolved: mustTemplate(models.EventAlertResolved,
		"Alerta resolvido",
		"O alerta {{.RuleName}} do computador {{.Hostname}} foi resolvido."),
}

// hardwareEvents picks the event of a metric alert from the rule's metric.
var hardwareEvents = map[string]models.EventType{
	"cpu_usage":    models.EventHardwareCPUHigh,
	"memory_usage": models.EventHardwareMemHigh,
	"disk_usage":   models.EventHardwareDiskHigh,
}

// HardwareEventType maps a rule to the event announced when it opens an alert.
func HardwareEventType(rule *models.AlertRule) models.EventType {
	switch rule.Type {
	case models.RuleTypeStatus:
		return models.EventHardwareOffline
	case models.RuleTypeMetric:
		if ev, ok := hardwareEvents[rule.Metric]; ok {
			return ev
		}
	}
	return models.EventHardwareThreshold
}

// Render returns the title and message of eventType for data.
func Render(eventType models.EventType, data MessageData) (title, message string, err error) {
	tmpl, ok := catalogue[eventType]
	if !ok {
		return "", "", fmt.Errorf("unknown event type %q", eventType)
	}
	var buf bytes.Buffer
	if err := tmpl.title.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("rendering %s title: %w", eventType, err)
	}
	title = buf.String()
	buf.Reset()
	if err := tmpl.message.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("rendering %s message: %w", eventType, err)
	}
	return title, buf.String(), nil
}
