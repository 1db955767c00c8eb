package mail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Template names the notification emails the engine sends
type Template string

const (
	TemplateStaleOpportunities Template = "stale_opportunities"
	TemplateGoalMilestone      Template = "goal_milestone"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[Template]emailTemplate{
	TemplateStaleOpportunities: mustParse(TemplateStaleOpportunities,
		`You have {{len .Opportunities}} stale opportunit{{if eq (len .Opportunities) 1}}y{{else}}ies{{end}}`,
		`Hi {{.RecipientName}},

The following opportunities have been in their current stage for much longer than expected:
{{range .Opportunities}}
- {{.Name}} ({{.Stage}}): {{.DaysInStage}} days in stage, expected {{.ExpectedDays}}{{if .URL}}
  {{.URL}}{{end}}
{{end}}
Please update or close them.
`),
	TemplateGoalMilestone: mustParse(TemplateGoalMilestone,
		`Goal "{{.GoalName}}" reached {{.Milestone}}%`,
		`Hi {{.RecipientName}},

The goal "{{.GoalName}}" has reached the {{.Milestone}}% milestone.

Progress: {{.Progress}} of {{.Target}} ({{.Percent}}%)
Period: {{.PeriodStart}} to {{.PeriodEnd}}
`),
}

func mustParse(name Template, subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New(string(name) + ".subject").Parse(subject)),
		body:    template.Must(template.New(string(name) + ".body").Parse(body)),
	}
}

// Render produces the subject and plain-text body of a templated email
func Render(name Template, data map[string]interface{}) (string, string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("failed to render %s subject: %w", name, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to render %s body: %w", name, err)
	}
	return headerValue(subject.String()), body.String(), nil
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue folds line breaks so a rendered value stays on one header line
func headerValue(s string) string {
	return strings.TrimSpace(headerBreaks.Replace(s))
}
