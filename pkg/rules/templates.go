/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package rules

import (
	"strings"
	"text/template"

	"github.com/carverauto/ssm/pkg/models"
)

const (
	defaultTitle = `[{{.Severity}}] {{if .Subject}}{{.Subject}}{{else}}{{.Source}} event{{end}}`
	defaultBody  = `{{.Source}} event {{.EventID}} matched {{.RuleCount}} rule(s): {{.Rules}}`

	previewLength = 200
)

// TemplateData is the value alert templates are executed against.
type TemplateData struct {
	EventID   string
	Source    string
	Severity  string
	Subject   string
	Sender    string
	Preview   string
	Rules     string
	RuleCount int
}

type compiledTemplate struct {
	title *template.Template
	body  *template.Template
}

type renderer struct {
	bySeverity map[models.Severity]*compiledTemplate
	fallback   *compiledTemplate
}

func newRenderer(templates []models.AlertTemplate) *renderer {
	r := &renderer{
		bySeverity: make(map[models.Severity]*compiledTemplate),
		fallback:   mustTemplate(defaultTitle, defaultBody),
	}

	for i := range templates {
		t := &templates[i]

		compiled, err := parseTemplate(t)
		if err != nil {
			continue
		}

		if t.Severity == "" {
			r.fallback = compiled
			continue
		}

		r.bySeverity[t.Severity] = compiled
	}

	return r
}

func (r *renderer) render(event *models.SSMEvent, alert *models.SSMAlert) (string, string) {
	data := &TemplateData{
		EventID:   event.ID,
		Source:    string(event.Source),
		Severity:  string(alert.Severity),
		Subject:   subjectOf(event),
		Sender:    event.Metadata[models.MetaFrom],
		Preview:   Preview(event.Body(), previewLength),
		Rules:     strings.Join(alert.MatchedRules, ", "),
		RuleCount: len(alert.MatchedRules),
	}

	if t, ok := r.bySeverity[alert.Severity]; ok {
		if title, body, err := t.execute(data); err == nil {
			return title, body
		}
	}

	title, body, err := r.fallback.execute(data)
	if err != nil {
		title, body, _ = mustTemplate(defaultTitle, defaultBody).execute(data)
	}

	return title, body
}

func (t *compiledTemplate) execute(data *TemplateData) (string, string, error) {
	var title, body strings.Builder

	if err := t.title.Execute(&title, data); err != nil {
		return "", "", err
	}

	if err := t.body.Execute(&body, data); err != nil {
		return "", "", err
	}

	return strings.TrimSpace(title.String()), strings.TrimSpace(body.String()), nil
}

func parseTemplate(t *models.AlertTemplate) (*compiledTemplate, error) {
	titleSrc, bodySrc := t.Title, t.Body
	if titleSrc == "" {
		titleSrc = defaultTitle
	}

	if bodySrc == "" {
		bodySrc = defaultBody
	}

	title, err := template.New("title").Option("missingkey=zero").Parse(titleSrc)
	if err != nil {
		return nil, err
	}

	body, err := template.New("body").Option("missingkey=zero").Parse(bodySrc)
	if err != nil {
		return nil, err
	}

	return &compiledTemplate{title: title, body: body}, nil
}

func mustTemplate(title, body string) *compiledTemplate {
	return &compiledTemplate{
		title: template.Must(template.New("title").Parse(title)),
		body:  template.Must(template.New("body").Parse(body)),
	}
}

// Preview truncates s to at most n runes, appending an ellipsis when cut.
func Preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n]) + "…"
}
