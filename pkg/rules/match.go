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

// Package rules evaluates user rules against events. Everything here is pure.
package rules

import (
	"regexp"
	"strings"

	"github.com/carverauto/ssm/pkg/models"
)

type compiledRule struct {
	rule     *models.Rule
	keywords []string
	sources  map[models.EventSource]bool
	pattern  *regexp.Regexp
}

// Match returns at most one alert per event, carrying every matched rule id
// and the highest severity among them. Events matching nothing produce no
// alert. Disabled rules, rules without predicates and rules with an invalid
// pattern never match.
func Match(events []models.SSMEvent, rules []models.Rule, templates []models.AlertTemplate) []models.SSMAlert {
	compiled := compile(rules)
	if len(compiled) == 0 {
		return nil
	}

	renderer := newRenderer(templates)
	alerts := make([]models.SSMAlert, 0)

	for i := range events {
		event := &events[i]

		var (
			matched  []string
			severity models.Severity
		)

		for _, c := range compiled {
			if !c.matches(event) {
				continue
			}

			matched = append(matched, c.rule.ID)
			severity = models.MaxSeverity(severity, c.rule.Severity)
		}

		if len(matched) == 0 {
			continue
		}

		if !severity.Valid() {
			severity = models.SeverityLow
		}

		alert := models.SSMAlert{
			EventID:      event.ID,
			MatchedRules: matched,
			Severity:     severity,
		}
		alert.Title, alert.Message = renderer.render(event, &alert)

		alerts = append(alerts, alert)
	}

	return alerts
}

func compile(rules []models.Rule) []*compiledRule {
	out := make([]*compiledRule, 0, len(rules))

	for i := range rules {
		r := &rules[i]
		if !r.IsEnabled() || !hasPredicate(r) {
			continue
		}

		c := &compiledRule{rule: r}

		for _, kw := range r.AllKeywords() {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				c.keywords = append(c.keywords, kw)
			}
		}

		if len(r.Sources) > 0 {
			c.sources = make(map[models.EventSource]bool, len(r.Sources))
			for _, s := range r.Sources {
				c.sources[s] = true
			}
		}

		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				continue
			}

			c.pattern = re
		}

		out = append(out, c)
	}

	return out
}

func hasPredicate(r *models.Rule) bool {
	for _, kw := range r.AllKeywords() {
		if strings.TrimSpace(kw) != "" {
			return true
		}
	}

	return r.SenderContains != "" || r.SubjectContains != "" || r.Pattern != ""
}

func (c *compiledRule) matches(event *models.SSMEvent) bool {
	if c.sources != nil && !c.sources[event.Source] {
		return false
	}

	if c.rule.SenderContains != "" && !containsFold(event.Metadata[models.MetaFrom], c.rule.SenderContains) {
		return false
	}

	if c.rule.SubjectContains != "" && !containsFold(subjectOf(event), c.rule.SubjectContains) {
		return false
	}

	if c.pattern != nil && !c.pattern.MatchString(event.Content) {
		return false
	}

	return c.matchKeywords(strings.ToLower(event.Content))
}

func (c *compiledRule) matchKeywords(content string) bool {
	if len(c.keywords) == 0 {
		return true
	}

	for _, kw := range c.keywords {
		found := strings.Contains(content, kw)

		if c.rule.MatchAll && !found {
			return false
		}

		if !c.rule.MatchAll && found {
			return true
		}
	}

	return c.rule.MatchAll
}

func subjectOf(event *models.SSMEvent) string {
	if s := event.Metadata[models.MetaSubject]; s != "" {
		return s
	}

	return event.Metadata[models.MetaSummary]
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
