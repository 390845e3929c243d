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
	"fmt"
	"regexp"
	"strings"

	"github.com/carverauto/ssm/pkg/models"
)

const maxRules = 100

// Validate checks rule shape for a sync request.
func Validate(rules []models.Rule) error {
	var errs models.ValidationErrors

	if len(rules) == 0 {
		return append(errs, &models.ValidationError{Field: "rules", Reason: "at least one rule is required"})
	}

	if len(rules) > maxRules {
		errs = append(errs, &models.ValidationError{Field: "rules", Reason: fmt.Sprintf("at most %d rules", maxRules)})
	}

	seen := make(map[string]bool, len(rules))

	for i := range rules {
		r := &rules[i]
		field := fmt.Sprintf("rules[%d]", i)

		switch {
		case strings.TrimSpace(r.ID) == "":
			errs = append(errs, &models.ValidationError{Field: field + ".id", Reason: "required"})
		case seen[r.ID]:
			errs = append(errs, &models.ValidationError{Field: field + ".id", Reason: "duplicate"})
		}

		seen[r.ID] = true

		if !r.Severity.Valid() {
			errs = append(errs, &models.ValidationError{Field: field + ".severity", Reason: "must be low, medium, high or critical"})
		}

		if !hasPredicate(r) {
			errs = append(errs, &models.ValidationError{Field: field, Reason: "needs at least one predicate"})
		}

		if r.Pattern != "" {
			if _, err := regexp.Compile(r.Pattern); err != nil {
				errs = append(errs, &models.ValidationError{Field: field + ".pattern", Reason: "invalid regular expression"})
			}
		}

		for _, s := range r.Sources {
			if s != models.SourceEmail && s != models.SourceCalendar {
				errs = append(errs, &models.ValidationError{Field: field + ".sources", Reason: "unknown source " + string(s)})
			}
		}
	}

	return errs.Err()
}

// ValidateConfig checks a whole config before it is encrypted.
func ValidateConfig(cfg *models.ServerConfig) error {
	if cfg == nil {
		return &models.ValidationError{Field: "config", Reason: "required"}
	}

	var errs models.ValidationErrors

	if err := Validate(cfg.Rules); err != nil {
		if v, ok := err.(models.ValidationErrors); ok {
			errs = append(errs, v...)
		}
	}

	for i := range cfg.AlertTemplates {
		t := &cfg.AlertTemplates[i]
		field := fmt.Sprintf("alert_templates[%d]", i)

		if t.Severity != "" && !t.Severity.Valid() {
			errs = append(errs, &models.ValidationError{Field: field + ".severity", Reason: "unknown severity"})
		}

		if _, err := parseTemplate(t); err != nil {
			errs = append(errs, &models.ValidationError{Field: field, Reason: "template does not parse"})
		}
	}

	if ar := cfg.AutoReply; ar != nil && ar.Enabled {
		if strings.TrimSpace(ar.Body) == "" {
			errs = append(errs, &models.ValidationError{Field: "auto_reply.body", Reason: "required when enabled"})
		}

		if ar.MaxPerWindow < 0 || ar.WindowMinutes < 0 {
			errs = append(errs, &models.ValidationError{Field: "auto_reply", Reason: "limits must not be negative"})
		}
	}

	if sink := cfg.SpreadsheetSink; sink != nil && sink.Enabled {
		if strings.TrimSpace(sink.SheetName) == "" && sink.SpreadsheetID == "" {
			errs = append(errs, &models.ValidationError{Field: "spreadsheet_sink.sheet_name", Reason: "required when enabled"})
		}

		errs = append(errs, validateColumns(sink.Columns)...)
	}

	if cfg.PollingSettings.IntervalMinutes < 0 {
		errs = append(errs, &models.ValidationError{Field: "polling_settings.interval_minutes", Reason: "must not be negative"})
	}

	return errs.Err()
}

func validateColumns(columns []models.SheetColumn) models.ValidationErrors {
	known := make(map[models.SheetField]bool, len(models.KnownSheetFields))
	for _, f := range models.KnownSheetFields {
		known[f] = true
	}

	var errs models.ValidationErrors

	for i, col := range columns {
		if !known[col.Field] {
			errs = append(errs, &models.ValidationError{
				Field:  fmt.Sprintf("spreadsheet_sink.columns[%d].field", i),
				Reason: "unknown field " + string(col.Field),
			})
		}
	}

	return errs
}
