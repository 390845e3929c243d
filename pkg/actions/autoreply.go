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

package actions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
)

// Outcome is the result of one auto-reply attempt. Rate limiting is an
// outcome, not an error.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
)

// Skip and failure reasons. They never carry addresses or content.
const (
	ReasonDisabled      = "disabled"
	ReasonNotEmail      = "not_email"
	ReasonNoSender      = "no_sender"
	ReasonNoReplySender = "no_reply_sender"
	ReasonSeverity      = "severity_filtered"
	ReasonCounter       = "counter_unavailable"
	ReasonSend          = "send_failed"
)

var noReplyMarkers = []string{"noreply", "no-reply", "no_reply", "donotreply", "do-not-reply", "mailer-daemon", "postmaster"}

// ReplyResult records what happened for one alert.
type ReplyResult struct {
	EventID string
	Outcome Outcome
	Reason  string
	Err     error
}

// ReplySummary aggregates a batch.
type ReplySummary struct {
	Sent        int
	RateLimited int
	Failed      int
	Skipped     int
	Errors      []error
}

// RateLimit is the fallback window used when a node does not set one.
type RateLimit struct {
	MaxPerWindow int
	Window       time.Duration
}

// AutoReplier sends the configured reply to the sender of an alerting email,
// at most MaxPerWindow times per (user, recipient) window.
type AutoReplier struct {
	counter  RateCounter
	defaults RateLimit
	logger   logger.Logger
	now      func() time.Time
}

// NewAutoReplier returns an AutoReplier backed by counter.
func NewAutoReplier(counter RateCounter, defaults RateLimit, log logger.Logger) *AutoReplier {
	if defaults.MaxPerWindow <= 0 {
		defaults.MaxPerWindow = 3
	}

	if defaults.Window <= 0 {
		defaults.Window = time.Hour
	}

	return &AutoReplier{
		counter:  counter,
		defaults: defaults,
		logger:   log,
		now:      time.Now,
	}
}

// SetClock overrides the clock used for window boundaries.
func (a *AutoReplier) SetClock(now func() time.Time) {
	a.now = now
}

// ReplyAll attempts one reply per alert. Failures are collected and never
// abort the batch.
func (a *AutoReplier) ReplyAll(
	ctx context.Context,
	client credentials.MailClient,
	userID string,
	settings *models.AutoReplySettings,
	events map[string]*models.SSMEvent,
	alerts []models.SSMAlert,
) ReplySummary {
	var summary ReplySummary

	for i := range alerts {
		alert := &alerts[i]

		event, ok := events[alert.EventID]
		if !ok {
			continue
		}

		res := a.Reply(ctx, client, userID, settings, event, alert)

		switch res.Outcome {
		case OutcomeSent:
			summary.Sent++
		case OutcomeRateLimited:
			summary.RateLimited++
		case OutcomeFailed:
			summary.Failed++
			summary.Errors = append(summary.Errors, res.Err)
		case OutcomeSkipped:
			summary.Skipped++
		}
	}

	if summary.Sent+summary.RateLimited+summary.Failed > 0 {
		a.logger.Info().
			Int("sent", summary.Sent).
			Int("rate_limited", summary.RateLimited).
			Int("failed", summary.Failed).
			Int("skipped", summary.Skipped).
			Msg("Auto-reply batch complete")
	}

	return summary
}

// Reply handles a single (event, alert) pair.
func (a *AutoReplier) Reply(
	ctx context.Context,
	client credentials.MailClient,
	userID string,
	settings *models.AutoReplySettings,
	event *models.SSMEvent,
	alert *models.SSMAlert,
) ReplyResult {
	res := ReplyResult{EventID: event.ID, Outcome: OutcomeSkipped}

	switch {
	case settings == nil || !settings.Enabled:
		res.Reason = ReasonDisabled
		return res
	case event.Type != models.EventTypeEmail:
		res.Reason = ReasonNotEmail
		return res
	case !severityAllowed(settings.Severities, alert.Severity):
		res.Reason = ReasonSeverity
		return res
	}

	recipient := SenderAddress(event.Metadata[models.MetaFrom])
	if recipient == "" {
		res.Reason = ReasonNoSender
		return res
	}

	if IsNoReply(recipient) {
		res.Reason = ReasonNoReplySender
		return res
	}

	limit, window := a.limits(settings)

	count, err := a.counter.Increment(ctx, CounterKey(userID, recipient, a.now(), window), window)
	if err != nil {
		res.Outcome, res.Reason = OutcomeFailed, ReasonCounter
		res.Err = fmt.Errorf("auto-reply %s: %w: %w", event.ID, models.ErrActionExecution, err)

		return res
	}

	if count > int64(limit) {
		res.Outcome = OutcomeRateLimited

		a.logger.Debug().Str("event_id", event.ID).Int64("count", count).Msg("Auto-reply rate limited")

		return res
	}

	reply := &credentials.Reply{
		ThreadID:  event.Metadata[models.MetaThreadID],
		InReplyTo: event.Metadata[models.MetaMessageID],
		To:        recipient,
		Subject:   replySubject(settings.Subject, event.Metadata[models.MetaSubject]),
		Body:      settings.Body,
	}

	if err := client.SendReply(ctx, reply); err != nil {
		res.Outcome, res.Reason = OutcomeFailed, ReasonSend
		res.Err = fmt.Errorf("auto-reply %s: %w: %w", event.ID, models.ErrActionExecution, err)

		a.logger.Warn().
			Str("event_id", event.ID).
			Str("error_class", models.ErrorClass(res.Err)).
			Msg("Auto-reply send failed")

		return res
	}

	res.Outcome = OutcomeSent

	return res
}

func (a *AutoReplier) limits(settings *models.AutoReplySettings) (int, time.Duration) {
	limit, window := a.defaults.MaxPerWindow, a.defaults.Window

	if settings.MaxPerWindow > 0 {
		limit = settings.MaxPerWindow
	}

	if settings.WindowMinutes > 0 {
		window = time.Duration(settings.WindowMinutes) * time.Minute
	}

	return limit, window
}

// CounterKey buckets replies by user, hashed recipient and window start.
func CounterKey(userID, recipient string, now time.Time, window time.Duration) string {
	sum := sha256.Sum256([]byte(strings.ToLower(recipient)))
	start := now.Truncate(window).Unix()

	return userID + "|" + hex.EncodeToString(sum[:16]) + "|" + strconv.FormatInt(start, 10)
}

// SenderAddress extracts the bare address from a From header.
func SenderAddress(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}

	addr, err := mail.ParseAddress(from)
	if err != nil {
		if strings.Contains(from, "@") && !strings.ContainsAny(from, " <>") {
			return strings.ToLower(from)
		}

		return ""
	}

	return strings.ToLower(addr.Address)
}

// IsNoReply reports whether an address belongs to an automated sender.
func IsNoReply(address string) bool {
	local, _, _ := strings.Cut(strings.ToLower(address), "@")

	for _, marker := range noReplyMarkers {
		if strings.Contains(local, marker) {
			return true
		}
	}

	return false
}

func severityAllowed(filter []models.Severity, s models.Severity) bool {
	if len(filter) == 0 {
		return true
	}

	for _, f := range filter {
		if f == s {
			return true
		}
	}

	return false
}

func replySubject(configured, original string) string {
	if configured != "" {
		return configured
	}

	if original == "" {
		return "Re:"
	}

	if strings.HasPrefix(strings.ToLower(original), "re:") {
		return original
	}

	return "Re: " + original
}
