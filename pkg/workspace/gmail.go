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

package workspace

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"

	"github.com/carverauto/ssm/pkg/credentials"
	"github.com/carverauto/ssm/pkg/models"
)

const (
	gmailUser        = "me"
	gmailMaxPageSize = 500
)

type gmailClient struct {
	svc     *gmail.Service
	limiter *rate.Limiter
}

func newGmailClient(svc *gmail.Service, limiter *rate.Limiter) *gmailClient {
	return &gmailClient{svc: svc, limiter: limiter}
}

// ListMessageIDs pages through matching message ids, newest first, until
// query.Max or the end of the listing when Max is zero.
func (c *gmailClient) ListMessageIDs(ctx context.Context, query credentials.MailQuery) ([]string, error) {
	q := gmailSearch(query)
	ids := make([]string, 0, query.Max)
	pageToken := ""

	for {
		call := c.svc.Users.Messages.List(gmailUser).Q(q).Context(ctx)

		pageSize := gmailMaxPageSize
		if query.Max > 0 {
			pageSize = min(query.Max-len(ids), gmailMaxPageSize)
		}

		call = call.MaxResults(int64(pageSize))

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return ids, fmt.Errorf("gmail list: %w", err)
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}

		pageToken = resp.NextPageToken

		if pageToken == "" || (query.Max > 0 && len(ids) >= query.Max) {
			return ids, nil
		}
	}
}

func gmailSearch(query credentials.MailQuery) string {
	terms := make([]string, 0, 2)

	if query.UnreadOnly {
		terms = append(terms, "is:unread")
	}

	if !query.After.IsZero() {
		terms = append(terms, fmt.Sprintf("after:%d", query.After.Unix()))
	}

	return strings.Join(terms, " ")
}

// GetMessage fetches one full message, paced by the per-user limiter.
func (c *gmailClient) GetMessage(ctx context.Context, id string) (*credentials.MailMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	msg, err := c.svc.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail get: %w", err)
	}

	out := &credentials.MailMessage{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		InternalDate: time.UnixMilli(msg.InternalDate).UTC(),
		Labels:       msg.LabelIds,
	}

	if msg.Payload == nil {
		return out, nil
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			out.From = h.Value
		case "subject":
			out.Subject = h.Value
		case "date":
			out.Date = h.Value
		case "message-id":
			out.MessageIDHeader = h.Value
		}
	}

	out.TextBody, out.HTMLBody = bodies(msg.Payload)

	return out, nil
}

// bodies returns the first text/plain and text/html parts, depth first.
func bodies(part *gmail.MessagePart) (string, string) {
	var text, html string

	var walk func(p *gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		if p == nil || (text != "" && html != "") {
			return
		}

		mediaType, _, _ := mime.ParseMediaType(p.MimeType)

		if p.Body != nil && p.Body.Data != "" {
			switch mediaType {
			case "text/plain":
				if text == "" {
					text = decodePart(p.Body.Data)
				}
			case "text/html":
				if html == "" {
					html = decodePart(p.Body.Data)
				}
			}
		}

		for _, child := range p.Parts {
			walk(child)
		}
	}

	walk(part)

	return text, html
}

func decodePart(data string) string {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}

	return string(raw)
}

// SendReply sends a plain-text reply in the original thread.
func (c *gmailClient) SendReply(ctx context.Context, reply *credentials.Reply) error {
	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(buildReply(reply))),
		ThreadId: reply.ThreadID,
	}

	if _, err := c.svc.Users.Messages.Send(gmailUser, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail send: %w: %w", models.ErrActionExecution, err)
	}

	return nil
}

func buildReply(reply *credentials.Reply) string {
	var b strings.Builder

	header := func(name, value string) {
		if value == "" {
			return
		}

		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(headerValue(value))
		b.WriteString("\r\n")
	}

	header("To", reply.To)
	header("Subject", mime.QEncoding.Encode("utf-8", reply.Subject))
	header("In-Reply-To", reply.InReplyTo)
	header("References", reply.InReplyTo)
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "8bit")

	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(reply.Body, "\r\n", "\n"), "\n", "\r\n"))

	return b.String()
}

// headerValue drops line breaks so values cannot inject headers.
func headerValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
