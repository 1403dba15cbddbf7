// Package handler implements the action families behind the dispatcher:
// mail, calendar, drive and directory. Each family declares its descriptors
// (name, schema, handler, idempotency class) and the registry is built from
// those lists at startup.
package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/workspace-mcp/internal/action"
	"github.com/hal9000y/workspace-mcp/internal/render"
	"github.com/hal9000y/workspace-mcp/internal/schema"
)

const docBase = "https://github.com/hal9000y/workspace-mcp/blob/main/docs/actions.md#"

func docLink(name string) string {
	return docBase + strings.ReplaceAll(name, ".", "")
}

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

var folderLabels = map[string]string{
	"inbox":  "INBOX",
	"sent":   "SENT",
	"drafts": "DRAFT",
	"trash":  "TRASH",
	"spam":   "SPAM",
}

// MailService is the slice of the remote client the mail family needs.
type MailService interface {
	SendMessage(ctx context.Context, accountID, raw string) (*gmail.Message, error)
	ListMessages(ctx context.Context, accountID, query string, labelIDs []string, limit int64, pageToken string) ([]*gmail.Message, string, error)
	GetMessageMetadata(ctx context.Context, accountID, msgID string) (*gmail.Message, error)
	GetMessage(ctx context.Context, accountID, msgID string) (*gmail.Message, error)
	TrashMessage(ctx context.Context, accountID, msgID string) error
	DeleteMessage(ctx context.Context, accountID, msgID string) error
	ModifyMessage(ctx context.Context, accountID, msgID string, addLabels, removeLabels []string) error
}

type renderer interface {
	Render(name string, data map[string]any, theme string) (*render.Output, error)
	TemplateNames() []string
	ThemeNames() []string
}

// Mail implements the email.* actions.
type Mail struct {
	svc MailService
	rnd renderer
}

// NewMail creates the mail action family.
func NewMail(svc MailService, rnd renderer) *Mail {
	return &Mail{svc: svc, rnd: rnd}
}

// Descriptors enumerates the email.* actions.
func (h *Mail) Descriptors() []action.Descriptor {
	return []action.Descriptor{
		{Name: "email.send", Schema: h.sendSchema(), Handler: h.send},
		{Name: "email.list", Schema: h.listSchema(), Handler: h.list, Safe: true},
		{Name: "email.get", Schema: h.getSchema(), Handler: h.get, Safe: true},
		{Name: "email.delete", Schema: h.deleteSchema(), Handler: h.delete},
		{Name: "email.move", Schema: h.moveSchema(), Handler: h.move},
		{Name: "email.mark", Schema: h.markSchema(), Handler: h.mark},
	}
}

func (h *Mail) sendSchema() *schema.Schema {
	return &schema.Schema{
		Action: "email.send",
		Doc:    docLink("email.send"),
		Fields: []schema.Field{
			{Name: "to", Type: schema.AddressList, Required: true, Doc: "recipient address or list", Example: "a@b.com"},
			{Name: "cc", Type: schema.AddressList, Doc: "carbon-copy recipients"},
			{Name: "bcc", Type: schema.AddressList, Doc: "blind-copy recipients"},
			{Name: "subject", Type: schema.String, Required: true, MaxLen: 988, Doc: "subject line", Example: "Hi"},
			{Name: "body", Type: schema.String, Required: true, Doc: "message body; escaped unless body_html is set", Example: "See you tomorrow."},
			{Name: "body_html", Type: schema.Bool, Doc: "treat body as trusted HTML instead of escaping it"},
			{Name: "template", Type: schema.Enum, Values: h.rnd.TemplateNames(), Default: "message", Doc: "email template", Example: "message"},
			{Name: "data", Type: schema.Object, Doc: "extra template data fields"},
			{Name: "theme", Type: schema.Enum, Values: h.rnd.ThemeNames(), Default: render.DefaultTheme, Doc: "visual theme"},
		},
	}
}

// SendResult reports the remote identifiers plus how the body was rendered.
type SendResult struct {
	MessageID string     `json:"message_id"`
	ThreadID  string     `json:"thread_id,omitempty"`
	Rendering *Rendering `json:"rendering,omitempty"`
}

// Rendering describes the template pipeline outcome for one send.
type Rendering struct {
	Template string `json:"template"`
	Theme    string `json:"theme"`
	Inlined  bool   `json:"inlined"`
	Degraded bool   `json:"degraded,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func (h *Mail) send(ctx context.Context, accountID string, p schema.Params) (any, error) {
	subject := p.String("subject")
	body := p.String("body")
	tmplName := p.String("template")
	theme := p.String("theme")

	data := map[string]any{}
	for k, v := range p.Object("data") {
		data[k] = v
	}
	if _, ok := data["subject"]; !ok {
		data["subject"] = subject
	}
	if p.Bool("body_html") {
		data["body"] = render.Trusted(body)
	} else if _, ok := data["body"]; !ok {
		data["body"] = body
	}

	rendering := &Rendering{Template: tmplName, Theme: theme}

	msg := outgoingMessage{
		To:      p.StringList("to"),
		CC:      p.StringList("cc"),
		BCC:     p.StringList("bcc"),
		Subject: subject,
		Text:    body,
	}

	// A rendering failure degrades to plain text; it never fails the send.
	out, err := h.rnd.Render(tmplName, data, theme)
	if err != nil {
		log.Println(fmt.Errorf("rnd.Render failed, sending plain text: %w", err))
		rendering.Degraded = true
		rendering.Reason = err.Error()
	} else {
		msg.HTML = out.HTML
		msg.Text = out.Text
		rendering.Inlined = out.Inlined
	}

	sent, err := h.svc.SendMessage(ctx, accountID, encodeRFC822(msg))
	if err != nil {
		return nil, fmt.Errorf("svc.SendMessage failed: %w", err)
	}

	return SendResult{
		MessageID: sent.Id,
		ThreadID:  sent.ThreadId,
		Rendering: rendering,
	}, nil
}

func (h *Mail) listSchema() *schema.Schema {
	return &schema.Schema{
		Action: "email.list",
		Doc:    docLink("email.list"),
		Fields: []schema.Field{
			{Name: "folder", Type: schema.Enum, Values: []string{"inbox", "sent", "drafts", "trash", "spam", "all"}, Default: "inbox", Doc: "folder to list", Example: "inbox"},
			{Name: "query", Type: schema.String, MaxLen: 1024, Doc: "search query in Gmail syntax"},
			{Name: "limit", Type: schema.Int, Min: 1, Max: maxListLimit, Default: int64(defaultListLimit), Doc: "maximum messages to return", Example: 25},
			{Name: "page_token", Type: schema.String, Doc: "continuation token from a previous call"},
		},
	}
}

// MessageSummary carries the routing metadata of one message.
type MessageSummary struct {
	ID        string         `json:"id"`
	ThreadID  string         `json:"thread_id"`
	Timestamp string         `json:"timestamp,omitempty"`
	From      EmailAddress   `json:"from"`
	To        []EmailAddress `json:"to,omitempty"`
	CC        []EmailAddress `json:"cc,omitempty"`
	Subject   string         `json:"subject"`
	Snippet   string         `json:"snippet,omitempty"`
}

// ListResult is a page of message summaries.
type ListResult struct {
	Messages      []MessageSummary `json:"messages"`
	NextPageToken string           `json:"next_page_token,omitempty"`
	TotalResults  int              `json:"total_results"`
}

func (h *Mail) list(ctx context.Context, accountID string, p schema.Params) (any, error) {
	var labels []string
	if folder := p.String("folder"); folder != "all" {
		labels = []string{folderLabels[folder]}
	}

	stubs, nextToken, err := h.svc.ListMessages(ctx, accountID, p.String("query"), labels, p.Int("limit"), p.String("page_token"))
	if err != nil {
		return nil, fmt.Errorf("svc.ListMessages failed: %w", err)
	}

	messages := make([]MessageSummary, 0, len(stubs))
	for _, stub := range stubs {
		msg, err := h.svc.GetMessageMetadata(ctx, accountID, stub.Id)
		if err != nil {
			return nil, fmt.Errorf("get message %s failed: %w", stub.Id, err)
		}
		messages = append(messages, extractMessageSummary(msg))
	}

	return ListResult{
		Messages:      messages,
		NextPageToken: nextToken,
		TotalResults:  len(messages),
	}, nil
}

func (h *Mail) getSchema() *schema.Schema {
	return &schema.Schema{
		Action: "email.get",
		Doc:    docLink("email.get"),
		Fields: []schema.Field{
			{Name: "ids", Type: schema.StringList, Required: true, Doc: "message ID or list of IDs", Example: []string{"18c1f2a9b3d4e5f6"}},
		},
	}
}

// MessageContent is a full message with extracted bodies and attachments.
type MessageContent struct {
	Summary     MessageSummary `json:"summary"`
	BodyText    string         `json:"body_text,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// Attachment is attachment metadata; content retrieval is out of scope.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// GetResult holds the fetched messages.
type GetResult struct {
	Messages []MessageContent `json:"messages"`
}

func (h *Mail) get(ctx context.Context, accountID string, p schema.Params) (any, error) {
	ids := p.StringList("ids")
	messages := make([]MessageContent, 0, len(ids))

	for _, msgID := range ids {
		msg, err := h.svc.GetMessage(ctx, accountID, msgID)
		if err != nil {
			return nil, fmt.Errorf("get message %s failed: %w", msgID, err)
		}

		content := MessageContent{Summary: extractMessageSummary(msg)}
		if msg.Payload != nil {
			content.Attachments = extractAttachments(msg.Payload)

			textBody, htmlBody := extractMessageBodies(msg.Payload)
			if textBody != "" {
				content.BodyText = textBody
			} else if htmlBody != "" {
				content.BodyText = render.Textify(htmlBody)
			}
		}

		messages = append(messages, content)
	}

	return GetResult{Messages: messages}, nil
}

func (h *Mail) deleteSchema() *schema.Schema {
	return &schema.Schema{
		Action: "email.delete",
		Doc:    docLink("email.delete"),
		Fields: []schema.Field{
			{Name: "id", Type: schema.String, Required: true, MinLen: 1, Doc: "message ID", Example: "18c1f2a9b3d4e5f6"},
			{Name: "permanent", Type: schema.Bool, Default: false, Doc: "bypass the trash; cannot be undone"},
		},
	}
}

// MutationResult acknowledges a state-changing mail action.
type MutationResult struct {
	ID        string `json:"id"`
	Permanent bool   `json:"permanent,omitempty"`
	Folder    string `json:"folder,omitempty"`
	Read      *bool  `json:"read,omitempty"`
}

func (h *Mail) delete(ctx context.Context, accountID string, p schema.Params) (any, error) {
	msgID := p.String("id")
	permanent := p.Bool("permanent")

	if permanent {
		if err := h.svc.DeleteMessage(ctx, accountID, msgID); err != nil {
			return nil, fmt.Errorf("svc.DeleteMessage failed: %w", err)
		}
	} else {
		if err := h.svc.TrashMessage(ctx, accountID, msgID); err != nil {
			return nil, fmt.Errorf("svc.TrashMessage failed: %w", err)
		}
	}

	return MutationResult{ID: msgID, Permanent: permanent}, nil
}

func (h *Mail) moveSchema() *schema.Schema {
	// The permanent flag is deliberately absent here: it is only legal on
	// email.delete, and unknown fields fail validation.
	return &schema.Schema{
		Action: "email.move",
		Doc:    docLink("email.move"),
		Fields: []schema.Field{
			{Name: "id", Type: schema.String, Required: true, MinLen: 1, Doc: "message ID", Example: "18c1f2a9b3d4e5f6"},
			{Name: "folder", Type: schema.Enum, Values: []string{"inbox", "archive", "trash", "spam"}, Required: true, Doc: "destination folder", Example: "archive"},
		},
	}
}

func (h *Mail) move(ctx context.Context, accountID string, p schema.Params) (any, error) {
	msgID := p.String("id")
	folder := p.String("folder")

	var err error
	switch folder {
	case "trash":
		err = h.svc.TrashMessage(ctx, accountID, msgID)
	case "archive":
		err = h.svc.ModifyMessage(ctx, accountID, msgID, nil, []string{"INBOX"})
	case "spam":
		err = h.svc.ModifyMessage(ctx, accountID, msgID, []string{"SPAM"}, []string{"INBOX"})
	case "inbox":
		err = h.svc.ModifyMessage(ctx, accountID, msgID, []string{"INBOX"}, []string{"TRASH", "SPAM"})
	}
	if err != nil {
		return nil, fmt.Errorf("move to %s failed: %w", folder, err)
	}

	return MutationResult{ID: msgID, Folder: folder}, nil
}

func (h *Mail) markSchema() *schema.Schema {
	return &schema.Schema{
		Action: "email.mark",
		Doc:    docLink("email.mark"),
		Fields: []schema.Field{
			{Name: "id", Type: schema.String, Required: true, MinLen: 1, Doc: "message ID", Example: "18c1f2a9b3d4e5f6"},
			{Name: "read", Type: schema.Bool, Required: true, Doc: "true marks read, false marks unread", Example: true},
		},
	}
}

func (h *Mail) mark(ctx context.Context, accountID string, p schema.Params) (any, error) {
	msgID := p.String("id")
	read := p.Bool("read")

	var err error
	if read {
		err = h.svc.ModifyMessage(ctx, accountID, msgID, nil, []string{"UNREAD"})
	} else {
		err = h.svc.ModifyMessage(ctx, accountID, msgID, []string{"UNREAD"}, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("svc.ModifyMessage failed: %w", err)
	}

	return MutationResult{ID: msgID, Read: &read}, nil
}

func extractMessageSummary(msg *gmail.Message) MessageSummary {
	summary := MessageSummary{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}

	if msg.Payload != nil && msg.Payload.Headers != nil {
		extractHeadersToSummary(msg.Payload.Headers, &summary)
	}

	return summary
}

func extractHeadersToSummary(headers []*gmail.MessagePartHeader, summary *MessageSummary) {
	for _, header := range headers {
		switch header.Name {
		case "From":
			summary.From = parseEmailAddress(header.Value)
		case "To":
			summary.To = parseEmailAddressList(header.Value)
		case "Cc":
			summary.CC = parseEmailAddressList(header.Value)
		case "Subject":
			summary.Subject = header.Value
		case "Date":
			summary.Timestamp = header.Value
		}
	}
}

func extractMessageBodies(payload *gmail.MessagePart) (textBody, htmlBody string) {
	textBody, htmlBody = extractBodyFromPart(payload)

	for _, part := range payload.Parts {
		partText, partHTML := extractBodyFromPart(part)

		if textBody == "" {
			textBody = partText
		}
		if htmlBody == "" {
			htmlBody = partHTML
		}

		if len(part.Parts) > 0 {
			nestedText, nestedHTML := extractMessageBodies(part)
			if textBody == "" {
				textBody = nestedText
			}
			if htmlBody == "" {
				htmlBody = nestedHTML
			}
		}
	}

	return textBody, htmlBody
}

func extractBodyFromPart(part *gmail.MessagePart) (textBody, htmlBody string) {
	if part.Body == nil || part.Body.Data == "" {
		return "", ""
	}

	switch part.MimeType {
	case "text/plain":
		return decodeBase64URL(part.Body.Data), ""
	case "text/html":
		return "", decodeBase64URL(part.Body.Data)
	default:
		return "", ""
	}
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return data
		}
	}
	return string(decoded)
}

func extractAttachments(payload *gmail.MessagePart) []Attachment {
	var attachments []Attachment

	if payload.Body != nil && payload.Body.AttachmentId != "" {
		attachments = append(attachments, Attachment{
			ID:       payload.Body.AttachmentId,
			Filename: payload.Filename,
			MimeType: payload.MimeType,
			Size:     payload.Body.Size,
		})
	}

	for _, part := range payload.Parts {
		if part.Body != nil && part.Body.AttachmentId != "" {
			attachments = append(attachments, Attachment{
				ID:       part.PartId,
				Filename: part.Filename,
				MimeType: part.MimeType,
				Size:     part.Body.Size,
			})
		}

		if len(part.Parts) > 0 {
			attachments = append(attachments, extractAttachments(part)...)
		}
	}

	return attachments
}
