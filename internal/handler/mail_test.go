package handler_test

import (
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/workspace-mcp/internal/action"
	"github.com/hal9000y/workspace-mcp/internal/handler"
	"github.com/hal9000y/workspace-mcp/internal/render"
	"github.com/hal9000y/workspace-mcp/internal/schema"
)

type mailSvcMock struct {
	SendMessageFunc        func(ctx context.Context, accountID, raw string) (*gmail.Message, error)
	ListMessagesFunc       func(ctx context.Context, accountID, query string, labelIDs []string, limit int64, pageToken string) ([]*gmail.Message, string, error)
	GetMessageMetadataFunc func(ctx context.Context, accountID, msgID string) (*gmail.Message, error)
	GetMessageFunc         func(ctx context.Context, accountID, msgID string) (*gmail.Message, error)
	TrashMessageFunc       func(ctx context.Context, accountID, msgID string) error
	DeleteMessageFunc      func(ctx context.Context, accountID, msgID string) error
	ModifyMessageFunc      func(ctx context.Context, accountID, msgID string, addLabels, removeLabels []string) error
}

func (m *mailSvcMock) SendMessage(ctx context.Context, accountID, raw string) (*gmail.Message, error) {
	return m.SendMessageFunc(ctx, accountID, raw)
}

func (m *mailSvcMock) ListMessages(ctx context.Context, accountID, query string, labelIDs []string, limit int64, pageToken string) ([]*gmail.Message, string, error) {
	return m.ListMessagesFunc(ctx, accountID, query, labelIDs, limit, pageToken)
}

func (m *mailSvcMock) GetMessageMetadata(ctx context.Context, accountID, msgID string) (*gmail.Message, error) {
	return m.GetMessageMetadataFunc(ctx, accountID, msgID)
}

func (m *mailSvcMock) GetMessage(ctx context.Context, accountID, msgID string) (*gmail.Message, error) {
	return m.GetMessageFunc(ctx, accountID, msgID)
}

func (m *mailSvcMock) TrashMessage(ctx context.Context, accountID, msgID string) error {
	return m.TrashMessageFunc(ctx, accountID, msgID)
}

func (m *mailSvcMock) DeleteMessage(ctx context.Context, accountID, msgID string) error {
	return m.DeleteMessageFunc(ctx, accountID, msgID)
}

func (m *mailSvcMock) ModifyMessage(ctx context.Context, accountID, msgID string, addLabels, removeLabels []string) error {
	return m.ModifyMessageFunc(ctx, accountID, msgID, addLabels, removeLabels)
}

func newEngine(t *testing.T) *render.Engine {
	t.Helper()

	engine, err := render.NewEngine()
	require.NoError(t, err)

	return engine
}

// invoke validates raw params against the named descriptor and runs its
// handler, the same path the dispatcher takes.
func invoke(t *testing.T, descs []action.Descriptor, name string, raw map[string]any) (any, error) {
	t.Helper()

	for _, d := range descs {
		if d.Name != name {
			continue
		}
		p, err := d.Schema.Validate(raw)
		require.NoError(t, err)
		return d.Handler(context.Background(), "acct1", p)
	}

	t.Fatalf("descriptor %q not found", name)
	return nil, nil
}

func validationError(t *testing.T, descs []action.Descriptor, name string, raw map[string]any) *schema.Error {
	t.Helper()

	for _, d := range descs {
		if d.Name != name {
			continue
		}
		_, err := d.Schema.Validate(raw)
		require.Error(t, err)
		invalid, ok := err.(*schema.Error)
		require.True(t, ok, "expected *schema.Error, got %T", err)
		return invalid
	}

	t.Fatalf("descriptor %q not found", name)
	return nil
}

type sentMail struct {
	header mail.Header
	text   string
	html   string
}

// decodeSentMail unpacks the base64url raw message the Gmail endpoint
// receives back into headers and the alternative bodies.
func decodeSentMail(t *testing.T, raw string) sentMail {
	t.Helper()

	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(string(decoded)))
	require.NoError(t, err)

	out := sentMail{header: msg.Header}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)

	if mediaType == "text/plain" {
		body, err := io.ReadAll(msg.Body)
		require.NoError(t, err)
		out.text = string(body)
		return out
	}

	require.Equal(t, "multipart/alternative", mediaType)
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		encoded, err := io.ReadAll(part)
		require.NoError(t, err)
		body, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
		require.NoError(t, err)

		partType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		require.NoError(t, err)
		switch partType {
		case "text/plain":
			out.text = string(body)
		case "text/html":
			out.html = string(body)
		}
	}

	return out
}

func TestSendRendersAndEscapes(t *testing.T) {
	var rawSent string
	svc := &mailSvcMock{
		SendMessageFunc: func(_ context.Context, accountID, raw string) (*gmail.Message, error) {
			assert.Equal(t, "acct1", accountID)
			rawSent = raw
			return &gmail.Message{Id: "msg-1", ThreadId: "thr-1"}, nil
		},
	}
	descs := handler.NewMail(svc, newEngine(t)).Descriptors()

	out, err := invoke(t, descs, "email.send", map[string]any{
		"to":      []any{"A@Example.com", "b@example.com"},
		"cc":      "c@example.com",
		"subject": "Launch update",
		"body":    `Progress is <b>good</b> & on track.`,
	})
	require.NoError(t, err)

	result := out.(handler.SendResult)
	assert.Equal(t, "msg-1", result.MessageID)
	assert.Equal(t, "thr-1", result.ThreadID)
	require.NotNil(t, result.Rendering)
	assert.Equal(t, "message", result.Rendering.Template)
	assert.True(t, result.Rendering.Inlined)
	assert.False(t, result.Rendering.Degraded)

	sent := decodeSentMail(t, rawSent)
	assert.Equal(t, "a@example.com, b@example.com", sent.header.Get("To"))
	assert.Equal(t, "c@example.com", sent.header.Get("Cc"))

	assert.Contains(t, sent.html, "&lt;b&gt;good&lt;/b&gt;")
	assert.NotContains(t, sent.html, "<b>good</b>")
	assert.Contains(t, sent.text, "Progress is <b>good</b> & on track.")
}

func TestSendTrustedHTMLBody(t *testing.T) {
	var rawSent string
	svc := &mailSvcMock{
		SendMessageFunc: func(_ context.Context, _, raw string) (*gmail.Message, error) {
			rawSent = raw
			return &gmail.Message{Id: "msg-1"}, nil
		},
	}
	descs := handler.NewMail(svc, newEngine(t)).Descriptors()

	_, err := invoke(t, descs, "email.send", map[string]any{
		"to":        "a@example.com",
		"subject":   "Report",
		"body":      "<em>verbatim</em>",
		"body_html": true,
	})
	require.NoError(t, err)

	sent := decodeSentMail(t, rawSent)
	assert.Contains(t, sent.html, "<em>verbatim</em>")
}

type failingRenderer struct{}

func (failingRenderer) Render(string, map[string]any, string) (*render.Output, error) {
	return nil, render.ErrUnknownTemplate
}
func (failingRenderer) TemplateNames() []string { return []string{"message"} }
func (failingRenderer) ThemeNames() []string    { return []string{"light"} }

func TestSendDegradesToPlainTextOnRenderFailure(t *testing.T) {
	var rawSent string
	svc := &mailSvcMock{
		SendMessageFunc: func(_ context.Context, _, raw string) (*gmail.Message, error) {
			rawSent = raw
			return &gmail.Message{Id: "msg-1"}, nil
		},
	}
	descs := handler.NewMail(svc, failingRenderer{}).Descriptors()

	out, err := invoke(t, descs, "email.send", map[string]any{
		"to":      "a@example.com",
		"subject": "Report",
		"body":    "plain content",
	})
	require.NoError(t, err, "rendering failure never fails the send")

	result := out.(handler.SendResult)
	assert.True(t, result.Rendering.Degraded)
	assert.NotEmpty(t, result.Rendering.Reason)

	sent := decodeSentMail(t, rawSent)
	assert.Equal(t, "plain content", sent.text)
	assert.Empty(t, sent.html)
}

func TestListMapsFolderToLabel(t *testing.T) {
	svc := &mailSvcMock{
		ListMessagesFunc: func(_ context.Context, _, query string, labelIDs []string, limit int64, pageToken string) ([]*gmail.Message, string, error) {
			assert.Equal(t, []string{"SENT"}, labelIDs)
			assert.Equal(t, "from:bob", query)
			assert.Equal(t, int64(10), limit)
			assert.Equal(t, "page-1", pageToken)
			return []*gmail.Message{{Id: "m-1"}}, "page-2", nil
		},
		GetMessageMetadataFunc: func(_ context.Context, _, msgID string) (*gmail.Message, error) {
			return &gmail.Message{
				Id:       msgID,
				ThreadId: "thr-1",
				Snippet:  "hello there",
				Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
					{Name: "From", Value: "Bob <bob@example.com>"},
					{Name: "Subject", Value: "hello"},
				}},
			}, nil
		},
	}
	descs := handler.NewMail(svc, newEngine(t)).Descriptors()

	out, err := invoke(t, descs, "email.list", map[string]any{
		"folder":     "sent",
		"query":      "from:bob",
		"limit":      10,
		"page_token": "page-1",
	})
	require.NoError(t, err)

	result := out.(handler.ListResult)
	assert.Equal(t, "page-2", result.NextPageToken)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "bob@example.com", result.Messages[0].From.Email)
	assert.Equal(t, "Bob", result.Messages[0].From.Name)
	assert.Equal(t, "hello", result.Messages[0].Subject)
}

func TestListAllFoldersSendsNoLabels(t *testing.T) {
	svc := &mailSvcMock{
		ListMessagesFunc: func(_ context.Context, _, _ string, labelIDs []string, _ int64, _ string) ([]*gmail.Message, string, error) {
			assert.Nil(t, labelIDs)
			return nil, "", nil
		},
	}
	descs := handler.NewMail(svc, newEngine(t)).Descriptors()

	out, err := invoke(t, descs, "email.list", map[string]any{"folder": "all"})
	require.NoError(t, err)
	assert.Empty(t, out.(handler.ListResult).Messages)
}

func TestGetExtractsBodies(t *testing.T) {
	htmlBody := base64.URLEncoding.EncodeToString([]byte("<p>Hello <b>world</b></p>"))
	svc := &mailSvcMock{
		GetMessageFunc: func(_ context.Context, _, msgID string) (*gmail.Message, error) {
			return &gmail.Message{
				Id: msgID,
				Payload: &gmail.MessagePart{
					MimeType: "multipart/alternative",
					Headers:  []*gmail.MessagePartHeader{{Name: "Subject", Value: "greetings"}},
					Parts: []*gmail.MessagePart{
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: htmlBody}},
						{
							PartId:   "2",
							MimeType: "application/pdf",
							Filename: "report.pdf",
							Body:     &gmail.MessagePartBody{AttachmentId: "att-1", Size: 12345},
						},
					},
				},
			}, nil
		},
	}
	descs := handler.NewMail(svc, newEngine(t)).Descriptors()

	out, err := invoke(t, descs, "email.get", map[string]any{"ids": "m-1"})
	require.NoError(t, err)

	result := out.(handler.GetResult)
	require.Len(t, result.Messages, 1)

	msg := result.Messages[0]
	assert.Equal(t, "greetings", msg.Summary.Subject)
	assert.Equal(t, "Hello world", msg.BodyText, "HTML-only message falls back to the text rendition")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "report.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, int64(12345), msg.Attachments[0].Size)
}

func TestDeleteRouting(t *testing.T) {
	trashed, deleted := 0, 0
	svc := &mailSvcMock{
		TrashMessageFunc: func(_ context.Context, _, msgID string) error {
			trashed++
			assert.Equal(t, "m-1", msgID)
			return nil
		},
		DeleteMessageFunc: func(_ context.Context, _, msgID string) error {
			deleted++
			assert.Equal(t, "m-2", msgID)
			return nil
		},
	}
	descs := handler.NewMail(svc, newEngine(t)).Descriptors()

	out, err := invoke(t, descs, "email.delete", map[string]any{"id": "m-1"})
	require.NoError(t, err)
	assert.False(t, out.(handler.MutationResult).Permanent)

	out, err = invoke(t, descs, "email.delete", map[string]any{"id": "m-2", "permanent": true})
	require.NoError(t, err)
	assert.True(t, out.(handler.MutationResult).Permanent)

	assert.Equal(t, 1, trashed)
	assert.Equal(t, 1, deleted)
}

func TestMovePermanentIsRejected(t *testing.T) {
	descs := handler.NewMail(&mailSvcMock{}, newEngine(t)).Descriptors()

	invalid := validationError(t, descs, "email.move", map[string]any{
		"id":        "m-1",
		"folder":    "trash",
		"permanent": true,
	})

	require.Len(t, invalid.Violations, 1)
	assert.Equal(t, "permanent", invalid.Violations[0].Field)
}

func TestMoveLabelChanges(t *testing.T) {
	cases := []struct {
		folder string
		add    []string
		remove []string
	}{
		{folder: "archive", add: nil, remove: []string{"INBOX"}},
		{folder: "spam", add: []string{"SPAM"}, remove: []string{"INBOX"}},
		{folder: "inbox", add: []string{"INBOX"}, remove: []string{"TRASH", "SPAM"}},
	}

	for _, tc := range cases {
		t.Run(tc.folder, func(t *testing.T) {
			svc := &mailSvcMock{
				ModifyMessageFunc: func(_ context.Context, _, msgID string, addLabels, removeLabels []string) error {
					assert.Equal(t, "m-1", msgID)
					assert.Equal(t, tc.add, addLabels)
					assert.Equal(t, tc.remove, removeLabels)
					return nil
				},
			}
			descs := handler.NewMail(svc, newEngine(t)).Descriptors()

			out, err := invoke(t, descs, "email.move", map[string]any{"id": "m-1", "folder": tc.folder})
			require.NoError(t, err)
			assert.Equal(t, tc.folder, out.(handler.MutationResult).Folder)
		})
	}
}

func TestMoveToTrashUsesTrashEndpoint(t *testing.T) {
	trashed := 0
	svc := &mailSvcMock{
		TrashMessageFunc: func(_ context.Context, _, _ string) error {
			trashed++
			return nil
		},
	}
	descs := handler.NewMail(svc, newEngine(t)).Descriptors()

	_, err := invoke(t, descs, "email.move", map[string]any{"id": "m-1", "folder": "trash"})
	require.NoError(t, err)
	assert.Equal(t, 1, trashed)
}

func TestMarkTogglesUnreadLabel(t *testing.T) {
	var gotAdd, gotRemove []string
	svc := &mailSvcMock{
		ModifyMessageFunc: func(_ context.Context, _, _ string, addLabels, removeLabels []string) error {
			gotAdd, gotRemove = addLabels, removeLabels
			return nil
		},
	}
	descs := handler.NewMail(svc, newEngine(t)).Descriptors()

	_, err := invoke(t, descs, "email.mark", map[string]any{"id": "m-1", "read": true})
	require.NoError(t, err)
	assert.Nil(t, gotAdd)
	assert.Equal(t, []string{"UNREAD"}, gotRemove)

	_, err = invoke(t, descs, "email.mark", map[string]any{"id": "m-1", "read": false})
	require.NoError(t, err)
	assert.Equal(t, []string{"UNREAD"}, gotAdd)
	assert.Nil(t, gotRemove)
}
