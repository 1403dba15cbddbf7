package gclient

import (
	"context"
	"fmt"

	"google.golang.org/api/gmail/v1"
)

const gmailUserID = "me"

func (c *Client) newGmail(ctx context.Context, accountID string) (*gmail.Service, error) {
	svc, err := gmail.NewService(ctx, c.apiOptions(ctx, accountID)...)
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}
	return svc, nil
}

// SendMessage sends a raw RFC822 message (base64url-encoded) and returns the
// created message.
func (c *Client) SendMessage(ctx context.Context, accountID, raw string) (*gmail.Message, error) {
	return call(ctx, c.policy, "gmail.send", func(ctx context.Context) (*gmail.Message, error) {
		svc, err := c.newGmail(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return svc.Users.Messages.Send(gmailUserID, &gmail.Message{Raw: raw}).Context(ctx).Do()
	})
}

// ListMessages lists message stubs, following pagination continuation
// tokens until limit results are collected or pages run out. The returned
// token resumes after the last collected message.
func (c *Client) ListMessages(ctx context.Context, accountID, query string, labelIDs []string, limit int64, pageToken string) ([]*gmail.Message, string, error) {
	var messages []*gmail.Message

	for {
		remaining := limit - int64(len(messages))
		if remaining <= 0 {
			return messages, pageToken, nil
		}

		result, err := call(ctx, c.policy, "gmail.list", func(ctx context.Context) (*gmail.ListMessagesResponse, error) {
			svc, err := c.newGmail(ctx, accountID)
			if err != nil {
				return nil, err
			}
			req := svc.Users.Messages.List(gmailUserID).
				Q(query).
				PageToken(pageToken).
				MaxResults(remaining).
				Context(ctx)
			if len(labelIDs) > 0 {
				req = req.LabelIds(labelIDs...)
			}
			return req.Do()
		})
		if err != nil {
			return nil, "", err
		}

		messages = append(messages, result.Messages...)
		pageToken = result.NextPageToken
		if pageToken == "" {
			return messages, "", nil
		}
	}
}

// GetMessageMetadata fetches routing headers only.
func (c *Client) GetMessageMetadata(ctx context.Context, accountID, msgID string) (*gmail.Message, error) {
	return call(ctx, c.policy, "gmail.get", func(ctx context.Context) (*gmail.Message, error) {
		svc, err := c.newGmail(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return svc.Users.Messages.Get(gmailUserID, msgID).
			Format("METADATA").
			MetadataHeaders("From", "To", "Cc", "Subject", "Date").
			Context(ctx).
			Do()
	})
}

// GetMessage fetches the full message including the MIME part tree.
func (c *Client) GetMessage(ctx context.Context, accountID, msgID string) (*gmail.Message, error) {
	return call(ctx, c.policy, "gmail.get", func(ctx context.Context) (*gmail.Message, error) {
		svc, err := c.newGmail(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return svc.Users.Messages.Get(gmailUserID, msgID).Context(ctx).Do()
	})
}

// TrashMessage moves a message to the trash.
func (c *Client) TrashMessage(ctx context.Context, accountID, msgID string) error {
	_, err := call(ctx, c.policy, "gmail.trash", func(ctx context.Context) (*gmail.Message, error) {
		svc, err := c.newGmail(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return svc.Users.Messages.Trash(gmailUserID, msgID).Context(ctx).Do()
	})
	return err
}

// DeleteMessage permanently deletes a message, bypassing the trash.
func (c *Client) DeleteMessage(ctx context.Context, accountID, msgID string) error {
	_, err := call(ctx, c.policy, "gmail.delete", func(ctx context.Context) (struct{}, error) {
		svc, err := c.newGmail(ctx, accountID)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, svc.Users.Messages.Delete(gmailUserID, msgID).Context(ctx).Do()
	})
	return err
}

// ModifyMessage adds and removes labels on a message.
func (c *Client) ModifyMessage(ctx context.Context, accountID, msgID string, addLabels, removeLabels []string) error {
	_, err := call(ctx, c.policy, "gmail.modify", func(ctx context.Context) (*gmail.Message, error) {
		svc, err := c.newGmail(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return svc.Users.Messages.Modify(gmailUserID, msgID, &gmail.ModifyMessageRequest{
			AddLabelIds:    addLabels,
			RemoveLabelIds: removeLabels,
		}).Context(ctx).Do()
	})
	return err
}
