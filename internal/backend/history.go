package backend

import (
	"context"
	"net/http"
)

// HistoryChat is one past conversation.
type HistoryChat struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Bot  string `json:"bot"`
}

type historyRequest struct {
	Token string `json:"token"`
}

// HistoryChat lists the conversations of the user owning token. Without a
// token no request is made and the result is empty.
func (c *Client) HistoryChat(ctx context.Context, token string) ([]HistoryChat, error) {
	if token == "" {
		return nil, nil
	}
	var chats []HistoryChat
	if err := c.do(ctx, http.MethodPost, "/history-chat", historyRequest{Token: token}, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}
