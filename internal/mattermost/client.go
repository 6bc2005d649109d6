package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const postsPath = "/api/v4/posts"

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 512

// Client posts to a Mattermost server as a bot.
type Client struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
}

func NewClient(baseURL, botToken string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		botToken:   botToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Post is the part of a Mattermost post an announcement fills in: the text
// and one coloured attachment.
type Post struct {
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
	Props     Props  `json:"props"`
}

type Props struct {
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	Color  string  `json:"color"`
	Fields []Field `json:"fields"`
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// CreatePost publishes post. The created post is not read back.
func (c *Client) CreatePost(ctx context.Context, post Post) error {
	body, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+postsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("create post: api error %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
