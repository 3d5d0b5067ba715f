package slackclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/telhawk-systems/hotdog/internal/models"
)

// ErrTooLarge is returned when a download exceeds the configured limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Client downloads private files and posts replies with the bot access token.
type Client struct {
	api      *slack.Client
	maxBytes int64
}

// New creates a Slack client. apiURL must end with a slash; an empty value
// uses slack.APIURL. maxBytes caps downloads (0 disables the cap).
func New(accessToken, apiURL string, timeout time.Duration, maxBytes int64) *Client {
	if apiURL == "" {
		apiURL = slack.APIURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}

	return &Client{
		api: slack.New(accessToken,
			slack.OptionAPIURL(apiURL),
			slack.OptionHTTPClient(&http.Client{Timeout: timeout}),
		),
		maxBytes: maxBytes,
	}
}

// Download fetches a url_private file. The access token is sent as a bearer
// credential.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	w := &limitedWriter{limit: c.maxBytes}
	if err := c.api.GetFileContext(ctx, url, w); err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return w.buf.Bytes(), nil
}

// PostMessage posts msg.Text to msg.Channel via chat.postMessage. The text
// is sent unescaped.
func (c *Client) PostMessage(ctx context.Context, msg models.OutgoingMessage) error {
	_, _, err := c.api.PostMessageContext(ctx, msg.Channel, slack.MsgOptionText(msg.Text, false))
	if err != nil {
		return fmt.Errorf("chat.postMessage: %w", err)
	}
	return nil
}

// limitedWriter buffers at most limit bytes; limit <= 0 means unbounded.
type limitedWriter struct {
	buf   bytes.Buffer
	limit int64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.limit > 0 && int64(w.buf.Len()+len(p)) > w.limit {
		return 0, ErrTooLarge
	}
	return w.buf.Write(p)
}
