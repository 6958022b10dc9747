// Package expo implements push.Provider against the Expo push service.
package expo

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/push"
)

const (
	// DefaultBaseURL is the public Expo API host.
	DefaultBaseURL = "https://exp.host"

	sendPath     = "/--/api/v2/push/send"
	receiptsPath = "/--/api/v2/push/getReceipts"

	sendBatchSize    = 100
	receiptBatchSize = 300
)

var uuidToken = regexp.MustCompile(`(?i)^[a-z\d]{8}-[a-z\d]{4}-[a-z\d]{4}-[a-z\d]{4}-[a-z\d]{12}$`)

// IsPushToken reports whether token looks like an Expo push token.
func IsPushToken(token string) bool {
	if (strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]") {
		return true
	}
	return uuidToken.MatchString(token)
}

// Client talks to the Expo push API.
type Client struct {
	http *resty.Client
}

var _ push.Provider = (*Client)(nil)

// New returns a Client. accessToken is optional and only needed when push
// security is enabled on the Expo project.
func New(baseURL, accessToken string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "ilinkon-realtime/1.0")
	if accessToken != "" {
		client.SetAuthToken(accessToken)
	}
	return &Client{http: client}
}

func (c *Client) ValidToken(token string) bool { return IsPushToken(token) }

func (c *Client) SendBatchSize() int { return sendBatchSize }

func (c *Client) ReceiptBatchSize() int { return receiptBatchSize }

type message struct {
	To        string         `json:"to"`
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Sound     string         `json:"sound,omitempty"`
	ChannelID string         `json:"channelId,omitempty"`
}

type details struct {
	Error string `json:"error,omitempty"`
}

type ticket struct {
	Status  string   `json:"status"`
	ID      string   `json:"id,omitempty"`
	Message string   `json:"message,omitempty"`
	Details *details `json:"details,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sendResponse struct {
	Data   []ticket   `json:"data"`
	Errors []apiError `json:"errors,omitempty"`
}

type receiptsResponse struct {
	Data   map[string]ticket `json:"data"`
	Errors []apiError        `json:"errors,omitempty"`
}

// Send posts one message per token in a single request.
func (c *Client) Send(ctx context.Context, n push.Notification, tokens []string) ([]push.Ticket, error) {
	msgs := make([]message, len(tokens))
	for i, t := range tokens {
		msgs[i] = message{
			To:        t,
			Title:     n.Title,
			Body:      n.Body,
			Data:      n.Data,
			Sound:     n.Sound,
			ChannelID: n.ChannelID,
		}
	}

	var result sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(msgs).
		SetResult(&result).
		Post(sendPath)
	if err != nil {
		return nil, fmt.Errorf("expo send: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("expo send API error (status %d): %s", resp.StatusCode(), resp.String())
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("expo send: %s: %s", result.Errors[0].Code, result.Errors[0].Message)
	}
	if len(result.Data) != len(tokens) {
		return nil, fmt.Errorf("expo send: got %d tickets for %d messages", len(result.Data), len(tokens))
	}

	out := make([]push.Ticket, len(result.Data))
	for i, t := range result.Data {
		out[i] = push.Ticket{ID: t.ID, Status: push.Status(t.Status), Message: t.Message, Error: t.errorCode()}
	}
	return out, nil
}

// Receipts fetches receipts for ids. Expo omits receipts it does not have yet.
func (c *Client) Receipts(ctx context.Context, ids []string) (map[string]push.Receipt, error) {
	var result receiptsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"ids": ids}).
		SetResult(&result).
		Post(receiptsPath)
	if err != nil {
		return nil, fmt.Errorf("expo receipts: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("expo receipts API error (status %d): %s", resp.StatusCode(), resp.String())
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("expo receipts: %s: %s", result.Errors[0].Code, result.Errors[0].Message)
	}

	out := make(map[string]push.Receipt, len(result.Data))
	for id, r := range result.Data {
		out[id] = push.Receipt{Status: push.Status(r.Status), Message: r.Message, Error: r.errorCode()}
	}
	return out, nil
}

func (t ticket) errorCode() string {
	if t.Details == nil {
		return ""
	}
	return t.Details.Error
}
