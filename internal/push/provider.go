// Package push delivers notifications to device tokens through a push
// provider in two stages: tickets on send, receipts on reconciliation. Tokens
// the provider reports as unregistered are deleted afterwards.
package push

import "context"

// Notification is the content pushed to every target token.
type Notification struct {
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Sound     string         `json:"sound,omitempty"`
	ChannelID string         `json:"channelId,omitempty"`
}

// Status is the outcome carried by a ticket or receipt.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Provider error codes.
const (
	ErrDeviceNotRegistered = "DeviceNotRegistered"
	ErrMessageTooBig       = "MessageTooBig"
	ErrMessageRateExceeded = "MessageRateExceeded"
	ErrInvalidCredentials  = "InvalidCredentials"
)

// Ticket acknowledges one send. ID is used to fetch the receipt later.
type Ticket struct {
	ID      string
	Status  Status
	Message string
	// Error is the provider's error code when Status is StatusError.
	Error string
}

// Receipt is the provider's final word on one ticket.
type Receipt struct {
	Status  Status
	Message string
	Error   string
}

// Provider is a push service.
type Provider interface {
	// ValidToken reports whether token has the provider's format.
	ValidToken(token string) bool
	// SendBatchSize is the maximum number of tokens per Send call.
	SendBatchSize() int
	// ReceiptBatchSize is the maximum number of ticket ids per Receipts call.
	ReceiptBatchSize() int
	// Send pushes n to each token and returns one ticket per token, in order.
	Send(ctx context.Context, n Notification, tokens []string) ([]Ticket, error)
	// Receipts fetches receipts by ticket id. Receipts not yet available are
	// absent from the result.
	Receipts(ctx context.Context, ids []string) (map[string]Receipt, error)
}

// Describe turns a provider error code into a human-readable reason.
func Describe(code string) string {
	switch code {
	case ErrMessageTooBig:
		return "Notification data size exceeded allowed limit (4096 bytes)."
	case ErrMessageRateExceeded:
		return "Too many notifications have been sent to this device in a short time. Try again later."
	case ErrInvalidCredentials:
		return "Invalid notification push credentials."
	default:
		return "Unknown error."
	}
}
