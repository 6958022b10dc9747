package chatv1

import (
	"time"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
)

// ChatStreamRequest is one inbound transport event.
type ChatStreamRequest struct {
	ThreadID    int64            `json:"threadId"`
	Text        string           `json:"text,omitempty"`
	Image       string           `json:"image,omitempty"`
	Audio       string           `json:"audio,omitempty"`
	File        string           `json:"file,omitempty"`
	FileName    string           `json:"fileName,omitempty"`
	MessageType data.MessageType `json:"messageType,omitempty"`
	// ClientRef is echoed on the ack or error frame for this event.
	ClientRef string `json:"clientRef,omitempty"`
}

// FrameType tags outbound frames.
type FrameType string

const (
	// FrameMessage carries a message delivered to a recipient.
	FrameMessage FrameType = "message"
	// FrameAck confirms to the sender that its event was persisted.
	FrameAck FrameType = "ack"
	// FrameError reports that an event was rejected.
	FrameError FrameType = "error"
)

// ErrorFrame describes a rejected event.
type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DeliveryWarning rides on an ack when the message was persisted but push
// notifications to offline recipients failed. Sent and Delivered count what
// got through before the failure.
type DeliveryWarning struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Sent      int    `json:"sent"`
	Delivered int    `json:"delivered"`
}

// ChatStreamResponse is one outbound frame. A live delivery is
// {type:"message", thread, message}.
type ChatStreamResponse struct {
	Type      FrameType           `json:"type"`
	Thread    *data.MessageThread `json:"thread,omitempty"`
	Message   *data.Message       `json:"message,omitempty"`
	ClientRef string              `json:"clientRef,omitempty"`
	Error     *ErrorFrame         `json:"error,omitempty"`
	Warning   *DeliveryWarning    `json:"warning,omitempty"`
}

// CreateThreadRequest targets exactly one of a user or a group.
type CreateThreadRequest struct {
	UserID  *int64 `json:"userId,omitempty"`
	GroupID *int64 `json:"groupId,omitempty"`
}

// CreateThreadResponse returns the resolved thread with its context.
type CreateThreadResponse struct {
	Thread *data.MessageThread `json:"thread"`
}

// RegisterPushTokenRequest registers a device push token for the caller.
type RegisterPushTokenRequest struct {
	Token string `json:"token"`
}

// RegisterPushTokenResponse echoes the stored token.
type RegisterPushTokenResponse struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListThreadsRequest pages through the caller's threads. Page is 1-based.
type ListThreadsRequest struct {
	Page     int32 `json:"page,omitempty"`
	PageSize int32 `json:"pageSize,omitempty"`
}

// ThreadSummary is one entry of a thread listing.
type ThreadSummary struct {
	Thread *data.MessageThread `json:"thread"`
	Title  string              `json:"title"`
	Avatar string              `json:"avatar,omitempty"`
}

// GetHistoryRequest asks for the latest messages of a thread.
type GetHistoryRequest struct {
	ThreadID int64 `json:"threadId"`
	Limit    int32 `json:"limit,omitempty"`
}
