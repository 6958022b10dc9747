package push

import (
	"fmt"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
)

// ShippingError is a delivery failure the caller may want to surface.
type ShippingError struct {
	UserID int64  `json:"userId"`
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

// TokenTicket pairs an accepted ticket with the token it was issued for.
type TokenTicket struct {
	Token  *data.NotificationToken
	Ticket Ticket
}

// TicketBatch is the classified result of the send stage.
type TicketBatch struct {
	Valid         []TokenTicket
	NotRegistered []*data.NotificationToken
	Errored       []ShippingError
}

// ReceiptBatch is the classified result of the receipt stage. Delivered
// includes tickets whose receipt is not available yet.
type ReceiptBatch struct {
	Delivered     int
	Pending       int
	NotRegistered []*data.NotificationToken
	Errored       []ShippingError
}

// Report summarizes one SendAndCleanUp run.
type Report struct {
	Sent                int                       `json:"sent"`
	Delivered           int                       `json:"delivered"`
	TokensNotRegistered []*data.NotificationToken `json:"tokensNotRegistered"`
	ShippingErrors      []ShippingError           `json:"shippingErrors"`
}

// BatchError reports a provider call that failed outright. Batches before
// Completed went through and are not undone; later batches were not attempted.
type BatchError struct {
	Stage     string
	Completed int
	Total     int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("push %s batch %d/%d failed: %v", e.Stage, e.Completed+1, e.Total, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

func (e *BatchError) Kind() errs.Kind { return errs.KindTransientDelivery }
