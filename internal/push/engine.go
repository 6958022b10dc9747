package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/metrics"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/normalize"
)

// TokenStore is the token persistence the engine needs.
type TokenStore interface {
	CreateToken(ctx context.Context, token *data.NotificationToken) error
	FindToken(ctx context.Context, token string) (*data.NotificationToken, error)
	ListTokensByUsers(ctx context.Context, userIDs []int64) ([]*data.NotificationToken, error)
	ListTokens(ctx context.Context) ([]*data.NotificationToken, error)
	DeleteTokens(ctx context.Context, ids []int64) (int64, error)
}

// Engine sends notifications and keeps the token table clean.
type Engine struct {
	provider  Provider
	store     TokenStore
	log       zerolog.Logger
	metrics   *metrics.Metrics
	channelID string
}

// NewEngine returns an Engine. channelID is applied to notifications that do
// not set one. m may be nil.
func NewEngine(provider Provider, store TokenStore, log zerolog.Logger, m *metrics.Metrics, channelID string) *Engine {
	return &Engine{
		provider:  provider,
		store:     store,
		log:       log.With().Str("component", "push").Logger(),
		metrics:   m,
		channelID: channelID,
	}
}

// RegisterToken stores a device token for userID. Tokens are globally unique.
func (e *Engine) RegisterToken(ctx context.Context, userID int64, token string) (*data.NotificationToken, error) {
	token = normalize.PushToken(token)
	if token == "" {
		return nil, errs.Validation("token is required")
	}
	if !e.provider.ValidToken(token) {
		return nil, errs.Validation("token %q is not a valid push token", token)
	}

	if _, err := e.store.FindToken(ctx, token); err == nil {
		return nil, errs.Conflict("the token is already registered")
	} else if !errors.Is(err, data.ErrNotFound) {
		return nil, errs.Internal("find token", err)
	}

	nt := &data.NotificationToken{UserID: userID, Token: token}
	if err := e.store.CreateToken(ctx, nt); err != nil {
		if errors.Is(err, data.ErrDuplicate) {
			return nil, errs.Conflict("the token is already registered")
		}
		return nil, errs.Internal("create token", err)
	}
	e.log.Info().Int64("user_id", userID).Int64("token_id", nt.ID).Msg("push token registered")
	return nt, nil
}

// TokensFor returns the stored tokens of userIDs that the provider accepts.
func (e *Engine) TokensFor(ctx context.Context, userIDs ...int64) ([]*data.NotificationToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	tokens, err := e.store.ListTokensByUsers(ctx, userIDs)
	if err != nil {
		return nil, errs.Internal("list tokens", err)
	}
	return e.valid(tokens), nil
}

func (e *Engine) valid(tokens []*data.NotificationToken) []*data.NotificationToken {
	var out []*data.NotificationToken
	for _, t := range tokens {
		if !e.provider.ValidToken(t.Token) {
			e.log.Debug().Int64("token_id", t.ID).Int64("user_id", t.UserID).Msg("skipping malformed push token")
			continue
		}
		out = append(out, t)
	}
	return out
}

// Send is the first stage: push n to every token in provider-sized batches,
// one batch at a time, and classify the tickets. On a failed batch the tickets
// of the completed batches are returned together with a *BatchError.
func (e *Engine) Send(ctx context.Context, n Notification, tokens []*data.NotificationToken) (*TicketBatch, error) {
	if n.ChannelID == "" {
		n.ChannelID = e.channelID
	}
	batch := &TicketBatch{}
	chunks := chunk(tokens, e.provider.SendBatchSize())

	for k, c := range chunks {
		values := make([]string, len(c))
		for i, t := range c {
			values[i] = t.Token
		}

		tickets, err := e.provider.Send(ctx, n, values)
		if err == nil && len(tickets) != len(c) {
			err = fmt.Errorf("provider returned %d tickets for %d tokens", len(tickets), len(c))
		}
		if err != nil {
			e.metrics.BatchFailed()
			e.log.Error().Err(err).Int("batch", k+1).Int("batches", len(chunks)).Msg("push send batch failed")
			return batch, &BatchError{Stage: "send", Completed: k, Total: len(chunks), Err: err}
		}

		for i, ticket := range tickets {
			e.classifyTicket(batch, c[i], ticket)
		}
	}

	e.metrics.TicketsClassified("ok", len(batch.Valid))
	e.metrics.TicketsClassified("not_registered", len(batch.NotRegistered))
	e.metrics.TicketsClassified("error", len(batch.Errored))
	return batch, nil
}

func (e *Engine) classifyTicket(batch *TicketBatch, token *data.NotificationToken, t Ticket) {
	if t.Status != StatusError {
		batch.Valid = append(batch.Valid, TokenTicket{Token: token, Ticket: t})
		return
	}
	if t.Error == ErrDeviceNotRegistered {
		batch.NotRegistered = append(batch.NotRegistered, token)
		return
	}
	batch.Errored = append(batch.Errored, ShippingError{
		UserID: token.UserID,
		Token:  token.Token,
		Reason: Describe(t.Error),
	})
}

// Reconcile is the second stage: fetch receipts for the accepted tickets and
// classify them. A missing receipt counts as delivered but pending.
func (e *Engine) Reconcile(ctx context.Context, tb *TicketBatch) (*ReceiptBatch, error) {
	rb := &ReceiptBatch{}
	if tb == nil || len(tb.Valid) == 0 {
		return rb, nil
	}

	byID := make(map[string]*data.NotificationToken, len(tb.Valid))
	ids := make([]string, 0, len(tb.Valid))
	for _, tt := range tb.Valid {
		if tt.Ticket.ID == "" {
			// accepted without an id: nothing to reconcile
			rb.Delivered++
			rb.Pending++
			continue
		}
		byID[tt.Ticket.ID] = tt.Token
		ids = append(ids, tt.Ticket.ID)
	}

	chunks := chunk(ids, e.provider.ReceiptBatchSize())
	for k, c := range chunks {
		receipts, err := e.provider.Receipts(ctx, c)
		if err != nil {
			e.metrics.BatchFailed()
			e.log.Error().Err(err).Int("batch", k+1).Int("batches", len(chunks)).Msg("push receipt batch failed")
			return rb, &BatchError{Stage: "receipts", Completed: k, Total: len(chunks), Err: err}
		}

		for _, id := range c {
			token := byID[id]
			r, ok := receipts[id]
			switch {
			case !ok:
				rb.Delivered++
				rb.Pending++
			case r.Status != StatusError:
				rb.Delivered++
			case r.Error == ErrDeviceNotRegistered:
				rb.NotRegistered = append(rb.NotRegistered, token)
			default:
				reason := r.Message
				if reason == "" {
					reason = Describe(r.Error)
				}
				rb.Errored = append(rb.Errored, ShippingError{UserID: token.UserID, Token: token.Token, Reason: reason})
			}
		}
	}

	e.metrics.ReceiptsClassified("delivered", rb.Delivered)
	e.metrics.ReceiptsClassified("not_registered", len(rb.NotRegistered))
	e.metrics.ReceiptsClassified("error", len(rb.Errored))
	return rb, nil
}

// SendAndCleanUp runs both stages, deletes every token reported as not
// registered by either stage and reports the outcome. Nothing is retried. On a
// provider failure the report covers the completed batches and the tokens
// found so far are still deleted.
func (e *Engine) SendAndCleanUp(ctx context.Context, n Notification, tokens []*data.NotificationToken) (*Report, error) {
	report := &Report{}
	if len(tokens) == 0 {
		return report, nil
	}

	tb, err := e.Send(ctx, n, tokens)
	rb := &ReceiptBatch{}
	if err == nil {
		rb, err = e.Reconcile(ctx, tb)
	}

	report.Sent = len(tb.Valid) + len(tb.NotRegistered) + len(tb.Errored)
	report.Delivered = rb.Delivered
	report.ShippingErrors = append(append(report.ShippingErrors, tb.Errored...), rb.Errored...)
	report.TokensNotRegistered = union(tb.NotRegistered, rb.NotRegistered)

	if len(report.TokensNotRegistered) > 0 {
		ids := make([]int64, len(report.TokensNotRegistered))
		for i, t := range report.TokensNotRegistered {
			ids[i] = t.ID
		}
		removed, perr := e.store.DeleteTokens(ctx, ids)
		if perr != nil {
			e.log.Error().Err(perr).Int("tokens", len(ids)).Msg("failed to delete unregistered push tokens")
			if err == nil {
				err = errs.Internal("delete unregistered tokens", perr)
			}
		} else {
			e.metrics.TokensPruned(removed)
			e.log.Info().Int64("removed", removed).Msg("unregistered push tokens deleted")
		}
	}

	for _, se := range report.ShippingErrors {
		e.log.Warn().Int64("user_id", se.UserID).Str("reason", se.Reason).Msg("push shipping error")
	}
	return report, err
}

// NotifyUsers pushes n to every valid token of userIDs.
func (e *Engine) NotifyUsers(ctx context.Context, n Notification, userIDs []int64) (*Report, error) {
	tokens, err := e.TokensFor(ctx, userIDs...)
	if err != nil {
		return nil, err
	}
	return e.SendAndCleanUp(ctx, n, tokens)
}

// Broadcast pushes n to every stored valid token.
func (e *Engine) Broadcast(ctx context.Context, n Notification) (*Report, error) {
	tokens, err := e.store.ListTokens(ctx)
	if err != nil {
		return nil, errs.Internal("list tokens", err)
	}
	return e.SendAndCleanUp(ctx, n, e.valid(tokens))
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

func union(a, b []*data.NotificationToken) []*data.NotificationToken {
	seen := make(map[int64]bool, len(a)+len(b))
	var out []*data.NotificationToken
	for _, list := range [][]*data.NotificationToken{a, b} {
		for _, t := range list {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out
}
