package push

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogProvider accepts every non-blank token and only logs what it would
// send. It is the provider for local runs without push credentials.
type LogProvider struct {
	log zerolog.Logger
}

// NewLogProvider returns a LogProvider writing to log.
func NewLogProvider(log zerolog.Logger) *LogProvider {
	return &LogProvider{log: log.With().Str("component", "push.log").Logger()}
}

func (p *LogProvider) ValidToken(token string) bool {
	return token != "" && !strings.ContainsAny(token, " \t\r\n")
}

func (p *LogProvider) SendBatchSize() int { return 100 }

func (p *LogProvider) ReceiptBatchSize() int { return 1000 }

func (p *LogProvider) Send(ctx context.Context, n Notification, tokens []string) ([]Ticket, error) {
	tickets := make([]Ticket, len(tokens))
	for i, t := range tokens {
		tickets[i] = Ticket{ID: uuid.NewString(), Status: StatusOK}
		p.log.Info().
			Str("token", t).
			Str("ticket", tickets[i].ID).
			Str("title", n.Title).
			Str("body", n.Body).
			Msg("push notification")
	}
	return tickets, nil
}

func (p *LogProvider) Receipts(ctx context.Context, ids []string) (map[string]Receipt, error) {
	out := make(map[string]Receipt, len(ids))
	for _, id := range ids {
		out[id] = Receipt{Status: StatusOK}
	}
	return out, nil
}
