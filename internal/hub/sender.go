package hub

import (
	"sync"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
)

// SyncSender serializes writes to a transport that does not allow concurrent
// Send calls. The connection's own goroutine and deliveries from other
// connections share it.
type SyncSender struct {
	mu sync.Mutex
	s  Sender
}

// NewSyncSender wraps s.
func NewSyncSender(s Sender) *SyncSender {
	return &SyncSender{s: s}
}

func (l *SyncSender) Send(resp *chatv1.ChatStreamResponse) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Send(resp)
}
