package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type transient struct{ err error }

func (t *transient) Error() string { return "batch failed: " + t.err.Error() }
func (t *transient) Kind() Kind    { return KindTransientDelivery }

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("missing %s", "payload"), KindValidation},
		{"not found", NotFound("thread %d not found", 7), KindNotFound},
		{"conflict", Conflict("already registered"), KindConflict},
		{"wrapped", fmt.Errorf("resolve: %w", NotFound("group")), KindNotFound},
		{"custom kinded", &transient{err: errors.New("503")}, KindTransientDelivery},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "thread 7 not found", PublicMessage(fmt.Errorf("ctx: %w", NotFound("thread %d not found", 7))))
	assert.Equal(t, "internal error", PublicMessage(Internal("save message", errors.New("connection reset"))))
	assert.Equal(t, "internal error", PublicMessage(errors.New("raw")))
	assert.False(t, Is(nil, KindNotFound))
}
