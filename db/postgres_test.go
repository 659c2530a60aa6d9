package db

import (
	"context"
	"testing"
	"time"

	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestRetryConflicts(t *testing.T) {
	serialization := &pq.Error{Code: codeSerializationFailure}
	deadlock := &pq.Error{Code: codeDeadlockDetected}

	tests := []struct {
		name      string
		retries   int
		failures  []error
		wantCalls int
		wantWaits int
		wantErr   error
	}{
		{"success first try", 2, nil, 1, 0, nil},
		{"recovers after a conflict", 2, []error{serialization}, 2, 1, nil},
		{"gives up without a final wait", 2, []error{serialization, deadlock, serialization, serialization}, 3, 2, game.ErrConflict},
		{"no retries", 0, []error{deadlock}, 1, 0, game.ErrConflict},
		{"other errors are not retried", 3, []error{game.ErrNotYourTurn}, 1, 0, game.ErrNotYourTurn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waits := 0
			s := NewPostgresStore(nil, tt.retries)
			s.backoff = func(int) time.Duration {
				waits++
				return 0
			}

			calls := 0
			err := s.retryConflicts(context.Background(), "m1", func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantWaits, waits)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRetryConflictsStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewPostgresStore(nil, 5)
	s.backoff = func(int) time.Duration { return time.Hour }

	calls := 0
	err := s.retryConflicts(ctx, "m1", func() error {
		calls++
		cancel()
		return &pq.Error{Code: codeSerializationFailure}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
