package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/providerlab/internal/domain"
)

type tracedError struct {
	msg   string
	stack string
}

func (e *tracedError) Error() string { return e.msg }
func (e *tracedError) Stack() string { return e.stack }

type providerFailure struct {
	Message string
	Stack   string
}

type taggedFailure struct {
	Description string `json:"message"`
}

func TestErrorLogger_Record(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		failure     any
		wantMessage string
		wantStack   string
		wantUnknown string
	}{
		{
			name:        "error without stack",
			failure:     errors.New("token exchange failed"),
			wantMessage: "token exchange failed",
			wantStack:   domain.NoStackTrace,
		},
		{
			name:        "wrapped error keeps message",
			failure:     fmt.Errorf("refresh: %w", errors.New("invalid_grant")),
			wantMessage: "refresh: invalid_grant",
			wantStack:   domain.NoStackTrace,
		},
		{
			name:        "error with stack",
			failure:     &tracedError{msg: "boom", stack: "main.go:12"},
			wantMessage: "boom",
			wantStack:   "main.go:12",
		},
		{
			name:        "error-shaped map",
			failure:     map[string]any{"message": "denied", "stack": "at callback"},
			wantMessage: "denied",
			wantStack:   "at callback",
		},
		{
			name:        "error-shaped map without stack",
			failure:     map[string]any{"message": "denied"},
			wantMessage: "denied",
			wantStack:   domain.NoStackTrace,
		},
		{
			name:        "string map with message",
			failure:     map[string]string{"message": "denied"},
			wantMessage: "denied",
			wantStack:   domain.NoStackTrace,
		},
		{
			name:        "struct with message and stack",
			failure:     providerFailure{Message: "denied", Stack: "at exchange"},
			wantMessage: "denied",
			wantStack:   "at exchange",
		},
		{
			name:        "struct with tagged message",
			failure:     taggedFailure{Description: "rate limited"},
			wantMessage: "rate limited",
			wantStack:   domain.NoStackTrace,
		},
		{
			name:        "struct without message",
			failure:     struct{ Code int }{Code: 7},
			wantUnknown: `{"Code":7}`,
		},
		{
			name:        "plain object",
			failure:     map[string]any{"error": "access_denied"},
			wantUnknown: `{"error":"access_denied"}`,
		},
		{
			name:        "non-string message",
			failure:     map[string]any{"message": 42},
			wantUnknown: `{"message":42}`,
		},
		{
			name:        "string value",
			failure:     "something odd",
			wantUnknown: `"something odd"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeErrorLogStore{}
			l := NewErrorLogger(store, discardLogger(), 0)

			l.Record(ctx, tt.failure, "github")

			if tt.wantUnknown != "" {
				assert.Empty(t, store.errors)
				require.Len(t, store.unknown, 1)
				assert.JSONEq(t, tt.wantUnknown, store.unknown[0].Payload)
				assert.Equal(t, domain.ProviderID("github"), store.unknown[0].Provider)
				return
			}

			assert.Empty(t, store.unknown)
			require.Len(t, store.errors, 1)
			assert.Equal(t, tt.wantMessage, store.errors[0].Message)
			assert.Equal(t, tt.wantStack, store.errors[0].Stack)
			assert.Equal(t, domain.ProviderID("github"), store.errors[0].Provider)
		})
	}
}

func TestErrorLogger_RecordNil(t *testing.T) {
	store := &fakeErrorLogStore{}
	NewErrorLogger(store, discardLogger(), 0).Record(context.Background(), nil, "github")
	assert.Empty(t, store.errors)
	assert.Empty(t, store.unknown)
}

func TestErrorLogger_StoreFailureSwallowed(t *testing.T) {
	store := &fakeErrorLogStore{failing: true}
	l := NewErrorLogger(store, discardLogger(), 0)

	assert.NotPanics(t, func() {
		l.Record(context.Background(), errors.New("boom"), "github")
		l.Record(context.Background(), map[string]any{"code": 1}, "github")
	})
}

func TestErrorLogger_UnencodablePayload(t *testing.T) {
	store := &fakeErrorLogStore{}
	l := NewErrorLogger(store, discardLogger(), 0)

	l.Record(context.Background(), map[string]any{"ch": make(chan int)}, "github")
	require.Len(t, store.unknown, 1)
	assert.NotEmpty(t, store.unknown[0].Payload)
}

func TestErrorLogger_Dispatch(t *testing.T) {
	t.Run("does not block the caller", func(t *testing.T) {
		store := &fakeErrorLogStore{block: make(chan struct{})}
		l := NewErrorLogger(store, discardLogger(), time.Minute)

		ctx, cancel := context.WithCancel(context.Background())
		l.Dispatch(ctx, errors.New("slow"), "github")
		// Cancelling the caller must not abort the detached write.
		cancel()

		assert.Empty(t, store.errors)
		close(store.block)

		waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer waitCancel()
		require.NoError(t, l.Wait(waitCtx))

		logs, err := l.RecentErrors(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "slow", logs[0].Message)
	})

	t.Run("times out", func(t *testing.T) {
		store := &fakeErrorLogStore{block: make(chan struct{})}
		l := NewErrorLogger(store, discardLogger(), 20*time.Millisecond)

		l.Dispatch(context.Background(), map[string]any{"error": "x"}, "github")

		waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, l.Wait(waitCtx))

		unknown, err := l.RecentUnknown(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, unknown)
	})

	t.Run("wait honours its context", func(t *testing.T) {
		store := &fakeErrorLogStore{block: make(chan struct{})}
		defer close(store.block)
		l := NewErrorLogger(store, discardLogger(), time.Minute)

		l.Dispatch(context.Background(), errors.New("stuck"), "github")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
	})
}
