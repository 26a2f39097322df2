package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/providerlab/internal/domain"
)

func newTestDispatcher(ids ...domain.ProviderID) (*Dispatcher, *fakeProviderStore, *fakeRecorder) {
	store := newFakeProviderStore(ids...)
	recorder := &fakeRecorder{}
	d := NewDispatcher(NewStatusService(store, discardLogger()), recorder, discardLogger())
	return d, store, recorder
}

func TestDispatcher_HandleStatusUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid provider raises before datastore access", func(t *testing.T) {
		d, store, recorder := newTestDispatcher("github")

		err := d.HandleStatusUpdate(ctx, StatusUpdate{
			Provider:  "not-a-real-provider",
			Column:    domain.ColumnAuthorize,
			Guard:     domain.MarkFailed.Guard,
			NewStatus: domain.MarkFailed.Target,
			Err:       errors.New("boom"),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidProvider)
		assert.Zero(t, store.callCount())
		assert.Empty(t, recorder.failures)
	})

	t.Run("error path marks failed and forwards failure", func(t *testing.T) {
		d, store, recorder := newTestDispatcher("github")
		failure := errors.New("exchange failed")

		err := d.HandleStatusUpdate(ctx, StatusUpdate{
			Provider:  "github",
			Column:    domain.ColumnAuthorize,
			Guard:     domain.MarkFailed.Guard,
			NewStatus: domain.MarkFailed.Target,
			Err:       failure,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, store.get("github").AuthorizeStatus)
		require.Len(t, recorder.failures, 1)
		assert.Equal(t, failure, recorder.failures[0].failure)
		assert.Equal(t, domain.ProviderID("github"), recorder.failures[0].provider)
	})

	t.Run("store failure does not reach caller", func(t *testing.T) {
		d, store, _ := newTestDispatcher("github")
		store.failing = true

		err := d.HandleStatusUpdate(ctx, StatusUpdate{
			Provider:  "github",
			Column:    domain.ColumnRefresh,
			Guard:     domain.MarkTested.Guard,
			NewStatus: domain.MarkTested.Target,
		})
		assert.NoError(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		d, _, _ := newTestDispatcher("github")
		var vErr *domain.ValidationError

		err := d.HandleStatusUpdate(ctx, StatusUpdate{
			Provider:  "github",
			Column:    "bogus",
			Guard:     domain.MarkTested.Guard,
			NewStatus: domain.StatusTested,
		})
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "Column", vErr.Field)

		err = d.HandleStatusUpdate(ctx, StatusUpdate{
			Provider:  "github",
			Column:    domain.ColumnAuthorize,
			Guard:     domain.Guard{},
			NewStatus: domain.StatusTested,
		})
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "Guard", vErr.Field)

		err = d.HandleStatusUpdate(ctx, StatusUpdate{
			Provider:  "github",
			Column:    domain.ColumnAuthorize,
			Guard:     domain.Guard{"sideways"},
			NewStatus: domain.StatusTested,
		})
		require.ErrorAs(t, err, &vErr)
	})
}

func TestDispatcher_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("success marks tested", func(t *testing.T) {
		d, store, recorder := newTestDispatcher("google")
		store.set("google", domain.ColumnRevoke, domain.StatusFailed)

		require.NoError(t, d.Handle(ctx, domain.OperationEvent{Provider: "google", Operation: domain.OperationRevoke}))
		assert.Equal(t, domain.StatusTested, store.get("google").RevokeStatus)
		assert.Empty(t, recorder.failures)
	})

	t.Run("failure marks failed", func(t *testing.T) {
		d, store, recorder := newTestDispatcher("google")
		payload := map[string]any{"error": "invalid_grant"}

		require.NoError(t, d.Handle(ctx, domain.OperationEvent{
			Provider:  "google",
			Operation: domain.OperationRefresh,
			Err:       payload,
		}))
		assert.Equal(t, domain.StatusFailed, store.get("google").RefreshStatus)
		require.Len(t, recorder.failures, 1)
	})

	t.Run("failure does not downgrade testing", func(t *testing.T) {
		d, store, _ := newTestDispatcher("google")
		store.set("google", domain.ColumnProfile, domain.StatusTesting)

		require.NoError(t, d.Handle(ctx, domain.OperationEvent{
			Provider:  "google",
			Operation: domain.OperationProfile,
			Err:       errors.New("401"),
		}))
		assert.Equal(t, domain.StatusTesting, store.get("google").ProfileStatus)
	})

	t.Run("withings profile success is ignored", func(t *testing.T) {
		for _, current := range domain.Statuses {
			d, store, _ := newTestDispatcher("withings")
			store.set("withings", domain.ColumnProfile, current)
			before := store.callCount()

			require.NoError(t, d.Handle(ctx, domain.OperationEvent{Provider: "withings", Operation: domain.OperationProfile}))
			assert.Equal(t, current, store.get("withings").ProfileStatus)
			assert.Equal(t, before, store.callCount())
		}
	})

	t.Run("withings profile failure is recorded", func(t *testing.T) {
		d, store, _ := newTestDispatcher("withings")

		require.NoError(t, d.Handle(ctx, domain.OperationEvent{
			Provider:  "withings",
			Operation: domain.OperationProfile,
			Err:       errors.New("no profile"),
		}))
		assert.Equal(t, domain.StatusFailed, store.get("withings").ProfileStatus)
	})

	t.Run("unknown operation", func(t *testing.T) {
		d, _, _ := newTestDispatcher("google")
		var vErr *domain.ValidationError
		assert.ErrorAs(t, d.Handle(ctx, domain.OperationEvent{Provider: "google", Operation: "login"}), &vErr)
	})

	t.Run("invalid provider", func(t *testing.T) {
		d, _, _ := newTestDispatcher()
		err := d.Handle(ctx, domain.OperationEvent{Provider: "not-a-real-provider", Operation: domain.OperationAuthorize})
		assert.ErrorIs(t, err, domain.ErrInvalidProvider)
	})
}
