package ledgerhandlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
)

func TestLedgerHandlers_HandleScoreSubmitted(t *testing.T) {
	t.Run("forwards the announcement", func(t *testing.T) {
		svc := NewFakeService()
		var got ledgerdomain.ScoreSubmittedPayloadV1
		svc.ApplyScoreSubmittedFunc = func(_ context.Context, p ledgerdomain.ScoreSubmittedPayloadV1) error {
			got = p
			return nil
		}
		h := newTestHandlers(svc)

		results, err := h.HandleScoreSubmitted(context.Background(), &ledgerdomain.ScoreSubmittedPayloadV1{ParticipantID: "0xabc", NewBestScore: 42})
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Equal(t, []string{"ApplyScoreSubmitted"}, svc.Trace())
		assert.Equal(t, uint64(42), got.NewBestScore)
	})

	t.Run("store errors are returned for redelivery", func(t *testing.T) {
		svc := NewFakeService()
		svc.ApplyScoreSubmittedFunc = func(context.Context, ledgerdomain.ScoreSubmittedPayloadV1) error {
			return errors.New("store unreachable")
		}
		_, err := newTestHandlers(svc).HandleScoreSubmitted(context.Background(), &ledgerdomain.ScoreSubmittedPayloadV1{ParticipantID: "0xabc", NewBestScore: 1})
		require.Error(t, err)
	})
}

func TestLedgerHandlers_HandlePauseChanged(t *testing.T) {
	svc := NewFakeService()
	h := newTestHandlers(svc)

	results, err := h.HandlePauseChanged(context.Background(), &ledgerdomain.PauseChangedPayloadV1{Paused: true, Actor: "ops"})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, []string{"ReloadPauseState"}, svc.Trace())

	svc.ReloadPauseStateFunc = func(context.Context) error { return errors.New("nope") }
	_, err = h.HandlePauseChanged(context.Background(), &ledgerdomain.PauseChangedPayloadV1{})
	require.Error(t, err)
}
