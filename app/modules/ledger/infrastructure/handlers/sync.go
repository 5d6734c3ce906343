package ledgerhandlers

import (
	"context"
	"fmt"
	"log/slog"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/score-ledger/app/shared/handlerwrapper"
)

// HandleScoreSubmitted handles the ScoreSubmitted broadcast. The instance that
// accepted the score sees its own event too; the merge is a no-op there.
func (h *LedgerHandlers) HandleScoreSubmitted(ctx context.Context, payload *ledgerdomain.ScoreSubmittedPayloadV1) ([]handlerwrapper.Result, error) {
	if err := h.service.ApplyScoreSubmitted(ctx, *payload); err != nil {
		return nil, fmt.Errorf("failed to apply ScoreSubmitted event: %w", err)
	}
	return nil, nil
}

// HandlePauseChanged handles the LedgerPaused and LedgerUnpaused broadcasts.
func (h *LedgerHandlers) HandlePauseChanged(ctx context.Context, payload *ledgerdomain.PauseChangedPayloadV1) ([]handlerwrapper.Result, error) {
	h.logger.InfoContext(ctx, "Received pause change",
		slog.Bool("paused", payload.Paused),
		slog.String("actor", payload.Actor),
	)
	if err := h.service.ReloadPauseState(ctx); err != nil {
		return nil, fmt.Errorf("failed to reload pause state: %w", err)
	}
	return nil, nil
}
