package ledgerhandlers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/score-ledger/app/shared/handlerwrapper"
)

// HandleScoreSubmitRequested handles the ScoreSubmitRequested event.
func (h *LedgerHandlers) HandleScoreSubmitRequested(ctx context.Context, payload *ledgerdomain.ScoreSubmitRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	h.logger.InfoContext(ctx, "Received ScoreSubmitRequested event",
		slog.String("participant_id", string(payload.ParticipantID)),
		slog.Uint64("score", payload.Score),
		slog.String("request_id", payload.RequestID),
	)

	if prev, ok := h.accepted.lookup(payload); ok {
		h.logger.InfoContext(ctx, "Replaying accepted reply for redelivered request",
			slog.String("participant_id", string(payload.ParticipantID)),
			slog.String("request_id", payload.RequestID),
		)
		return acceptedReply(ctx, prev), nil
	}

	outcome, err := h.service.Submit(ctx, payload.ParticipantID, payload.Score)
	if err != nil {
		if !ledgerdomain.IsRejection(err) {
			return nil, fmt.Errorf("failed to handle ScoreSubmitRequested event: %w", err)
		}

		h.logger.InfoContext(ctx, "Score submission rejected",
			slog.String("participant_id", string(payload.ParticipantID)),
			slog.String("reason", err.Error()),
		)
		return []handlerwrapper.Result{{
			Topic: handlerwrapper.ReplyTopic(ctx, ledgerdomain.ScoreSubmitRejectedV1),
			Payload: &ledgerdomain.ScoreSubmitRejectedPayloadV1{
				RequestID:     payload.RequestID,
				ParticipantID: payload.ParticipantID,
				Score:         payload.Score,
				Code:          ledgerdomain.RejectionCode(err),
				Reason:        err.Error(),
			},
		}}, nil
	}

	reply := ledgerdomain.ScoreSubmitAcceptedPayloadV1{
		RequestID: payload.RequestID,
		Outcome:   outcome,
	}
	h.accepted.remember(payload, reply)
	return acceptedReply(ctx, reply), nil
}

func acceptedReply(ctx context.Context, reply ledgerdomain.ScoreSubmitAcceptedPayloadV1) []handlerwrapper.Result {
	return []handlerwrapper.Result{{
		Topic:   handlerwrapper.ReplyTopic(ctx, ledgerdomain.ScoreSubmitAcceptedV1),
		Payload: &reply,
	}}
}

// acceptedRequests holds the last accepted request per participant. A bus
// redelivery of that request gets the original reply instead of a
// score_not_improved rejection. Requests without an id are never remembered.
type acceptedRequests struct {
	mu   sync.Mutex
	last map[ledgerdomain.ParticipantID]ledgerdomain.ScoreSubmitAcceptedPayloadV1
}

func newAcceptedRequests() *acceptedRequests {
	return &acceptedRequests{last: make(map[ledgerdomain.ParticipantID]ledgerdomain.ScoreSubmitAcceptedPayloadV1)}
}

func (a *acceptedRequests) lookup(p *ledgerdomain.ScoreSubmitRequestedPayloadV1) (ledgerdomain.ScoreSubmitAcceptedPayloadV1, bool) {
	if p.RequestID == "" {
		return ledgerdomain.ScoreSubmitAcceptedPayloadV1{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, ok := a.last[p.ParticipantID.Normalize()]
	if !ok || prev.RequestID != p.RequestID {
		return ledgerdomain.ScoreSubmitAcceptedPayloadV1{}, false
	}
	return prev, true
}

func (a *acceptedRequests) remember(p *ledgerdomain.ScoreSubmitRequestedPayloadV1, reply ledgerdomain.ScoreSubmitAcceptedPayloadV1) {
	if p.RequestID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last[p.ParticipantID.Normalize()] = reply
}
