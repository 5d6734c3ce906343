package ledgerhandlers

import (
	"context"
	"net/http"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/score-ledger/app/shared/handlerwrapper"
)

// Handlers defines the message handlers for the ledger module.
type Handlers interface {
	// HandleScoreSubmitRequested records a score sent over the bus and replies with
	// an accepted or rejected event.
	HandleScoreSubmitRequested(ctx context.Context, payload *ledgerdomain.ScoreSubmitRequestedPayloadV1) ([]handlerwrapper.Result, error)

	// HandleScoreSubmitted merges a submission accepted by any instance into the
	// local ranking.
	HandleScoreSubmitted(ctx context.Context, payload *ledgerdomain.ScoreSubmittedPayloadV1) ([]handlerwrapper.Result, error)

	// HandlePauseChanged refreshes the local submission gate.
	HandlePauseChanged(ctx context.Context, payload *ledgerdomain.PauseChangedPayloadV1) ([]handlerwrapper.Result, error)
}

// HTTPHandlers defines the REST surface of the ledger module.
type HTTPHandlers interface {
	HandleSubmitScore(w http.ResponseWriter, r *http.Request)
	HandleGetBestScore(w http.ResponseWriter, r *http.Request)
	HandleGetRank(w http.ResponseWriter, r *http.Request)
	HandleGetStats(w http.ResponseWriter, r *http.Request)
	HandleGetPlayerCount(w http.ResponseWriter, r *http.Request)
	HandleGetTop(w http.ResponseWriter, r *http.Request)
	HandleGetTopChart(w http.ResponseWriter, r *http.Request)
	HandleExportTop(w http.ResponseWriter, r *http.Request)
	HandleGetPaused(w http.ResponseWriter, r *http.Request)
	HandlePause(w http.ResponseWriter, r *http.Request)
	HandleUnpause(w http.ResponseWriter, r *http.Request)
}
