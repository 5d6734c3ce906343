package ledgerhandlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	authhandlers "github.com/Black-And-White-Club/score-ledger/app/modules/auth/infrastructure/handlers"
	ledgerservice "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/go-chi/chi/v5"
)

// SubmitScoreRequest is the body of POST /scores. The participant comes from the bearer token.
type SubmitScoreRequest struct {
	Score uint64 `json:"score"`
}

type bestScoreResponse struct {
	ParticipantID ledgerdomain.ParticipantID `json:"participant_id"`
	BestScore     uint64                     `json:"best_score"`
}

type rankResponse struct {
	ParticipantID ledgerdomain.ParticipantID `json:"participant_id"`
	Rank          uint64                     `json:"rank"`
}

type playerCountResponse struct {
	PlayerCount uint64 `json:"player_count"`
}

type pausedResponse struct {
	Paused bool `json:"paused"`
}

type topResponse struct {
	Window  ledgerdomain.Window        `json:"window"`
	Since   *time.Time                 `json:"since,omitempty"`
	Entries []ledgerdomain.RankedEntry `json:"entries"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func participantParam(r *http.Request) (ledgerdomain.ParticipantID, error) {
	id := ledgerdomain.ParticipantID(chi.URLParam(r, "participantID")).Normalize()
	if id == "" {
		return "", ledgerdomain.ErrInvalidParticipant
	}
	return id, nil
}

func actorFromRequest(r *http.Request) ledgerdomain.Actor {
	claims, ok := authhandlers.ClaimsFromContext(r.Context())
	if !ok {
		return ledgerdomain.Actor{}
	}
	return ledgerdomain.Actor{ID: claims.Subject, Admin: claims.IsAdmin()}
}

// HandleSubmitScore records a score for the authenticated participant.
func (h *LedgerHandlers) HandleSubmitScore(w http.ResponseWriter, r *http.Request) {
	claims, ok := authhandlers.ClaimsFromContext(r.Context())
	if !ok {
		h.errorResponse(w, r, http.StatusUnauthorized, "unauthenticated", "missing credentials")
		return
	}

	var req SubmitScoreRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	outcome, err := h.service.Submit(r.Context(), ledgerdomain.ParticipantID(claims.Subject), req.Score)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusOK
	if outcome.NewPlayer {
		status = http.StatusCreated
	}
	h.writeJSON(w, r, status, outcome)
}

// HandleGetBestScore returns a participant's best score, 0 when absent.
func (h *LedgerHandlers) HandleGetBestScore(w http.ResponseWriter, r *http.Request) {
	id, err := participantParam(r)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, bestScoreResponse{ParticipantID: id, BestScore: h.service.BestScoreOf(r.Context(), id)})
}

// HandleGetRank returns a participant's 1-based rank, 0 when absent.
func (h *LedgerHandlers) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	id, err := participantParam(r)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, rankResponse{ParticipantID: id, Rank: h.service.RankOf(r.Context(), id)})
}

// HandleGetStats returns score, rank and total players from one snapshot.
func (h *LedgerHandlers) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	id, err := participantParam(r)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.service.StatsOf(r.Context(), id))
}

// HandleGetPlayerCount returns the number of participants ever accepted.
func (h *LedgerHandlers) HandleGetPlayerCount(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, playerCountResponse{PlayerCount: h.service.PlayerCount(r.Context())})
}

// HandleGetTop returns the leaderboard. Query: n, window (all-time|weekly|daily), since.
// since overrides window when both are given.
func (h *LedgerHandlers) HandleGetTop(w http.ResponseWriter, r *http.Request) {
	window, err := ledgerdomain.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	n, err := queryLimit(r, "n", window.DefaultLimit())
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	since, err := ledgerservice.ParseSince(r.URL.Query().Get("since"), time.Now().UTC())
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	resp := topResponse{Window: window, Entries: []ledgerdomain.RankedEntry{}}
	switch {
	case n == 0:
	case !since.IsZero():
		resp.Since = &since
		resp.Entries = h.service.TopSince(r.Context(), n, since)
	default:
		resp.Entries = h.service.TopWindow(r.Context(), n, window)
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// HandleGetTopChart renders the top n as a PNG bar chart.
func (h *LedgerHandlers) HandleGetTopChart(w http.ResponseWriter, r *http.Request) {
	n, err := queryLimit(r, "n", ledgerdomain.DefaultWindowLimit)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	img, err := ledgerservice.RenderTopChart(h.service.TopN(r.Context(), n), ledgerservice.DefaultChartPalette)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(img); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to write chart", slog.String("error", err.Error()))
	}
}

// HandleExportTop streams the top n as a spreadsheet. Admin only.
func (h *LedgerHandlers) HandleExportTop(w http.ResponseWriter, r *http.Request) {
	if !actorFromRequest(r).IsAdmin() {
		h.mapServiceErrorToHTTP(w, r, ledgerdomain.ErrUnauthorized)
		return
	}
	n, err := queryLimit(r, "n", ledgerdomain.DefaultAllTimeLimit)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	now := time.Now().UTC()
	data, err := ledgerservice.ExportTopXLSX(h.service.TopSince(r.Context(), n, time.Time{}), now)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "leaderboard-"+now.Format("20060102-150405")+".xlsx"))
	if _, err := w.Write(data); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to write export", slog.String("error", err.Error()))
	}
}

// HandleGetPaused reports the submission gate state.
func (h *LedgerHandlers) HandleGetPaused(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, pausedResponse{Paused: h.service.IsPaused(r.Context())})
}

// HandlePause stops submissions.
func (h *LedgerHandlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, h.service.Pause)
}

// HandleUnpause re-enables submissions.
func (h *LedgerHandlers) HandleUnpause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, h.service.Unpause)
}

func (h *LedgerHandlers) setPaused(w http.ResponseWriter, r *http.Request, transition func(context.Context, ledgerdomain.Actor) error) {
	if err := transition(r.Context(), actorFromRequest(r)); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, pausedResponse{Paused: h.service.IsPaused(r.Context())})
}
