package ledgerdomain

import "time"

// Message topics published and consumed by the ledger module.
const (
	ScoreSubmitRequestedV1 = "ledger.score.submit.requested.v1"
	ScoreSubmitAcceptedV1  = "ledger.score.submit.accepted.v1"
	ScoreSubmitRejectedV1  = "ledger.score.submit.rejected.v1"
	ScoreSubmittedV1       = "ledger.score.submitted.v1"
	LedgerPausedV1         = "ledger.paused.v1"
	LedgerUnpausedV1       = "ledger.unpaused.v1"
)

// StreamName is the JetStream stream that carries every ledger subject.
const StreamName = "LEDGER"

// StreamSubjects lists the subjects bound to StreamName.
var StreamSubjects = []string{"ledger.>"}

// ScoreSubmittedPayloadV1 is emitted once for every accepted submission.
type ScoreSubmittedPayloadV1 struct {
	ParticipantID ParticipantID `json:"participant_id"`
	NewBestScore  uint64        `json:"new_best_score"`
	PreviousBest  uint64        `json:"previous_best"`
	NewPlayer     bool          `json:"new_player"`
	SubmittedAt   time.Time     `json:"submitted_at"`
}

// NewScoreSubmittedPayload builds the event for an accepted outcome.
func NewScoreSubmittedPayload(o SubmitOutcome) ScoreSubmittedPayloadV1 {
	return ScoreSubmittedPayloadV1{
		ParticipantID: o.ParticipantID,
		NewBestScore:  o.BestScore,
		PreviousBest:  o.PreviousBest,
		NewPlayer:     o.NewPlayer,
		SubmittedAt:   o.SubmittedAt,
	}
}

// ScoreSubmitRequestedPayloadV1 asks the ledger to record a score over the message bus.
type ScoreSubmitRequestedPayloadV1 struct {
	ParticipantID ParticipantID `json:"participant_id"`
	Score         uint64        `json:"score"`
	RequestID     string        `json:"request_id,omitempty"`
}

// ScoreSubmitAcceptedPayloadV1 replies to an accepted bus submission.
type ScoreSubmitAcceptedPayloadV1 struct {
	RequestID string        `json:"request_id,omitempty"`
	Outcome   SubmitOutcome `json:"outcome"`
}

// ScoreSubmitRejectedPayloadV1 replies to a rejected bus submission.
type ScoreSubmitRejectedPayloadV1 struct {
	RequestID     string        `json:"request_id,omitempty"`
	ParticipantID ParticipantID `json:"participant_id"`
	Score         uint64        `json:"score"`
	Code          string        `json:"code"`
	Reason        string        `json:"reason"`
}

// PauseChangedPayloadV1 announces a pause state transition.
type PauseChangedPayloadV1 struct {
	Paused    bool      `json:"paused"`
	Actor     string    `json:"actor"`
	ChangedAt time.Time `json:"changed_at"`
}
