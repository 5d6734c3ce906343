package ledgerqueue

import ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"

// QueueName is the River queue ledger notifications run on.
const QueueName = "ledger"

// ScoreSubmittedJob delivers one ScoreSubmitted event to the bus.
type ScoreSubmittedJob struct {
	CorrelationID string                               `json:"correlation_id,omitempty"`
	Payload       ledgerdomain.ScoreSubmittedPayloadV1 `json:"payload"`
}

// Kind returns the job type identifier for River
func (ScoreSubmittedJob) Kind() string { return "ledger_score_submitted" }

// PauseChangedJob delivers one pause transition to the bus.
type PauseChangedJob struct {
	CorrelationID string                             `json:"correlation_id,omitempty"`
	Payload       ledgerdomain.PauseChangedPayloadV1 `json:"payload"`
}

// Kind returns the job type identifier for River
func (PauseChangedJob) Kind() string { return "ledger_pause_changed" }
