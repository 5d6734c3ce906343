package ledgerdomain

import "errors"

var (
	// ErrInvalidScore is returned for a zero score. Nothing is persisted.
	ErrInvalidScore = errors.New("score must be greater than 0")
	// ErrScoreTooLarge is returned for a score above MaxScore. Nothing is persisted.
	ErrScoreTooLarge = errors.New("score must not exceed 9223372036854775807")
	// ErrScoreNotImproved is returned when the score does not beat the current best.
	ErrScoreNotImproved = errors.New("score must be higher than current best")
	// ErrSystemPaused is returned by the gateway while submissions are paused.
	ErrSystemPaused = errors.New("submissions are paused")
	// ErrUnauthorized is returned when a non-admin attempts a control transition.
	ErrUnauthorized = errors.New("caller is not an admin")
	// ErrInvalidParticipant is returned for an empty participant id.
	ErrInvalidParticipant = errors.New("participant id is required")
	// ErrContention is returned when optimistic retries are exhausted.
	ErrContention = errors.New("too much contention on participant entry")
)

// IsRejection reports whether err is a client-correctable rejection rather than a
// system failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidScore) ||
		errors.Is(err, ErrScoreTooLarge) ||
		errors.Is(err, ErrScoreNotImproved) ||
		errors.Is(err, ErrSystemPaused) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidParticipant)
}

// RejectionCode maps a rejection to a stable machine-readable code.
func RejectionCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidScore), errors.Is(err, ErrScoreTooLarge):
		return "invalid_score"
	case errors.Is(err, ErrScoreNotImproved):
		return "score_not_improved"
	case errors.Is(err, ErrSystemPaused):
		return "system_paused"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidParticipant):
		return "invalid_participant"
	default:
		return "internal"
	}
}
