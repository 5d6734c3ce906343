package ledgerqueue

import (
	"context"
	"sync"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/score-ledger/app/shared/handlerwrapper"
)

// FakeEmitter records what the workers deliver.
type FakeEmitter struct {
	mu           sync.Mutex
	Err          error
	Submitted    []ledgerdomain.ScoreSubmittedPayloadV1
	Pauses       []ledgerdomain.PauseChangedPayloadV1
	Correlations []string
}

func (f *FakeEmitter) EmitScoreSubmitted(ctx context.Context, p ledgerdomain.ScoreSubmittedPayloadV1) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Correlations = append(f.Correlations, handlerwrapper.CorrelationID(ctx))
	if f.Err != nil {
		return f.Err
	}
	f.Submitted = append(f.Submitted, p)
	return nil
}

func (f *FakeEmitter) EmitPauseChanged(ctx context.Context, p ledgerdomain.PauseChangedPayloadV1) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Correlations = append(f.Correlations, handlerwrapper.CorrelationID(ctx))
	if f.Err != nil {
		return f.Err
	}
	f.Pauses = append(f.Pauses, p)
	return nil
}
