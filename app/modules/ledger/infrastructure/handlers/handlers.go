package ledgerhandlers

import (
	"log/slog"

	ledgerservice "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/application"
	"go.opentelemetry.io/otel/trace"
)

// LedgerHandlers serves both the message bus and the HTTP API.
type LedgerHandlers struct {
	service  ledgerservice.Service
	logger   *slog.Logger
	tracer   trace.Tracer
	accepted *acceptedRequests
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service ledgerservice.Service, logger *slog.Logger, tracer trace.Tracer) *LedgerHandlers {
	return &LedgerHandlers{
		service:  service,
		logger:   logger,
		tracer:   tracer,
		accepted: newAcceptedRequests(),
	}
}

var (
	_ Handlers     = (*LedgerHandlers)(nil)
	_ HTTPHandlers = (*LedgerHandlers)(nil)
)
