//go:build integration

package ledger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Black-And-White-Club/score-ledger/app"
	authdomain "github.com/Black-And-White-Club/score-ledger/app/modules/auth/domain"
	authjwt "github.com/Black-And-White-Club/score-ledger/app/modules/auth/infrastructure/jwt"
	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/score-ledger/app/observability"
	"github.com/Black-And-White-Club/score-ledger/config"
	"github.com/Black-And-White-Club/score-ledger/integration_tests/testutils"
)

const jwtSecret = "integration-secret-long-enough-for-hs256"

func newApp(t *testing.T, backend string, durable bool) *app.App {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	ctx := context.Background()
	require.NoError(t, testEnv.ResetLedgerTables(ctx))
	require.NoError(t, testEnv.ResetStream(ctx, ledgerdomain.StreamName))

	cfg := &config.Config{
		Store:    config.StoreConfig{Backend: backend},
		Postgres: config.PostgresConfig{DSN: testEnv.PostgresDSN},
		NATS:     config.NATSConfig{URL: testEnv.NatsURL, KVBucket: "ledger_app_" + watermill.NewShortUUID()},
		JWT:      config.JWTConfig{Secret: jwtSecret},
		HTTP:     config.HTTPConfig{Address: "127.0.0.1:0", SubmitRate: 100, SubmitBurst: 100},
		Ledger:   config.LedgerConfig{MaxRetries: 8, DurableEvents: durable},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := app.New(ctx, cfg, observability.NewNoop(logger))
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()
	<-a.Router.Running()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = a.Close(context.Background())
	})
	return a
}

func bearer(t *testing.T, subject string, role authdomain.Role) string {
	t.Helper()
	token, err := authjwt.NewProvider(jwtSecret, "").GenerateToken(&authdomain.Claims{Subject: subject, Role: role}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func submit(t *testing.T, a *app.App, id ledgerdomain.ParticipantID, score uint64) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"score": score})
	req := httptest.NewRequest(http.MethodPost, "/api/ledger/scores", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, string(id), authdomain.RolePlayer))
	rec := httptest.NewRecorder()
	a.HTTP.Handler.ServeHTTP(rec, req)
	return rec
}

func subscribeSubmitted(t *testing.T, a *app.App) <-chan *message.Message {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	msgs, err := a.Bus.Broadcast().Subscribe(ctx, ledgerdomain.ScoreSubmittedV1)
	require.NoError(t, err)
	return msgs
}

func awaitSubmitted(t *testing.T, msgs <-chan *message.Message) ledgerdomain.ScoreSubmittedPayloadV1 {
	t.Helper()
	select {
	case msg := <-msgs:
		msg.Ack()
		var payload ledgerdomain.ScoreSubmittedPayloadV1
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		return payload
	case <-time.After(20 * time.Second):
		t.Fatal("timed out waiting for score submitted event")
	}
	return ledgerdomain.ScoreSubmittedPayloadV1{}
}

func TestApp_PostgresBackendSurvivesRestart(t *testing.T) {
	gen := testutils.NewTestDataGenerator(7)
	alice, bob := gen.ParticipantID(), gen.ParticipantID()

	a := newApp(t, config.BackendPostgres, false)
	require.Equal(t, http.StatusCreated, submit(t, a, alice, 300).Code)
	require.Equal(t, http.StatusCreated, submit(t, a, bob, 500).Code)
	assert.Equal(t, http.StatusConflict, submit(t, a, bob, 400).Code)

	reloaded, err := app.OpenStore(context.Background(), a.Config, a.Bus)
	require.NoError(t, err)
	defer reloaded.Close()
	entries, err := reloaded.ScanSorted(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, bob, entries[0].ParticipantID)
	assert.Equal(t, uint64(500), entries[0].BestScore)
}

func TestApp_KVBackendPublishesOverNATS(t *testing.T) {
	a := newApp(t, config.BackendKV, false)
	msgs := subscribeSubmitted(t, a)

	id := testutils.NewTestDataGenerator(11).ParticipantID()
	require.Equal(t, http.StatusCreated, submit(t, a, id, 42).Code)

	payload := awaitSubmitted(t, msgs)
	assert.Equal(t, id, payload.ParticipantID)
	assert.Equal(t, uint64(42), payload.NewBestScore)
	assert.True(t, payload.NewPlayer)
}

func TestApp_DurableEventsGoThroughQueue(t *testing.T) {
	a := newApp(t, config.BackendPostgres, true)
	require.NotNil(t, a.Queue)
	msgs := subscribeSubmitted(t, a)

	id := testutils.NewTestDataGenerator(13).ParticipantID()
	require.Equal(t, http.StatusCreated, submit(t, a, id, 99).Code)

	payload := awaitSubmitted(t, msgs)
	assert.Equal(t, id, payload.ParticipantID)
	assert.Equal(t, uint64(99), payload.NewBestScore)

	rec := httptest.NewRecorder()
	a.HTTP.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_BusSubmissionRoundTrip(t *testing.T) {
	a := newApp(t, config.BackendKV, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	accepted, err := a.Bus.Broadcast().Subscribe(ctx, ledgerdomain.ScoreSubmitAcceptedV1)
	require.NoError(t, err)

	id := testutils.NewTestDataGenerator(17).ParticipantID()
	payload, err := json.Marshal(ledgerdomain.ScoreSubmitRequestedPayloadV1{ParticipantID: id, Score: 7, RequestID: "req-1"})
	require.NoError(t, err)
	require.NoError(t, a.Bus.Publish(ledgerdomain.ScoreSubmitRequestedV1, message.NewMessage(watermill.NewUUID(), payload)))

	select {
	case msg := <-accepted:
		msg.Ack()
		var reply ledgerdomain.ScoreSubmitAcceptedPayloadV1
		require.NoError(t, json.Unmarshal(msg.Payload, &reply))
		assert.Equal(t, "req-1", reply.RequestID)
		assert.Equal(t, uint64(7), reply.Outcome.BestScore)
	case <-time.After(20 * time.Second):
		t.Fatal("timed out waiting for accepted reply")
	}
}
