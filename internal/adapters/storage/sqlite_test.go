package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEvent(id, coin, eventType string) domain.Event {
	return domain.Event{
		ID:         id,
		CoinSymbol: coin,
		EventType:  eventType,
		Title:      coin + " " + eventType + " event",
		DateEvent:  "2026-09-01",
		Importance: domain.ImportanceHigh,
		SourceName: "binance",
		CreatedAt:  time.Now().UTC(),
	}
}

func sampleOutcomes(eventID string) []domain.Outcome {
	return []domain.Outcome{
		{EventID: eventID, Key: "A", Text: "good", Category: domain.CategoryPositive, IsTemplate: true},
		{EventID: eventID, Key: "B", Text: "flat", Category: domain.CategoryNeutral, IsTemplate: true},
		{EventID: eventID, Key: "C", Text: "bad", Category: domain.CategoryNegative, IsTemplate: true},
	}
}

func TestInsertEvent_IdempotentByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := sampleEvent("ev1", "SOL", "listing")
	require.NoError(t, s.InsertEvent(ctx, ev))
	require.NoError(t, s.InsertEvent(ctx, ev), "reinsert must be a no-op")

	events, err := s.EventsByCoinAndType(ctx, "SOL", "listing")
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, "ev1", got.ID)
	assert.Equal(t, "SOL", got.CoinSymbol)
	assert.Equal(t, "2026-09-01", got.DateEvent)
	assert.Equal(t, domain.ImportanceHigh, got.Importance)
	assert.Equal(t, "binance", got.SourceName)
	assert.False(t, got.OutcomesGen)
}

func TestInsertEvent_EmptyDateStoredAsNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := sampleEvent("ev1", "SOL", "listing")
	ev.DateEvent = ""
	require.NoError(t, s.InsertEvent(ctx, ev))

	events, err := s.EventsByCoinAndType(ctx, "SOL", "listing")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].DateEvent)
}

func TestEventsByCoinAndType_FiltersBoth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertEvent(ctx, sampleEvent("ev1", "SOL", "listing")))
	require.NoError(t, s.InsertEvent(ctx, sampleEvent("ev2", "SOL", "unlock")))
	require.NoError(t, s.InsertEvent(ctx, sampleEvent("ev3", "ARB", "listing")))

	events, err := s.EventsByCoinAndType(ctx, "SOL", "listing")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev1", events[0].ID)
}

func TestSaveOutcomes_ReplacesAndMarksGenerated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertEvent(ctx, sampleEvent("ev1", "SOL", "listing")))

	pending, err := s.UnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.SaveOutcomes(ctx, "ev1", sampleOutcomes("ev1")))

	// el evento sale de la cola de pendientes
	pending, err = s.UnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// regenerar reemplaza el set entero, sin acumular filas
	fresh := sampleOutcomes("ev1")
	fresh[0].Text = "regenerated"
	require.NoError(t, s.SaveOutcomes(ctx, "ev1", fresh))

	outcomes, err := s.OutcomesForEvent(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "regenerated", outcomes[0].Text)
	assert.Equal(t, "A", outcomes[0].Key, "sorted by key")
	assert.True(t, outcomes[0].IsTemplate)
	assert.Nil(t, outcomes[0].Probability)
}

func TestEstimationQueues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertEvent(ctx, sampleEvent("ev1", "SOL", "listing")))
	require.NoError(t, s.SaveOutcomes(ctx, "ev1", sampleOutcomes("ev1")))

	// con outcomes pero sin probabilidades → espera estimación de probabilidad
	awaiting, err := s.EventsAwaitingProbability(ctx, 10)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)

	awaitingImpact, err := s.EventsAwaitingImpact(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, awaitingImpact, "no probability yet, not in the impact queue")

	for _, key := range []string{"A", "B", "C"} {
		require.NoError(t, s.UpdateOutcomeProbability(ctx, "ev1", key, 0.33, 0.2, 0.4))
	}

	awaiting, err = s.EventsAwaitingProbability(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, awaiting)

	awaitingImpact, err = s.EventsAwaitingImpact(ctx, 10)
	require.NoError(t, err)
	require.Len(t, awaitingImpact, 1)
	assert.Equal(t, "ev1", awaitingImpact[0].ID)

	for _, key := range []string{"A", "B", "C"} {
		require.NoError(t, s.UpdateOutcomeImpact(ctx, "ev1", key, 5.0, 2.0, 8.0))
	}

	awaitingImpact, err = s.EventsAwaitingImpact(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, awaitingImpact)
}

func TestCompleteEvents_ExcludesPartiallyEstimated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// ev1: completo
	require.NoError(t, s.InsertEvent(ctx, sampleEvent("ev1", "SOL", "listing")))
	require.NoError(t, s.SaveOutcomes(ctx, "ev1", sampleOutcomes("ev1")))
	for _, key := range []string{"A", "B", "C"} {
		require.NoError(t, s.UpdateOutcomeProbability(ctx, "ev1", key, 0.33, 0.2, 0.4))
		require.NoError(t, s.UpdateOutcomeImpact(ctx, "ev1", key, 5.0, 2.0, 8.0))
	}

	// ev2: un outcome sin impacto → incompleto
	require.NoError(t, s.InsertEvent(ctx, sampleEvent("ev2", "ARB", "unlock")))
	require.NoError(t, s.SaveOutcomes(ctx, "ev2", sampleOutcomes("ev2")))
	for _, key := range []string{"A", "B", "C"} {
		require.NoError(t, s.UpdateOutcomeProbability(ctx, "ev2", key, 0.33, 0.2, 0.4))
	}
	require.NoError(t, s.UpdateOutcomeImpact(ctx, "ev2", "A", 5.0, 2.0, 8.0))

	// ev3: sin outcomes → incompleto
	require.NoError(t, s.InsertEvent(ctx, sampleEvent("ev3", "OP", "burn")))

	complete, err := s.CompleteEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, "ev1", complete[0].Event.ID)
	require.Len(t, complete[0].Outcomes, 3)
	for _, o := range complete[0].Outcomes {
		assert.True(t, o.Estimated())
		require.NotNil(t, o.Probability)
		assert.InDelta(t, 0.33, *o.Probability, 0.0001)
	}
}

func TestSaveRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := domain.RunSummary{
		ID:           uuid.NewString(),
		StartedAt:    time.Now().UTC(),
		Duration:     42 * time.Second,
		NewsFetched:  120,
		EventsNew:    7,
		OutcomesGen:  7,
		ProbEvents:   6,
		ImpactEvents: 6,
		Signals:      3,
	}
	require.NoError(t, s.SaveRun(ctx, run))

	// misma id dos veces viola la PK
	assert.Error(t, s.SaveRun(ctx, run))
}
