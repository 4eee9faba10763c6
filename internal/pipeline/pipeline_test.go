package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/cryptoscanner/internal/adapters/fixture"
	"github.com/alejandrodnm/cryptoscanner/internal/adapters/storage"
	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"github.com/alejandrodnm/cryptoscanner/internal/estimator"
	"github.com/alejandrodnm/cryptoscanner/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, _ float64, _ int) (string, error) {
	f.calls++
	return f.response, f.err
}

type fakeEstimator struct {
	results map[string]estimator.Estimate
}

func (f *fakeEstimator) Estimate(_ context.Context, _ domain.Event, _ []domain.Outcome) map[string]estimator.Estimate {
	return f.results
}

type recordingNotifier struct {
	signals []domain.TokenSignal
	calls   int
}

func (r *recordingNotifier) Notify(_ context.Context, signals []domain.TokenSignal) error {
	r.calls++
	r.signals = signals
	return nil
}

const extractedEvents = `[{"title": "Binance will list ARB", "coin_symbol": "ARB",
	"event_type": "listing", "date_event": "2026-09-01", "importance": "high", "news_index": 0}]`

func newTestPipeline(t *testing.T, completer ports.Completer) (*Pipeline, ports.EventStore, *recordingNotifier) {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	probs := &fakeEstimator{results: map[string]estimator.Estimate{
		"A": {Value: 0.4, Low: 0.3, High: 0.5},
		"B": {Value: 0.3, Low: 0.2, High: 0.4},
		"C": {Value: 0.2, Low: 0.1, High: 0.3},
		"D": {Value: 0.1, Low: 0.05, High: 0.15},
	}}
	impacts := &fakeEstimator{results: map[string]estimator.Estimate{
		"A": {Value: 20.0, Low: 15.0, High: 25.0},
		"B": {Value: 1.0, Low: 0.0, High: 2.0},
		"C": {Value: -5.0, Low: -8.0, High: -2.0},
		"D": {Value: -12.0, Low: -16.0, High: -8.0},
	}}

	notifier := &recordingNotifier{}
	source := fixture.NewSource([]domain.NewsItem{{
		Title:   "Binance Will List Arbitrum (ARB)",
		URL:     "https://example.com/arb",
		Source:  "fixture",
		Tickers: []string{"ARB"},
	}})

	cfg := DefaultConfig()
	cfg.DryRun = true
	p := New(cfg, []ports.NewsSource{source}, store, completer, probs, impacts, notifier)
	return p, store, notifier
}

func TestRunOnce_FullPass(t *testing.T) {
	completer := &fakeCompleter{response: extractedEvents}
	p, store, _ := newTestPipeline(t, completer)

	run, sigs, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 1, run.NewsFetched)
	assert.Equal(t, 1, run.EventsNew)
	assert.Equal(t, 1, run.OutcomesGen, "listing template, no LLM needed")
	assert.Equal(t, 1, run.ProbEvents)
	assert.Equal(t, 1, run.ImpactEvents)
	assert.Equal(t, 1, run.Signals)

	// E[return] = 0.4×20 + 0.3×1 + 0.2×(−5) + 0.1×(−12) = 6.1 → LONG strong
	require.Len(t, sigs, 1)
	assert.Equal(t, "ARB", sigs[0].Token)
	assert.Equal(t, domain.SignalLong, sigs[0].Signal)
	assert.Equal(t, domain.StrengthStrong, sigs[0].Strength)
	assert.InDelta(t, 6.1, sigs[0].TotalEReturn, 0.0001)

	// el evento queda completo en storage
	complete, err := store.CompleteEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, "fixture", complete[0].Event.SourceName)
	assert.Equal(t, "2026-09-01", complete[0].Event.DateEvent)
}

func TestRunOnce_SecondRunDeduplicates(t *testing.T) {
	completer := &fakeCompleter{response: extractedEvents}
	p, _, _ := newTestPipeline(t, completer)

	run1, _, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, run1.EventsNew)

	run2, _, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, run2.EventsNew, "same headline must not create a second event")
	assert.Zero(t, run2.OutcomesGen, "nothing left in the outcome queue")
	assert.Equal(t, 1, run2.Signals, "complete events keep producing signals")
}

func TestRunOnce_ExtractionFailureDegrades(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("providers exhausted")}
	p, _, _ := newTestPipeline(t, completer)

	run, sigs, err := p.RunOnce(context.Background())
	require.NoError(t, err, "a failed extraction chunk must not abort the run")
	assert.Equal(t, 1, run.NewsFetched)
	assert.Zero(t, run.EventsNew)
	assert.Empty(t, sigs)
}

func TestRun_DryRunExecutesOneCycle(t *testing.T) {
	completer := &fakeCompleter{response: extractedEvents}
	p, _, notifier := newTestPipeline(t, completer)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.Equal(t, 1, notifier.calls)
	require.Len(t, notifier.signals, 1)
	assert.Equal(t, "ARB", notifier.signals[0].Token)
}
