package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func estimatedOutcome(key string, p, impact float64) Outcome {
	return Outcome{Key: key, Probability: fp(p), PriceImpactPct: fp(impact)}
}

func TestEventExpectedReturn_Basic(t *testing.T) {
	outcomes := []Outcome{
		estimatedOutcome("A", 0.5, 10),
		estimatedOutcome("B", 0.3, -4),
		estimatedOutcome("C", 0.2, -2),
	}
	er := EventExpectedReturn(outcomes)
	require.NotNil(t, er)
	// 0.5×10 + 0.3×(-4) + 0.2×(-2) = 3.4
	assert.InDelta(t, 3.4, er.EReturn, 0.0001)
	assert.Equal(t, 3, er.OutcomesCount)
	// sin bandas, bull/bear colapsan al punto
	assert.InDelta(t, 3.4, er.EReturnBull, 0.0001)
	assert.InDelta(t, 3.4, er.EReturnBear, 0.0001)
	assert.InDelta(t, 0.0, er.ConfidenceDelta, 0.0001)
}

func TestEventExpectedReturn_UsesImpactBounds(t *testing.T) {
	a := estimatedOutcome("A", 0.6, 10)
	a.PriceImpactLow, a.PriceImpactHigh = fp(5.0), fp(15.0)
	b := estimatedOutcome("B", 0.4, -5)
	b.PriceImpactLow, b.PriceImpactHigh = fp(-8.0), fp(-2.0)

	er := EventExpectedReturn([]Outcome{a, b})
	require.NotNil(t, er)
	assert.InDelta(t, 0.6*10+0.4*(-5), er.EReturn, 0.0001)
	assert.InDelta(t, 0.6*15+0.4*(-2), er.EReturnBull, 0.0001)
	assert.InDelta(t, 0.6*5+0.4*(-8), er.EReturnBear, 0.0001)
}

func TestEventExpectedReturn_ConfidenceDelta(t *testing.T) {
	a := estimatedOutcome("A", 0.5, 10)
	a.ProbabilityLow, a.ProbabilityHigh = fp(0.4), fp(0.6) // semiancho 0.1
	b := estimatedOutcome("B", 0.5, -10)
	b.ProbabilityLow, b.ProbabilityHigh = fp(0.45), fp(0.55) // semiancho 0.05

	er := EventExpectedReturn([]Outcome{a, b})
	require.NotNil(t, er)
	assert.InDelta(t, 0.075, er.ConfidenceDelta, 0.0001)
}

func TestEventExpectedReturn_NilOnPartialData(t *testing.T) {
	complete := estimatedOutcome("A", 0.5, 10)
	missing := Outcome{Key: "B", Probability: fp(0.5)} // sin impacto
	assert.Nil(t, EventExpectedReturn([]Outcome{complete, missing}))
	assert.Nil(t, EventExpectedReturn(nil))
}

func TestEventExpectedReturn_NilOnInvalidProbability(t *testing.T) {
	bad := estimatedOutcome("A", 1.5, 10)
	assert.Nil(t, EventExpectedReturn([]Outcome{bad}))
}

func signalEvents(eReturns ...float64) []EventResult {
	evs := make([]EventResult, 0, len(eReturns))
	for _, er := range eReturns {
		evs = append(evs, EventResult{
			Event:  Event{Title: "ev", EventType: "unlock"},
			Return: EventReturn{EReturn: er, EReturnBull: er, EReturnBear: er},
		})
	}
	return evs
}

func TestComputeTokenSignal_Classification(t *testing.T) {
	const threshold, maxER = 3.0, 15.0

	s := ComputeTokenSignal("ARB", signalEvents(3.4), threshold, maxER)
	assert.Equal(t, SignalLong, s.Signal)
	assert.Equal(t, StrengthModerate, s.Strength) // 3.4 < 2×3.0

	s = ComputeTokenSignal("ARB", signalEvents(7.0), threshold, maxER)
	assert.Equal(t, SignalLong, s.Signal)
	assert.Equal(t, StrengthStrong, s.Strength)

	s = ComputeTokenSignal("ARB", signalEvents(-1.0), threshold, maxER)
	assert.Equal(t, SignalNeutral, s.Signal)
	assert.Equal(t, StrengthNone, s.Strength)

	s = ComputeTokenSignal("ARB", signalEvents(-8.5), threshold, maxER)
	assert.Equal(t, SignalShort, s.Signal)
	assert.Equal(t, StrengthStrong, s.Strength)
}

func TestComputeTokenSignal_Capping(t *testing.T) {
	s := ComputeTokenSignal("ARB", signalEvents(12.0, 8.0), 3.0, 15.0)
	assert.True(t, s.Capped)
	assert.InDelta(t, 15.0, s.TotalEReturn, 0.0001)

	s = ComputeTokenSignal("ARB", signalEvents(5.0), 3.0, 15.0)
	assert.False(t, s.Capped)
	assert.InDelta(t, 5.0, s.TotalEReturn, 0.0001)
}

func TestComputeTokenSignal_AveragesConfidence(t *testing.T) {
	evs := []EventResult{
		{Return: EventReturn{EReturn: 1, ConfidenceDelta: 0.02}},
		{Return: EventReturn{EReturn: 1, ConfidenceDelta: 0.06}},
	}
	s := ComputeTokenSignal("OP", evs, 3.0, 15.0)
	assert.InDelta(t, 0.04, s.AvgConfidenceDelta, 0.0001)
	assert.Equal(t, 2, s.EventsCount)
}

func TestComputeTokenSignal_NoEvents(t *testing.T) {
	s := ComputeTokenSignal("OP", nil, 3.0, 15.0)
	assert.Equal(t, SignalNeutral, s.Signal)
	assert.Equal(t, 0, s.EventsCount)
	assert.Equal(t, 0.0, s.AvgConfidenceDelta)
}
