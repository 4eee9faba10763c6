package domain

import "math"

// Direction es la dirección de la señal agregada por token.
type Direction string

const (
	SignalLong    Direction = "LONG"
	SignalShort   Direction = "SHORT"
	SignalNeutral Direction = "NEUTRAL"
)

// Strength gradúa la magnitud de la señal respecto al umbral configurado.
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthNone     Strength = "none"
)

// EventReturn es el retorno esperado de UN evento: Σ(P × impact) con
// escenarios bull/bear usando las bandas de impacto.
type EventReturn struct {
	EReturn         float64
	EReturnBull     float64
	EReturnBear     float64
	ConfidenceDelta float64 // semiancho medio del intervalo de probabilidad
	OutcomesCount   int
}

// EventResult empareja un evento con su retorno esperado ya calculado.
type EventResult struct {
	Event  Event
	Return EventReturn
}

// TokenSignal es la señal direccional agregada de todos los eventos
// completos de un token. Derivado bajo demanda, nunca persistido.
type TokenSignal struct {
	Token              string
	Signal             Direction
	Strength           Strength
	TotalEReturn       float64
	TotalBull          float64
	TotalBear          float64
	AvgConfidenceDelta float64
	EventsCount        int
	Capped             bool
	Events             []EventContribution
}

// EventContribution resume la aportación de un evento a la señal del token.
type EventContribution struct {
	Title     string
	EventType string
	EReturn   float64
}

// EventExpectedReturn calcula E[return] de un evento. Devuelve nil si algún
// outcome no tiene probabilidad e impacto, o si alguna probabilidad está
// fuera de [0,1] — nunca promedia sobre datos parciales.
func EventExpectedReturn(outcomes []Outcome) *EventReturn {
	if len(outcomes) == 0 {
		return nil
	}
	for _, o := range outcomes {
		if o.Probability == nil || o.PriceImpactPct == nil {
			return nil
		}
		if *o.Probability < 0 || *o.Probability > 1 {
			return nil
		}
	}

	var eRet, eBull, eBear, deltaSum float64
	for _, o := range outcomes {
		p := *o.Probability
		impact := *o.PriceImpactPct
		eRet += p * impact
		eBull += p * orElse(o.PriceImpactHigh, impact)
		eBear += p * orElse(o.PriceImpactLow, impact)
		deltaSum += (orElse(o.ProbabilityHigh, p) - orElse(o.ProbabilityLow, p)) / 2
	}

	return &EventReturn{
		EReturn:         round4(eRet),
		EReturnBull:     round4(eBull),
		EReturnBear:     round4(eBear),
		ConfidenceDelta: round4(deltaSum / float64(len(outcomes))),
		OutcomesCount:   len(outcomes),
	}
}

// ComputeTokenSignal suma los E[return] de todos los eventos completos de un
// token, recorta cada suma a ±cap (registrando si hubo recorte) y clasifica:
// LONG/SHORT más allá de ±threshold, strong más allá de 2×threshold.
func ComputeTokenSignal(token string, events []EventResult, threshold, capLimit float64) TokenSignal {
	var totalER, totalBull, totalBear, confSum float64
	contribs := make([]EventContribution, 0, len(events))
	for _, ev := range events {
		totalER += ev.Return.EReturn
		totalBull += ev.Return.EReturnBull
		totalBear += ev.Return.EReturnBear
		confSum += ev.Return.ConfidenceDelta
		contribs = append(contribs, EventContribution{
			Title:     ev.Event.Title,
			EventType: ev.Event.EventType,
			EReturn:   ev.Return.EReturn,
		})
	}

	avgConf := 0.0
	if len(events) > 0 {
		avgConf = confSum / float64(len(events))
	}

	capped := math.Abs(totalER) > capLimit || math.Abs(totalBull) > capLimit || math.Abs(totalBear) > capLimit
	totalER = clamp(totalER, capLimit)
	totalBull = clamp(totalBull, capLimit)
	totalBear = clamp(totalBear, capLimit)

	signal, strength := classify(totalER, threshold)

	return TokenSignal{
		Token:              token,
		Signal:             signal,
		Strength:           strength,
		TotalEReturn:       round4(totalER),
		TotalBull:          round4(totalBull),
		TotalBear:          round4(totalBear),
		AvgConfidenceDelta: round4(avgConf),
		EventsCount:        len(events),
		Capped:             capped,
		Events:             contribs,
	}
}

// classify decide dirección y fuerza según el umbral.
func classify(eReturn, threshold float64) (Direction, Strength) {
	switch {
	case eReturn > threshold:
		if eReturn > threshold*2 {
			return SignalLong, StrengthStrong
		}
		return SignalLong, StrengthModerate
	case eReturn < -threshold:
		if eReturn < -threshold*2 {
			return SignalShort, StrengthStrong
		}
		return SignalShort, StrengthModerate
	default:
		return SignalNeutral, StrengthNone
	}
}

// clamp recorta val al rango [-limit, +limit].
func clamp(val, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, val))
}

// orElse devuelve *val si no es nil, o fallback.
func orElse(val *float64, fallback float64) float64 {
	if val != nil {
		return *val
	}
	return fallback
}

// round4 redondea a 4 decimales.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
