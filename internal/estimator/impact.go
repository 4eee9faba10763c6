package estimator

// impact.go — estimación del impacto en precio, espejo del estimador de
// probabilidades pero en porcentaje [-50, +50] y sin renormalizar (los
// impactos no son un simplex de probabilidad).

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"github.com/alejandrodnm/cryptoscanner/internal/ports"
)

const (
	// Rango válido de impacto en precio, en porcentaje.
	impactMin = -50.0
	impactMax = 50.0
)

// ImpactEstimator estima el impacto en precio de cada outcome de un evento.
type ImpactEstimator struct {
	completer ports.Completer
}

// NewImpactEstimator crea el estimador sobre el Completer dado.
func NewImpactEstimator(completer ports.Completer) *ImpactEstimator {
	return &ImpactEstimator{completer: completer}
}

// Estimate ejecuta 3 samples y devuelve {key → Estimate} con el impacto en
// porcentaje, o un mapa vacío si ningún sample fue válido o el set de
// outcomes no tiene 3-4 miembros. Nunca devuelve error.
func (e *ImpactEstimator) Estimate(ctx context.Context, event domain.Event, outcomes []domain.Outcome) map[string]Estimate {
	expected := expectedKeys(outcomes)
	if len(expected) < 3 || len(expected) > 4 {
		slog.Error("impact: invalid outcome count", "event_id", event.ID, "count", len(expected))
		return map[string]Estimate{}
	}

	prompt := Render(impactPrompt, map[string]string{
		"coin_symbol":   event.CoinSymbol,
		"event_type":    event.EventType,
		"title":         event.Title,
		"date_event":    dateOrUnknown(event.DateEvent),
		"importance":    string(event.Importance),
		"outcomes_text": outcomeLines(outcomes, true),
	})

	samples := make([]map[string]float64, 0, len(Temperatures))
	for _, temp := range Temperatures {
		if s := e.sample(ctx, prompt, temp, expected); s != nil {
			samples = append(samples, s)
		}
	}

	result := aggregateImpacts(samples, expected)
	if len(result) == 0 {
		slog.Error("impact: all samples failed", "coin", event.CoinSymbol, "event_id", event.ID)
	} else {
		slog.Info("impact estimated", "coin", event.CoinSymbol,
			"outcomes", len(result), "samples_ok", len(samples), "samples", len(Temperatures))
	}
	return result
}

// sample hace un call → parse → validate → sign check → clamp. nil si falla.
func (e *ImpactEstimator) sample(ctx context.Context, prompt string, temperature float64, expected []string) map[string]float64 {
	text, err := e.completer.Complete(ctx, prompt, temperature, sampleMaxTokens)
	if err != nil {
		slog.Warn("impact: completion failed", "temperature", temperature, "err", err)
		return nil
	}

	impacts, ok := numberMap(text, expected)
	if !ok || !validImpacts(impacts, expected) {
		slog.Warn("impact: invalid sample", "temperature", temperature)
		return nil
	}

	impacts = correctSigns(impacts, expected)
	return clampImpacts(impacts)
}

// validImpacts exige key set exacto y valores en [-50, 50].
func validImpacts(impacts map[string]float64, expected []string) bool {
	if len(impacts) != len(expected) {
		return false
	}
	for _, key := range expected {
		v, ok := impacts[key]
		if !ok || v < impactMin || v > impactMax {
			return false
		}
	}
	return true
}

// correctSigns aplica la corrección de coherencia de signo: un evento no
// puede ser todo-subida ni todo-bajada contando sus outcomes negativos y
// cancelados. Si TODOS los impactos no-cero comparten signo, se invierte el
// primero (todos negativos) o el último (todos positivos) en orden de key,
// y se loggea en vez de descartar el sample. Heurística heredada tal cual.
func correctSigns(impacts map[string]float64, expected []string) map[string]float64 {
	nonZero := 0
	allNeg, allPos := true, true
	for _, v := range impacts {
		if v == 0 {
			continue
		}
		nonZero++
		if v > 0 {
			allNeg = false
		}
		if v < 0 {
			allPos = false
		}
	}
	if nonZero < 2 || (!allNeg && !allPos) {
		return impacts
	}

	corrected := make(map[string]float64, len(impacts))
	for k, v := range impacts {
		corrected[k] = v
	}
	if allNeg {
		first := expected[0]
		corrected[first] = math.Abs(corrected[first])
		slog.Warn("impact: sign fix, all negative", "flipped_key", first, "value", corrected[first])
	} else {
		last := expected[len(expected)-1]
		corrected[last] = -math.Abs(corrected[last])
		slog.Warn("impact: sign fix, all positive", "flipped_key", last, "value", corrected[last])
	}
	return corrected
}

// clampImpacts recorta a [-50, 50] y redondea a 2 decimales.
func clampImpacts(impacts map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(impacts))
	for k, v := range impacts {
		out[k] = round2(math.Max(impactMin, math.Min(impactMax, v)))
	}
	return out
}

// aggregateImpacts combina 0-3 samples válidos. Un solo sample usa banda
// v ± max(0.3|v|, 1.0); con 2-3, mediana (elemento superior) y min/max.
func aggregateImpacts(samples []map[string]float64, expected []string) map[string]Estimate {
	if len(samples) == 0 {
		return map[string]Estimate{}
	}

	if len(samples) == 1 {
		out := make(map[string]Estimate, len(expected))
		for k, v := range samples[0] {
			delta := math.Max(math.Abs(v)*0.3, 1.0)
			out[k] = Estimate{
				Value: v,
				Low:   round2(v - delta),
				High:  round2(v + delta),
			}
		}
		return out
	}

	out := make(map[string]Estimate, len(expected))
	for _, k := range expected {
		var vals []float64
		for _, s := range samples {
			if v, ok := s[k]; ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		out[k] = Estimate{
			Value: round2(vals[len(vals)/2]),
			Low:   round2(vals[0]),
			High:  round2(vals[len(vals)-1]),
		}
	}
	return out
}
