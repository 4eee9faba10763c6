package estimator

// probability.go — estimación de probabilidades por multi-sampling.
//
// El LLM es un estimador estocástico ruidoso: 3 samples independientes a
// temperaturas crecientes, cada uno validado y normalizado por separado, y
// la mediana como agregado. Un sample inválido aporta nada (nunca error);
// cero samples válidos → resultado vacío y el caller salta el evento.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"github.com/alejandrodnm/cryptoscanner/internal/jsonx"
	"github.com/alejandrodnm/cryptoscanner/internal/ports"
)

// Temperatures son las 3 temperaturas de sampling, de conservadora a creativa.
var Temperatures = []float64{0.3, 0.5, 0.7}

const (
	sampleMaxTokens = 200

	// Banda de tolerancia para la suma de probabilidades del modelo.
	// Valores empíricos heredados, sin derivación formal — no "arreglar".
	sumToleranceLow  = 0.8
	sumToleranceHigh = 1.2

	// Ningún outcome se trata como imposible ni como seguro.
	probFloor = 0.02
	probCeil  = 0.85
)

// Estimate es el agregado por outcome: valor puntual más banda observada.
type Estimate struct {
	Value float64
	Low   float64
	High  float64
}

// ProbabilityEstimator estima la distribución de probabilidad de los
// outcomes de un evento.
type ProbabilityEstimator struct {
	completer ports.Completer
}

// NewProbabilityEstimator crea el estimador sobre el Completer dado.
func NewProbabilityEstimator(completer ports.Completer) *ProbabilityEstimator {
	return &ProbabilityEstimator{completer: completer}
}

// Estimate ejecuta 3 samples y devuelve {key → Estimate}, o un mapa vacío si
// ningún sample fue válido o el set de outcomes no tiene 3-4 miembros.
// Nunca devuelve error: el fallo total degrada cobertura, no aborta el batch.
func (e *ProbabilityEstimator) Estimate(ctx context.Context, event domain.Event, outcomes []domain.Outcome) map[string]Estimate {
	expected := expectedKeys(outcomes)
	if len(expected) < 3 || len(expected) > 4 {
		slog.Error("probability: invalid outcome count", "event_id", event.ID, "count", len(expected))
		return map[string]Estimate{}
	}

	prompt := Render(probabilityPrompt, map[string]string{
		"coin_symbol":   event.CoinSymbol,
		"event_type":    event.EventType,
		"title":         event.Title,
		"date_event":    dateOrUnknown(event.DateEvent),
		"importance":    string(event.Importance),
		"outcomes_text": outcomeLines(outcomes, false),
	})

	samples := make([]map[string]float64, 0, len(Temperatures))
	for _, temp := range Temperatures {
		if s := e.sample(ctx, prompt, temp, expected); s != nil {
			samples = append(samples, s)
		}
	}

	result := aggregateProbabilities(samples, expected)
	if len(result) == 0 {
		slog.Error("probability: all samples failed", "coin", event.CoinSymbol, "event_id", event.ID)
	} else {
		slog.Info("probability estimated", "coin", event.CoinSymbol,
			"outcomes", len(result), "samples_ok", len(samples), "samples", len(Temperatures))
	}
	return result
}

// sample hace un call → parse → validate → normalize. nil si algo falla.
func (e *ProbabilityEstimator) sample(ctx context.Context, prompt string, temperature float64, expected []string) map[string]float64 {
	text, err := e.completer.Complete(ctx, prompt, temperature, sampleMaxTokens)
	if err != nil {
		slog.Warn("probability: completion failed", "temperature", temperature, "err", err)
		return nil
	}

	probs, ok := numberMap(text, expected)
	if !ok || !validProbabilities(probs, expected) {
		slog.Warn("probability: invalid sample", "temperature", temperature)
		return nil
	}
	return normalizeProbabilities(probs)
}

// validProbabilities exige key set exacto, valores en [0,1] y suma dentro
// de la banda de tolerancia.
func validProbabilities(probs map[string]float64, expected []string) bool {
	if len(probs) != len(expected) {
		return false
	}
	sum := 0.0
	for _, key := range expected {
		v, ok := probs[key]
		if !ok || v < 0 || v > 1 {
			return false
		}
		sum += v
	}
	return sum >= sumToleranceLow && sum <= sumToleranceHigh
}

// normalizeProbabilities recorta cada valor a [0.02, 0.85] y reescala para
// que la suma sea exactamente 1.0.
func normalizeProbabilities(probs map[string]float64) map[string]float64 {
	clamped := make(map[string]float64, len(probs))
	total := 0.0
	for k, v := range probs {
		c := math.Max(probFloor, math.Min(probCeil, v))
		clamped[k] = c
		total += c
	}
	out := make(map[string]float64, len(clamped))
	for k, v := range clamped {
		out[k] = round4(v / total)
	}
	return out
}

// aggregateProbabilities combina 0-3 samples válidos.
// Un solo sample infla la incertidumbre (low=0.7p, high=min(1.3p, 0.85)).
// Con 2-3, mediana por key (elemento superior si son pares) y min/max como
// banda; las medianas se renormalizan a suma 1, las bandas NO (representan
// dispersión observada, no una distribución).
func aggregateProbabilities(samples []map[string]float64, expected []string) map[string]Estimate {
	if len(samples) == 0 {
		return map[string]Estimate{}
	}

	if len(samples) == 1 {
		out := make(map[string]Estimate, len(expected))
		for k, v := range samples[0] {
			out[k] = Estimate{
				Value: v,
				Low:   round4(v * 0.7),
				High:  round4(math.Min(v*1.3, probCeil)),
			}
		}
		return out
	}

	raw := make(map[string]float64, len(expected))
	out := make(map[string]Estimate, len(expected))
	total := 0.0
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
		raw[k] = vals[len(vals)/2]
		total += raw[k]
		out[k] = Estimate{Low: round4(vals[0]), High: round4(vals[len(vals)-1])}
	}

	if total > 0 {
		for k, median := range raw {
			est := out[k]
			est.Value = round4(median / total)
			out[k] = est
		}
	}
	return out
}

// --- helpers compartidos con el impact estimator ---

// expectedKeys devuelve las keys únicas del set de outcomes.
func expectedKeys(outcomes []domain.Outcome) []string {
	seen := make(map[string]bool, len(outcomes))
	keys := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if !seen[o.Key] {
			seen[o.Key] = true
			keys = append(keys, o.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

// outcomeLines formatea los outcomes para el prompt:
//
//	A) [positive] Listing on time with high volume (P=0.45)
func outcomeLines(outcomes []domain.Outcome, withProbability bool) string {
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		line := fmt.Sprintf("%s) [%s] %s", o.Key, o.Category, o.Text)
		if withProbability {
			p := 0.0
			if o.Probability != nil {
				p = *o.Probability
			}
			line += fmt.Sprintf(" (P=%.2f)", p)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// numberMap extrae un objeto JSON del texto y lo reduce a {key esperada →
// float64}. Keys no esperadas se descartan; un valor no numérico en una key
// esperada invalida el sample entero.
func numberMap(text string, expected []string) (map[string]float64, bool) {
	obj, ok := jsonx.ExtractObject(text)
	if !ok {
		return nil, false
	}

	isExpected := make(map[string]bool, len(expected))
	for _, k := range expected {
		isExpected[k] = true
	}

	out := make(map[string]float64)
	for k, v := range obj {
		if !isExpected[k] {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		out[k] = f
	}
	return out, true
}

func dateOrUnknown(date string) string {
	if date == "" {
		return "unknown"
	}
	return date
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
