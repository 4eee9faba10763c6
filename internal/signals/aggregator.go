package signals

// aggregator.go — agregación de señales por token a partir de los eventos
// completos del storage. Las señales se derivan bajo demanda en cada run,
// nunca se persisten: siempre reflejan el último estado de las estimaciones.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"github.com/alejandrodnm/cryptoscanner/internal/ports"
)

// Aggregator calcula señales direccionales por token.
type Aggregator struct {
	store     ports.EventStore
	threshold float64 // |E[return]| mínimo para señal activa, en %
	capLimit  float64 // tope de |E[return]| agregado por token, en %
}

// NewAggregator crea el agregador con el umbral y tope dados.
func NewAggregator(store ports.EventStore, threshold, capLimit float64) *Aggregator {
	return &Aggregator{store: store, threshold: threshold, capLimit: capLimit}
}

// Generate devuelve hasta limit señales, ordenadas por |E[return]| total
// descendente. Los eventos cuyo retorno no puede calcularse se saltan con
// warning — un evento corrupto no tumba las señales del resto.
func (a *Aggregator) Generate(ctx context.Context, limit int) ([]domain.TokenSignal, error) {
	// margen 10x: varios eventos colapsan en una señal por token
	complete, err := a.store.CompleteEvents(ctx, limit*10)
	if err != nil {
		return nil, fmt.Errorf("signals.Generate: load complete events: %w", err)
	}
	if len(complete) == 0 {
		return nil, nil
	}

	byToken := make(map[string][]domain.EventResult)
	for _, eo := range complete {
		ret := domain.EventExpectedReturn(eo.Outcomes)
		if ret == nil {
			slog.Warn("signals: skipping event with incomplete estimates",
				"event_id", eo.Event.ID, "title", eo.Event.Title)
			continue
		}
		byToken[eo.Event.CoinSymbol] = append(byToken[eo.Event.CoinSymbol], domain.EventResult{
			Event:  eo.Event,
			Return: *ret,
		})
	}

	signals := make([]domain.TokenSignal, 0, len(byToken))
	for token, events := range byToken {
		signals = append(signals, domain.ComputeTokenSignal(token, events, a.threshold, a.capLimit))
	}

	sort.Slice(signals, func(i, j int) bool {
		return math.Abs(signals[i].TotalEReturn) > math.Abs(signals[j].TotalEReturn)
	})
	if len(signals) > limit {
		signals = signals[:limit]
	}
	return signals, nil
}
