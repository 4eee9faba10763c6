package ports

import (
	"context"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
)

// EventStore persiste el estado de cada etapa del pipeline. Cada etapa
// escribe su salida antes de que la siguiente la lea, de modo que el pipeline
// es reanudable tras un crash sin repetir etapas terminadas.
type EventStore interface {
	// InsertEvent guarda un evento nuevo. Es idempotente por id de contenido:
	// reinsertar el mismo evento es no-op.
	InsertEvent(ctx context.Context, ev domain.Event) error

	// EventsByCoinAndType devuelve los eventos de un (coin_symbol, event_type),
	// el universo de candidatos para la deduplicación fuzzy.
	EventsByCoinAndType(ctx context.Context, coinSymbol, eventType string) ([]domain.Event, error)

	// UnprocessedEvents devuelve eventos sin outcomes generados.
	UnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error)

	// SaveOutcomes reemplaza los outcomes del evento y marca
	// outcomes_generated en la misma transacción.
	SaveOutcomes(ctx context.Context, eventID string, outcomes []domain.Outcome) error

	// OutcomesForEvent devuelve los outcomes de un evento ordenados por key.
	OutcomesForEvent(ctx context.Context, eventID string) ([]domain.Outcome, error)

	// EventsAwaitingProbability devuelve eventos con outcomes pero sin
	// probabilidades estimadas.
	EventsAwaitingProbability(ctx context.Context, limit int) ([]domain.Event, error)

	// EventsAwaitingImpact devuelve eventos con probabilidades pero sin
	// impacto de precio estimado.
	EventsAwaitingImpact(ctx context.Context, limit int) ([]domain.Event, error)

	// UpdateOutcomeProbability asigna probabilidad y bandas a un outcome.
	UpdateOutcomeProbability(ctx context.Context, eventID, key string, prob, low, high float64) error

	// UpdateOutcomeImpact asigna impacto de precio y bandas a un outcome.
	UpdateOutcomeImpact(ctx context.Context, eventID, key string, impact, low, high float64) error

	// CompleteEvents devuelve eventos cuyos outcomes tienen TODOS probabilidad
	// e impacto — el predicado de completitud del agregador de señales.
	CompleteEvents(ctx context.Context, limit int) ([]domain.EventOutcomes, error)

	// SaveRun persiste el resumen de una pasada del pipeline.
	SaveRun(ctx context.Context, run domain.RunSummary) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
