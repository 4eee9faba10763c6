package pipeline

// pipeline.go — orquestador de las etapas: noticias → eventos → outcomes →
// probabilidades → impactos → señales.
//
// Cada etapa persiste su salida antes de que la siguiente arranque, y cada
// etapa lee su cola desde el storage (no de la etapa anterior en memoria):
// un run interrumpido retoma el trabajo pendiente en el siguiente ciclo.
// Un fallo por evento degrada cobertura; solo los fallos de configuración
// del LLM abortan el run.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"github.com/alejandrodnm/cryptoscanner/internal/estimator"
	"github.com/alejandrodnm/cryptoscanner/internal/extractor"
	"github.com/alejandrodnm/cryptoscanner/internal/outcomes"
	"github.com/alejandrodnm/cryptoscanner/internal/ports"
	"github.com/alejandrodnm/cryptoscanner/internal/signals"
	"github.com/google/uuid"
)

// Config contiene la configuración del pipeline.
type Config struct {
	ScanInterval    time.Duration
	EventBatch      int     // eventos por etapa y por run
	SignalLimit     int     // señales máximas por run
	SignalThreshold float64 // |E[return]| mínimo para señal activa, en %
	SignalCap       float64 // tope de |E[return]| por token, en %
	DryRun          bool
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		ScanInterval:    30 * time.Minute,
		EventBatch:      100,
		SignalLimit:     50,
		SignalThreshold: 3.0,
		SignalCap:       15.0,
	}
}

// Estimator produce estimaciones por outcome (probabilidad o impacto).
type Estimator interface {
	Estimate(ctx context.Context, event domain.Event, outs []domain.Outcome) map[string]estimator.Estimate
}

// Pipeline es el orquestador principal.
type Pipeline struct {
	cfg        Config
	sources    []ports.NewsSource
	store      ports.EventStore
	extractor  *extractor.Extractor
	generator  *outcomes.Generator
	probs      Estimator
	impacts    Estimator
	aggregator *signals.Aggregator
	notifier   ports.Notifier
}

// New crea un Pipeline con todas las dependencias inyectadas.
func New(
	cfg Config,
	sources []ports.NewsSource,
	store ports.EventStore,
	completer ports.Completer,
	probs, impacts Estimator,
	notifier ports.Notifier,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		sources:    sources,
		store:      store,
		extractor:  extractor.NewExtractor(completer),
		generator:  outcomes.NewGenerator(completer),
		probs:      probs,
		impacts:    impacts,
		aggregator: signals.NewAggregator(store, cfg.SignalThreshold, cfg.SignalCap),
		notifier:   notifier,
	}
}

// Run ejecuta el loop del pipeline hasta que el contexto se cancele.
// Si cfg.DryRun está activo, solo ejecuta un ciclo.
func (p *Pipeline) Run(ctx context.Context) error {
	slog.Info("pipeline starting",
		"interval", p.cfg.ScanInterval,
		"sources", len(p.sources),
		"dry_run", p.cfg.DryRun,
	)

	if err := p.runCycle(ctx); err != nil {
		slog.Error("pipeline run failed", "err", err)
		if p.cfg.DryRun {
			return err
		}
	}

	if p.cfg.DryRun {
		return nil
	}

	ticker := time.NewTicker(p.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pipeline stopped")
			return nil
		case <-ticker.C:
			if err := p.runCycle(ctx); err != nil {
				slog.Error("pipeline run failed", "err", err)
			}
		}
	}
}

// runCycle ejecuta un run completo, notifica y persiste el resumen.
func (p *Pipeline) runCycle(ctx context.Context) error {
	run, sigs, err := p.RunOnce(ctx)
	if err != nil {
		return err
	}

	if err := p.notifier.Notify(ctx, sigs); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	if err := p.store.SaveRun(ctx, run); err != nil {
		slog.Warn("save run error", "err", err)
	}

	slog.Info("pipeline run complete",
		"run_id", run.ID,
		"news", run.NewsFetched,
		"new_events", run.EventsNew,
		"signals", run.Signals,
		"duration", run.Duration.Round(time.Millisecond),
	)
	return nil
}

// RunOnce ejecuta exactamente un run de todas las etapas y devuelve el
// resumen junto con las señales calculadas.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.RunSummary, []domain.TokenSignal, error) {
	run := domain.RunSummary{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	news, err := p.ingestNews(ctx, &run)
	if err != nil {
		return run, nil, err
	}
	if err := p.extractAndSave(ctx, news, &run); err != nil {
		return run, nil, err
	}
	if err := p.generateOutcomes(ctx, &run); err != nil {
		return run, nil, err
	}
	if err := p.estimateProbabilities(ctx, &run); err != nil {
		return run, nil, err
	}
	if err := p.estimateImpacts(ctx, &run); err != nil {
		return run, nil, err
	}

	sigs, err := p.aggregator.Generate(ctx, p.cfg.SignalLimit)
	if err != nil {
		return run, nil, fmt.Errorf("pipeline.RunOnce: signals: %w", err)
	}
	run.Signals = len(sigs)
	run.Duration = time.Since(run.StartedAt)
	return run, sigs, nil
}

// ingestNews junta los titulares de todas las fuentes. Una fuente caída se
// loggea y se salta.
func (p *Pipeline) ingestNews(ctx context.Context, run *domain.RunSummary) ([]domain.NewsItem, error) {
	var news []domain.NewsItem
	for _, src := range p.sources {
		items, err := src.FetchNews(ctx)
		if err != nil {
			slog.Warn("news source failed", "source", src.Name(), "err", err)
			continue
		}
		for i := range items {
			if items[i].Source == "" {
				items[i].Source = src.Name()
			}
		}
		news = append(news, items...)
		slog.Info("news fetched", "source", src.Name(), "items", len(items))
	}
	run.NewsFetched = len(news)
	return news, ctx.Err()
}

// extractAndSave extrae eventos de las noticias y guarda los que no son
// duplicados (ni exactos por id, ni fuzzy por título).
func (p *Pipeline) extractAndSave(ctx context.Context, news []domain.NewsItem, run *domain.RunSummary) error {
	if len(news) == 0 {
		return nil
	}

	for _, cand := range p.extractor.Extract(ctx, news) {
		ev := domain.Event{
			ID:         domain.EventID(cand.CoinSymbol, cand.EventType, cand.Title),
			CoinSymbol: cand.CoinSymbol,
			EventType:  cand.EventType,
			Title:      cand.Title,
			DateEvent:  cand.DateEvent,
			Importance: cand.Importance,
			SourceName: sourceFor(cand, news),
			CreatedAt:  time.Now().UTC(),
		}

		existing, err := p.store.EventsByCoinAndType(ctx, ev.CoinSymbol, ev.EventType)
		if err != nil {
			return fmt.Errorf("pipeline.extractAndSave: load candidates: %w", err)
		}
		if domain.IsDuplicate(existing, ev) {
			slog.Info("duplicate event skipped", "coin", ev.CoinSymbol, "title", ev.Title)
			continue
		}
		if hasID(existing, ev.ID) {
			continue
		}

		if err := p.store.InsertEvent(ctx, ev); err != nil {
			return fmt.Errorf("pipeline.extractAndSave: insert: %w", err)
		}
		run.EventsNew++
	}
	return nil
}

// generateOutcomes procesa la cola de eventos sin outcomes.
func (p *Pipeline) generateOutcomes(ctx context.Context, run *domain.RunSummary) error {
	events, err := p.store.UnprocessedEvents(ctx, p.cfg.EventBatch)
	if err != nil {
		return fmt.Errorf("pipeline.generateOutcomes: load queue: %w", err)
	}

	for _, ev := range events {
		outs := p.generator.Generate(ctx, ev)
		if !outcomes.Validate(outs) {
			slog.Warn("invalid outcome set, skipping event", "event_id", ev.ID)
			continue
		}
		if err := p.store.SaveOutcomes(ctx, ev.ID, outs); err != nil {
			return fmt.Errorf("pipeline.generateOutcomes: save: %w", err)
		}
		run.OutcomesGen++
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// estimateProbabilities procesa la cola de eventos con outcomes sin estimar.
func (p *Pipeline) estimateProbabilities(ctx context.Context, run *domain.RunSummary) error {
	events, err := p.store.EventsAwaitingProbability(ctx, p.cfg.EventBatch)
	if err != nil {
		return fmt.Errorf("pipeline.estimateProbabilities: load queue: %w", err)
	}

	for _, ev := range events {
		outs, err := p.store.OutcomesForEvent(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("pipeline.estimateProbabilities: load outcomes: %w", err)
		}

		result := p.probs.Estimate(ctx, ev, outs)
		if len(result) == 0 {
			continue // quedará en la cola para el siguiente run
		}
		for key, est := range result {
			if err := p.store.UpdateOutcomeProbability(ctx, ev.ID, key, est.Value, est.Low, est.High); err != nil {
				return fmt.Errorf("pipeline.estimateProbabilities: update %s/%s: %w", ev.ID, key, err)
			}
		}
		run.ProbEvents++
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// estimateImpacts procesa la cola de eventos con probabilidades pero sin
// impacto de precio.
func (p *Pipeline) estimateImpacts(ctx context.Context, run *domain.RunSummary) error {
	events, err := p.store.EventsAwaitingImpact(ctx, p.cfg.EventBatch)
	if err != nil {
		return fmt.Errorf("pipeline.estimateImpacts: load queue: %w", err)
	}

	for _, ev := range events {
		outs, err := p.store.OutcomesForEvent(ctx, ev.ID)
		if err != nil {
			return fmt.Errorf("pipeline.estimateImpacts: load outcomes: %w", err)
		}

		result := p.impacts.Estimate(ctx, ev, outs)
		if len(result) == 0 {
			continue
		}
		for key, est := range result {
			if err := p.store.UpdateOutcomeImpact(ctx, ev.ID, key, est.Value, est.Low, est.High); err != nil {
				return fmt.Errorf("pipeline.estimateImpacts: update %s/%s: %w", ev.ID, key, err)
			}
		}
		run.ImpactEvents++
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// sourceFor resuelve el source_name del evento desde la noticia que lo
// originó, si el extractor la identificó.
func sourceFor(cand extractor.Candidate, news []domain.NewsItem) string {
	if cand.NewsIndex != nil && *cand.NewsIndex >= 0 && *cand.NewsIndex < len(news) {
		return news[*cand.NewsIndex].Source
	}
	return ""
}

func hasID(events []domain.Event, id string) bool {
	for _, ev := range events {
		if ev.ID == id {
			return true
		}
	}
	return false
}
