package storage

// sqlite.go — persistencia del pipeline de eventos.
//
// Cada etapa del pipeline escribe su salida antes de que la siguiente la lea:
// events → outcomes → probabilidades → impactos. Las queries de "pendiente"
// (UnprocessedEvents, EventsAwaitingProbability, EventsAwaitingImpact) hacen
// del schema una cola de trabajo reanudable — tras un crash, el siguiente run
// retoma donde quedó sin repetir etapas.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Un evento por (coin, tipo, título); el id es un hash de contenido
CREATE TABLE IF NOT EXISTS events (
    id                 TEXT PRIMARY KEY,
    coin_symbol        TEXT NOT NULL,
    event_type         TEXT NOT NULL,
    title              TEXT NOT NULL,
    date_event         TEXT,
    importance         TEXT NOT NULL DEFAULT 'medium',
    source_name        TEXT,
    created_at         DATETIME NOT NULL,
    outcomes_generated INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_events_coin_type ON events(coin_symbol, event_type);
CREATE INDEX IF NOT EXISTS idx_events_pending   ON events(outcomes_generated, created_at DESC);

-- Outcomes MECE de cada evento; los estimados quedan NULL hasta su etapa
CREATE TABLE IF NOT EXISTS event_outcomes (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id          TEXT NOT NULL,
    outcome_key       TEXT NOT NULL,
    outcome_text      TEXT NOT NULL,
    outcome_category  TEXT NOT NULL,
    is_template       INTEGER NOT NULL DEFAULT 1,
    created_at        DATETIME NOT NULL,
    probability       REAL,
    probability_low   REAL,
    probability_high  REAL,
    price_impact_pct  REAL,
    price_impact_low  REAL,
    price_impact_high REAL,
    UNIQUE(event_id, outcome_key)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_event ON event_outcomes(event_id);

-- Resumen ligero por pasada del pipeline, una fila por run
CREATE TABLE IF NOT EXISTS runs (
    id            TEXT PRIMARY KEY,
    started_at    DATETIME NOT NULL,
    duration_ms   INTEGER NOT NULL,
    news_fetched  INTEGER NOT NULL DEFAULT 0,
    events_new    INTEGER NOT NULL DEFAULT 0,
    outcomes_gen  INTEGER NOT NULL DEFAULT 0,
    prob_events   INTEGER NOT NULL DEFAULT 0,
    impact_events INTEGER NOT NULL DEFAULT 0,
    signals       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_at ON runs(started_at DESC);
`

const (
	eventColumns = `id, coin_symbol, event_type, title,
       COALESCE(date_event, ''), importance, COALESCE(source_name, ''),
       created_at, outcomes_generated`

	// la misma lista con alias de tabla, para los JOIN
	eventColumnsE = `e.id, e.coin_symbol, e.event_type, e.title,
       COALESCE(e.date_event, ''), e.importance, COALESCE(e.source_name, ''),
       e.created_at, e.outcomes_generated`
)

// SQLiteStore implementa ports.EventStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// runRetention: los resúmenes de run más viejos se podan al abrir.
const runRetention = 90 * 24 * time.Hour

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada, aplica
// el schema y poda los resúmenes de run fuera de retención.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	if _, err := db.Exec(
		`DELETE FROM runs WHERE started_at < ?`,
		time.Now().UTC().Add(-runRetention),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: prune runs: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// InsertEvent guarda un evento. INSERT OR IGNORE: el id es hash de contenido,
// así que reinsertar el mismo evento es no-op.
func (s *SQLiteStore) InsertEvent(ctx context.Context, ev domain.Event) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO events
			(id, coin_symbol, event_type, title, date_event, importance, source_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.CoinSymbol, ev.EventType, ev.Title,
		nullIfEmpty(ev.DateEvent), string(ev.Importance), nullIfEmpty(ev.SourceName),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("storage.InsertEvent: %s: %w", ev.ID, err)
	}
	return nil
}

// EventsByCoinAndType devuelve los eventos de un (coin, tipo) — el universo
// de candidatos para la deduplicación fuzzy.
func (s *SQLiteStore) EventsByCoinAndType(ctx context.Context, coinSymbol, eventType string) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE coin_symbol = ? AND event_type = ?`,
		coinSymbol, eventType,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.EventsByCoinAndType: query: %w", err)
	}
	return scanEvents(rows)
}

// UnprocessedEvents devuelve eventos sin outcomes generados, recientes primero.
func (s *SQLiteStore) UnprocessedEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE outcomes_generated = 0
		 ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.UnprocessedEvents: query: %w", err)
	}
	return scanEvents(rows)
}

// SaveOutcomes reemplaza los outcomes del evento (regeneración limpia) y marca
// outcomes_generated, todo en la misma transacción: o queda el set completo
// con el flag puesto, o no queda nada.
func (s *SQLiteStore) SaveOutcomes(ctx context.Context, eventID string, outcomes []domain.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveOutcomes: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM event_outcomes WHERE event_id = ?`, eventID,
	); err != nil {
		return fmt.Errorf("storage.SaveOutcomes: delete old: %w", err)
	}

	now := time.Now().UTC()
	for _, o := range outcomes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO event_outcomes
				(event_id, outcome_key, outcome_text, outcome_category, is_template, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			eventID, o.Key, o.Text, string(o.Category), boolToInt(o.IsTemplate), now,
		); err != nil {
			return fmt.Errorf("storage.SaveOutcomes: insert %s/%s: %w", eventID, o.Key, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET outcomes_generated = 1 WHERE id = ?`, eventID,
	); err != nil {
		return fmt.Errorf("storage.SaveOutcomes: mark generated: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveOutcomes: commit: %w", err)
	}
	return nil
}

// OutcomesForEvent devuelve los outcomes de un evento ordenados por key.
func (s *SQLiteStore) OutcomesForEvent(ctx context.Context, eventID string) ([]domain.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, outcome_key, outcome_text, outcome_category, is_template,
		       probability, probability_low, probability_high,
		       price_impact_pct, price_impact_low, price_impact_high
		FROM event_outcomes WHERE event_id = ? ORDER BY outcome_key`, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.OutcomesForEvent: query: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.OutcomesForEvent: scan: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// EventsAwaitingProbability devuelve eventos con outcomes pero con alguna
// probabilidad sin estimar.
func (s *SQLiteStore) EventsAwaitingProbability(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT `+eventColumnsE+`
		FROM events e
		JOIN event_outcomes eo ON e.id = eo.event_id
		WHERE eo.probability IS NULL
		ORDER BY e.created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.EventsAwaitingProbability: query: %w", err)
	}
	return scanEvents(rows)
}

// EventsAwaitingImpact devuelve eventos con probabilidades pero con algún
// impacto de precio sin estimar.
func (s *SQLiteStore) EventsAwaitingImpact(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT `+eventColumnsE+`
		FROM events e
		JOIN event_outcomes eo ON e.id = eo.event_id
		WHERE eo.probability IS NOT NULL AND eo.price_impact_pct IS NULL
		ORDER BY e.created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.EventsAwaitingImpact: query: %w", err)
	}
	return scanEvents(rows)
}

// UpdateOutcomeProbability asigna probabilidad y bandas a un outcome.
func (s *SQLiteStore) UpdateOutcomeProbability(ctx context.Context, eventID, key string, prob, low, high float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE event_outcomes
		SET probability = ?, probability_low = ?, probability_high = ?
		WHERE event_id = ? AND outcome_key = ?`,
		prob, low, high, eventID, key,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateOutcomeProbability: %s/%s: %w", eventID, key, err)
	}
	return nil
}

// UpdateOutcomeImpact asigna impacto de precio y bandas a un outcome.
func (s *SQLiteStore) UpdateOutcomeImpact(ctx context.Context, eventID, key string, impact, low, high float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE event_outcomes
		SET price_impact_pct = ?, price_impact_low = ?, price_impact_high = ?
		WHERE event_id = ? AND outcome_key = ?`,
		impact, low, high, eventID, key,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateOutcomeImpact: %s/%s: %w", eventID, key, err)
	}
	return nil
}

// CompleteEvents devuelve eventos cuyos outcomes tienen TODOS probabilidad e
// impacto. La subquery excluye cualquier evento con al menos un outcome a
// medias: un evento parcialmente estimado no entra en el cálculo de señales.
func (s *SQLiteStore) CompleteEvents(ctx context.Context, limit int) ([]domain.EventOutcomes, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumnsE+`
		FROM events e
		WHERE e.outcomes_generated = 1
		  AND e.id IN (SELECT event_id FROM event_outcomes)
		  AND e.id NOT IN (
		      SELECT event_id FROM event_outcomes
		      WHERE probability IS NULL OR price_impact_pct IS NULL
		  )
		ORDER BY e.coin_symbol, e.created_at DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.CompleteEvents: query: %w", err)
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("storage.CompleteEvents: scan: %w", err)
	}

	result := make([]domain.EventOutcomes, 0, len(events))
	for _, ev := range events {
		outcomes, err := s.OutcomesForEvent(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, domain.EventOutcomes{Event: ev, Outcomes: outcomes})
	}
	return result, nil
}

// SaveRun persiste el resumen de una pasada del pipeline.
func (s *SQLiteStore) SaveRun(ctx context.Context, run domain.RunSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
			(id, started_at, duration_ms, news_fetched, events_new,
			 outcomes_gen, prob_events, impact_events, signals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.Duration.Milliseconds(),
		run.NewsFetched, run.EventsNew, run.OutcomesGen,
		run.ProbEvents, run.ImpactEvents, run.Signals,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: %s: %w", run.ID, err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var importance string
		var generated int
		if err := rows.Scan(
			&ev.ID, &ev.CoinSymbol, &ev.EventType, &ev.Title,
			&ev.DateEvent, &importance, &ev.SourceName,
			&ev.CreatedAt, &generated,
		); err != nil {
			return nil, fmt.Errorf("storage: scan event: %w", err)
		}
		ev.Importance = domain.Importance(importance)
		ev.OutcomesGen = generated == 1
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanOutcome(rows *sql.Rows) (domain.Outcome, error) {
	var o domain.Outcome
	var category string
	var isTemplate int
	var prob, probLow, probHigh sql.NullFloat64
	var impact, impactLow, impactHigh sql.NullFloat64

	if err := rows.Scan(
		&o.EventID, &o.Key, &o.Text, &category, &isTemplate,
		&prob, &probLow, &probHigh,
		&impact, &impactLow, &impactHigh,
	); err != nil {
		return domain.Outcome{}, err
	}

	o.Category = domain.Category(category)
	o.IsTemplate = isTemplate == 1
	o.Probability = nullableFloat(prob)
	o.ProbabilityLow = nullableFloat(probLow)
	o.ProbabilityHigh = nullableFloat(probHigh)
	o.PriceImpactPct = nullableFloat(impact)
	o.PriceImpactLow = nullableFloat(impactLow)
	o.PriceImpactHigh = nullableFloat(impactHigh)
	return o, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
