package domain

import "time"

// EventOutcomes empareja un evento con su set completo de outcomes,
// tal como lo devuelve el storage para el cálculo de señales.
type EventOutcomes struct {
	Event    Event
	Outcomes []Outcome
}

// RunSummary es el resumen ligero de una pasada del pipeline, una fila por run.
type RunSummary struct {
	ID           string // uuid
	StartedAt    time.Time
	Duration     time.Duration
	NewsFetched  int
	EventsNew    int
	OutcomesGen  int
	ProbEvents   int
	ImpactEvents int
	Signals      int
}
