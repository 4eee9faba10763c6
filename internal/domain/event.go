package domain

import "time"

// Importance clasifica la relevancia de un evento para el mercado.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Category etiqueta la dirección esperada de un outcome.
type Category string

const (
	CategoryPositive  Category = "positive"
	CategoryNeutral   Category = "neutral"
	CategoryNegative  Category = "negative"
	CategoryCancelled Category = "cancelled"
)

// ValidEventTypes son los tipos de evento que el extractor acepta.
// Cualquier otro valor se normaliza a "other".
var ValidEventTypes = map[string]bool{
	"listing": true, "delisting": true, "burn": true, "unlock": true,
	"fork": true, "launch": true, "partnership": true, "airdrop": true,
	"governance": true, "funding": true, "other": true,
}

// ValidImportance son los niveles de importancia aceptados.
var ValidImportance = map[Importance]bool{
	ImportanceHigh: true, ImportanceMedium: true, ImportanceLow: true,
}

// Event es un evento discreto de mercado para un token (listing, unlock, etc.).
// El ID es un hash de contenido (ver EventID) — reingestar el mismo texto es no-op.
type Event struct {
	ID          string
	CoinSymbol  string
	EventType   string
	Title       string
	DateEvent   string // YYYY-MM-DD, vacío si la fecha es desconocida
	Importance  Importance
	SourceName  string
	CreatedAt   time.Time
	OutcomesGen bool // flip monotónico: una vez generados los outcomes, nunca vuelve a false
}

// Outcome es uno de los 3-4 resultados MECE posibles de un evento.
// Los campos numéricos son nil hasta que el estimador correspondiente los rellena;
// un evento está "completo" solo cuando TODOS sus outcomes tienen ambos estimados.
type Outcome struct {
	EventID    string
	Key        string // A-D, único por evento
	Text       string
	Category   Category
	IsTemplate bool

	Probability     *float64
	ProbabilityLow  *float64
	ProbabilityHigh *float64

	PriceImpactPct  *float64
	PriceImpactLow  *float64
	PriceImpactHigh *float64
}

// Estimated devuelve true si el outcome tiene probabilidad e impacto asignados.
func (o Outcome) Estimated() bool {
	return o.Probability != nil && o.PriceImpactPct != nil
}

// NewsItem es un titular crudo de una fuente de noticias, antes de la
// extracción de eventos.
type NewsItem struct {
	Title       string
	URL         string
	Domain      string
	Source      string
	Tickers     []string
	PublishedAt time.Time
}
