package outcomes

// templates.go — sets de outcomes predefinidos para los 7 tipos de evento
// estándar. Para estos tipos no hace falta LLM: la estructura del evento es
// siempre la misma y el set es MECE por construcción.

import "github.com/alejandrodnm/cryptoscanner/internal/domain"

// templateOutcome es un outcome de plantilla antes de sustituir {coin}/{title}.
type templateOutcome struct {
	Key      string
	Text     string
	Category domain.Category
}

// eventTemplates mapea tipo de evento → outcomes de plantilla.
var eventTemplates = map[string][]templateOutcome{
	"listing": {
		{"A", "Listing on time with high trading volume in the first 24h", domain.CategoryPositive},
		{"B", "Listing on time but low volume, weak interest", domain.CategoryNeutral},
		{"C", "Listing postponed or moved to another date", domain.CategoryNegative},
		{"D", "Listing cancelled entirely", domain.CategoryCancelled},
	},
	"launch": {
		{"A", "Launch on time with strong demand", domain.CategoryPositive},
		{"B", "Launch on time with moderate interest", domain.CategoryNeutral},
		{"C", "Launch delayed", domain.CategoryNegative},
		{"D", "Launch cancelled or product pulled", domain.CategoryCancelled},
	},
	"burn": {
		{"A", "Burn above expectations (>120% of forecast)", domain.CategoryPositive},
		{"B", "Burn within expectations (80-120% of forecast)", domain.CategoryNeutral},
		{"C", "Burn below expectations (<80% of forecast)", domain.CategoryNegative},
		{"D", "Burn postponed or did not happen", domain.CategoryCancelled},
	},
	"unlock": {
		{"A", "Tokens held, no selling within 48h of the unlock", domain.CategoryPositive},
		{"B", "Partial selling (<50% of the unlocked supply)", domain.CategoryNeutral},
		{"C", "Mass selling (>50% of the unlocked supply)", domain.CategoryNegative},
		{"D", "Unlock rescheduled or cancelled", domain.CategoryCancelled},
	},
	"fork": {
		{"A", "Network upgrade completed without issues", domain.CategoryPositive},
		{"B", "Upgrade with minor bugs, fixed within 24h", domain.CategoryNeutral},
		{"C", "Serious problems, rollback or emergency patch", domain.CategoryNegative},
		{"D", "Upgrade postponed", domain.CategoryCancelled},
	},
	"partnership": {
		{"A", "Strategic partnership with real integration of {coin}", domain.CategoryPositive},
		{"B", "Limited-scope technical collaboration", domain.CategoryNeutral},
		{"C", "Only an MoU or letter of intent, no commitments", domain.CategoryNegative},
		{"D", "Partnership unconfirmed or turned out to be a rumor", domain.CategoryCancelled},
	},
	// airdrop no tiene outcome neutral: el resultado es hold o venta masiva.
	"airdrop": {
		{"A", "Airdrop completed, most recipients hold (>50%)", domain.CategoryPositive},
		{"B", "Airdrop completed, mass selling (>70% sold)", domain.CategoryNegative},
		{"C", "Airdrop reduced or terms changed", domain.CategoryNegative},
		{"D", "Airdrop postponed or cancelled", domain.CategoryCancelled},
	},
}

// genericOutcomes es el fallback cuando el LLM no consigue generar un set
// válido para un tipo no estándar.
var genericOutcomes = []templateOutcome{
	{"A", "Event for {coin} resolves with a positive result", domain.CategoryPositive},
	{"B", "Event for {coin} resolves with a neutral result", domain.CategoryNeutral},
	{"C", "Event for {coin} resolves with a negative result", domain.CategoryNegative},
	{"D", "Event cancelled or postponed", domain.CategoryCancelled},
}

// HasTemplate indica si el tipo de evento tiene set de outcomes predefinido.
func HasTemplate(eventType string) bool {
	_, ok := eventTemplates[eventType]
	return ok
}
