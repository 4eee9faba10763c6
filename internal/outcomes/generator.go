package outcomes

// generator.go — construcción del set de outcomes de un evento.
//
// Tipos estándar usan plantilla (sin LLM). El resto se genera vía LLM con
// hasta 3 intentos validados; si los 3 fallan se degrada al set genérico.
// Generate nunca devuelve error: siempre hay un set válido que guardar.

import (
	"context"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"github.com/alejandrodnm/cryptoscanner/internal/jsonx"
	"github.com/alejandrodnm/cryptoscanner/internal/ports"
)

const (
	maxGenerateAttempts = 3
	generateTemperature = 0.1
	generateMaxTokens   = 500

	// Los textos de outcome se truncan al límite de la columna en storage.
	maxOutcomeTextLen = 100
)

var validCategories = map[domain.Category]bool{
	domain.CategoryPositive:  true,
	domain.CategoryNeutral:   true,
	domain.CategoryNegative:  true,
	domain.CategoryCancelled: true,
}

// Generator construye sets de outcomes MECE para eventos.
type Generator struct {
	completer ports.Completer
}

// NewGenerator crea el generador sobre el Completer dado.
func NewGenerator(completer ports.Completer) *Generator {
	return &Generator{completer: completer}
}

// Generate devuelve el set de outcomes del evento: plantilla para los tipos
// estándar, LLM (con fallback genérico) para el resto.
func (g *Generator) Generate(ctx context.Context, event domain.Event) []domain.Outcome {
	if tmpl, ok := eventTemplates[event.EventType]; ok {
		return instantiate(tmpl, event)
	}
	return g.generateViaLLM(ctx, event)
}

func (g *Generator) generateViaLLM(ctx context.Context, event domain.Event) []domain.Outcome {
	prompt := renderOutcomePrompt(event)

	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		text, err := g.completer.Complete(ctx, prompt, generateTemperature, generateMaxTokens)
		if err != nil {
			slog.Error("outcomes: completion failed", "attempt", attempt, "coin", event.CoinSymbol, "err", err)
			continue
		}

		parsed, ok := parseOutcomes(text, event.ID)
		if !ok {
			slog.Warn("outcomes: unparseable response", "attempt", attempt, "coin", event.CoinSymbol)
			continue
		}
		if !Validate(parsed) {
			slog.Warn("outcomes: validation failed", "attempt", attempt, "coin", event.CoinSymbol)
			continue
		}
		return parsed
	}

	slog.Warn("outcomes: LLM failed, using generic set", "coin", event.CoinSymbol, "event_type", event.EventType)
	return instantiate(genericOutcomes, event)
}

// Validate comprueba que el set de outcomes es estructuralmente MECE:
// 3-4 miembros, keys únicas y no vacías, textos no vacíos, categorías
// válidas, al menos un positive y al menos un negative o cancelled.
func Validate(outcomes []domain.Outcome) bool {
	if len(outcomes) < 3 || len(outcomes) > 4 {
		return false
	}
	seen := make(map[string]bool, len(outcomes))
	hasPositive, hasDownside := false, false
	for _, o := range outcomes {
		if o.Key == "" || o.Text == "" || !validCategories[o.Category] {
			return false
		}
		if seen[o.Key] {
			return false
		}
		seen[o.Key] = true
		switch o.Category {
		case domain.CategoryPositive:
			hasPositive = true
		case domain.CategoryNegative, domain.CategoryCancelled:
			hasDownside = true
		}
	}
	return hasPositive && hasDownside
}

// instantiate materializa una plantilla sustituyendo {coin} y {title}.
func instantiate(tmpl []templateOutcome, event domain.Event) []domain.Outcome {
	out := make([]domain.Outcome, 0, len(tmpl))
	for _, t := range tmpl {
		text := strings.ReplaceAll(t.Text, "{coin}", event.CoinSymbol)
		text = strings.ReplaceAll(text, "{title}", event.Title)
		out = append(out, domain.Outcome{
			EventID:    event.ID,
			Key:        t.Key,
			Text:       truncate(text, maxOutcomeTextLen),
			Category:   t.Category,
			IsTemplate: true,
		})
	}
	return out
}

// parseOutcomes extrae el array de outcomes de la respuesta del LLM.
func parseOutcomes(text string, eventID string) ([]domain.Outcome, bool) {
	items, ok := jsonx.ExtractArray(text, "outcomes")
	if !ok {
		return nil, false
	}

	out := make([]domain.Outcome, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		key, _ := obj["key"].(string)
		txt, _ := obj["text"].(string)
		cat, _ := obj["category"].(string)
		out = append(out, domain.Outcome{
			EventID:    eventID,
			Key:        key,
			Text:       truncate(txt, maxOutcomeTextLen),
			Category:   domain.Category(cat),
			IsTemplate: false,
		})
	}
	return out, true
}

func renderOutcomePrompt(event domain.Event) string {
	date := event.DateEvent
	if date == "" {
		date = "unknown"
	}
	r := strings.NewReplacer(
		"{event_type}", event.EventType,
		"{coin_symbol}", event.CoinSymbol,
		"{title}", event.Title,
		"{date_event}", date,
	)
	return r.Replace(outcomePrompt)
}

// truncate recorta a n runas, no bytes: los títulos pueden traer no-ASCII.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

const outcomePrompt = `You are a crypto-market analyst. Generate the possible outcomes of this event as a small MECE set (mutually exclusive, collectively exhaustive).

Event:
- Token: {coin_symbol}
- Type: {event_type}
- Title: {title}
- Date: {date_event}

Rules:
- Exactly 3 or 4 outcomes, keyed "A", "B", "C" and optionally "D".
- Each outcome has a "category": one of "positive", "neutral", "negative", "cancelled".
- At least one positive outcome and at least one negative or cancelled outcome.
- Each "text" is one short sentence describing a concrete, observable result.

Respond ONLY with a JSON array. Example:
[{"key": "A", "text": "Upgrade ships on schedule and adoption grows", "category": "positive"},
 {"key": "B", "text": "Upgrade ships but adoption stays flat", "category": "neutral"},
 {"key": "C", "text": "Upgrade is delayed", "category": "negative"},
 {"key": "D", "text": "Upgrade is cancelled", "category": "cancelled"}]`
