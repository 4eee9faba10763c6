package estimator

// prompt.go — templates de prompt y su renderizado.
//
// La sustitución es una función pura y order-independent: ningún valor de
// binding puede contener a su vez un placeholder, así que un solo pase con
// strings.Replacer es suficiente y determinista.

import "strings"

// Render sustituye los placeholders {name} del template por sus bindings.
func Render(template string, bindings map[string]string) string {
	pairs := make([]string, 0, len(bindings)*2)
	for name, value := range bindings {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

const probabilityPrompt = `You are a crypto-market analyst. Estimate the probability of each outcome of this event.

Event:
- Token: {coin_symbol}
- Type: {event_type}
- Title: {title}
- Date: {date_event}
- Importance: {importance}

Outcomes (mutually exclusive, collectively exhaustive):
{outcomes_text}

Respond ONLY with a flat JSON object mapping each outcome key to its probability in [0, 1]. The probabilities must sum to 1. Example: {"A": 0.45, "B": 0.30, "C": 0.15, "D": 0.10}`

const impactPrompt = `You are a crypto-market analyst. Estimate the price impact of each outcome of this event on the token, as a percentage over the following 48 hours.

Event:
- Token: {coin_symbol}
- Type: {event_type}
- Title: {title}
- Date: {date_event}
- Importance: {importance}

Outcomes with their estimated probabilities:
{outcomes_text}

Respond ONLY with a flat JSON object mapping each outcome key to its price impact in percent, between -50 and +50. Positive outcomes should usually have positive impact, negative or cancelled ones negative. Example: {"A": 8.5, "B": 1.0, "C": -6.0, "D": -12.0}`
