package extractor

// extractor.go — extracción de eventos estructurados desde titulares de
// noticias vía LLM.
//
// Las noticias se procesan en chunks para no desbordar la ventana del modelo.
// Un chunk que falla se loggea y se salta: el resto del batch sigue adelante.

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"github.com/alejandrodnm/cryptoscanner/internal/jsonx"
	"github.com/alejandrodnm/cryptoscanner/internal/ports"
)

const (
	chunkSize          = 30
	extractTemperature = 0.1
	extractMaxTokens   = 4000
	maxTitleLen        = 100
)

var dateFormatRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Candidate es un evento extraído antes de asignarle ID y deduplicar.
type Candidate struct {
	Title       string
	CoinSymbol  string
	EventType   string
	DateEvent   string
	Importance  domain.Importance
	SourceTitle string
	SourceURL   string
	NewsIndex   *int // índice en el batch de noticias, nil si el modelo no lo dio
}

// Extractor convierte titulares crudos en candidatos de evento.
type Extractor struct {
	completer ports.Completer
}

// NewExtractor crea el extractor sobre el Completer dado.
func NewExtractor(completer ports.Completer) *Extractor {
	return &Extractor{completer: completer}
}

// Extract procesa las noticias en chunks y devuelve los candidatos válidos.
// Nunca devuelve error: un chunk fallido reduce cobertura, no aborta el run.
func (e *Extractor) Extract(ctx context.Context, items []domain.NewsItem) []Candidate {
	if len(items) == 0 {
		return nil
	}

	var all []Candidate
	totalChunks := (len(items) + chunkSize - 1) / chunkSize

	for i := 0; i < len(items); i += chunkSize {
		end := min(i+chunkSize, len(items))
		chunk := items[i:end]
		chunkNum := i/chunkSize + 1

		text, err := e.completer.Complete(ctx, buildPrompt(chunk), extractTemperature, extractMaxTokens)
		if err != nil {
			slog.Error("extractor: chunk failed", "chunk", chunkNum, "total", totalChunks, "err", err)
			continue
		}

		raw, ok := jsonx.ExtractArray(text, "events")
		if !ok {
			slog.Warn("extractor: unparseable chunk response", "chunk", chunkNum, "total", totalChunks)
			continue
		}

		valid := 0
		for _, item := range raw {
			cand, ok := normalizeCandidate(item)
			if !ok {
				continue
			}
			// el índice del modelo es relativo al chunk
			if cand.NewsIndex != nil {
				global := *cand.NewsIndex + i
				cand.NewsIndex = &global
			}
			all = append(all, cand)
			valid++
		}
		slog.Info("extractor: chunk processed", "chunk", chunkNum, "total", totalChunks,
			"news", len(chunk), "events", valid)
	}
	return all
}

// normalizeCandidate valida campos obligatorios y normaliza el resto.
// title/coin_symbol/event_type son obligatorios; tipo desconocido → "other",
// importancia desconocida → medium, fecha mal formada → descartada.
func normalizeCandidate(item any) (Candidate, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Candidate{}, false
	}

	title := strings.TrimSpace(str(obj["title"]))
	coin := strings.ToUpper(strings.TrimSpace(str(obj["coin_symbol"])))
	eventType := strings.ToLower(strings.TrimSpace(str(obj["event_type"])))
	if title == "" || coin == "" || eventType == "" {
		return Candidate{}, false
	}
	if !domain.ValidEventTypes[eventType] {
		eventType = "other"
	}

	importance := domain.Importance(strings.ToLower(strings.TrimSpace(str(obj["importance"]))))
	if !domain.ValidImportance[importance] {
		importance = domain.ImportanceMedium
	}

	date := strings.TrimSpace(str(obj["date_event"]))
	if !dateFormatRe.MatchString(date) {
		date = ""
	}

	var newsIndex *int
	if f, ok := obj["news_index"].(float64); ok {
		n := int(f)
		newsIndex = &n
	}

	return Candidate{
		Title:       truncate(title, maxTitleLen),
		CoinSymbol:  coin,
		EventType:   eventType,
		DateEvent:   date,
		Importance:  importance,
		SourceTitle: strings.TrimSpace(str(obj["source_title"])),
		SourceURL:   strings.TrimSpace(str(obj["source_url"])),
		NewsIndex:   newsIndex,
	}, true
}

// buildPrompt formatea el chunk como lista numerada:
//
//	0. [BTC, ETH] "Binance Will List XYZ" (coindesk.com) https://...
func buildPrompt(items []domain.NewsItem) string {
	var b strings.Builder
	b.WriteString(extractPrompt)
	b.WriteString("\n\nNews:\n")
	for idx, item := range items {
		tickers := "[?]"
		if len(item.Tickers) > 0 {
			tickers = "[" + strings.Join(item.Tickers, ", ") + "]"
		}
		source := item.Domain
		if source == "" {
			source = item.Source
		}
		fmt.Fprintf(&b, "%d. %s %q (%s) %s\n", idx, tickers, item.Title, source, item.URL)
	}
	return b.String()
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

const extractPrompt = `You are a crypto-news analyst. Extract discrete, token-specific market events from the numbered news headlines below.

Only extract events tied to a specific token with a concrete, dated or datable occurrence: listings, delistings, token burns, unlocks, network forks/upgrades, product launches, partnerships, airdrops, governance votes, funding rounds. Skip opinion pieces, price commentary and market-wide news.

For each event produce:
- "title": short event description (max 100 chars)
- "coin_symbol": the token ticker, uppercase
- "event_type": one of listing, delisting, burn, unlock, fork, launch, partnership, airdrop, governance, funding, other
- "date_event": "YYYY-MM-DD" if the date is stated, otherwise null
- "importance": "high", "medium" or "low"
- "news_index": the number of the headline the event came from
- "source_title" and "source_url": copied from that headline

Respond ONLY with a JSON array of event objects. Respond with [] if there are no events.`
