package fixture

// source.go — fuente de noticias estática para el modo dry-run: permite
// ejercitar el pipeline completo sin tocar la red de Binance.

import (
	"context"
	"time"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
)

// Source implementa ports.NewsSource sirviendo un set fijo de titulares.
type Source struct {
	items []domain.NewsItem
}

// NewSource crea la fuente con los items dados, o con el set por defecto si
// la lista está vacía.
func NewSource(items []domain.NewsItem) *Source {
	if len(items) == 0 {
		items = defaultItems()
	}
	return &Source{items: items}
}

// Name implementa ports.NewsSource.
func (s *Source) Name() string { return "fixture" }

// FetchNews devuelve los titulares enlatados.
func (s *Source) FetchNews(_ context.Context) ([]domain.NewsItem, error) {
	out := make([]domain.NewsItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func defaultItems() []domain.NewsItem {
	now := time.Now().UTC()
	return []domain.NewsItem{
		{
			Title:       "Binance Will List Arbitrum (ARB) in the Innovation Zone",
			URL:         "https://example.com/fixtures/arb-listing",
			Domain:      "binance.com",
			Source:      "fixture",
			Tickers:     []string{"ARB"},
			PublishedAt: now,
		},
		{
			Title:       "Optimism announces 24M OP token unlock scheduled for next month",
			URL:         "https://example.com/fixtures/op-unlock",
			Domain:      "example.com",
			Source:      "fixture",
			Tickers:     []string{"OP"},
			PublishedAt: now,
		},
		{
			Title:       "Sui Foundation confirms quarterly token burn above forecast",
			URL:         "https://example.com/fixtures/sui-burn",
			Domain:      "example.com",
			Source:      "fixture",
			Tickers:     []string{"SUI"},
			PublishedAt: now,
		},
	}
}
