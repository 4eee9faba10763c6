package binance

// announcements.go — cliente del CMS público de anuncios de Binance.
//
// El endpoint no requiere API key pero sí un User-Agent de navegador, y
// bloquea scrapers agresivos: el limiter mantiene ~1 request cada 2s.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"time"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.binance.com"
	queryPath      = "/bapi/composite/v1/public/cms/article/list/query"

	// catalogId del CMS de Binance
	catalogListing   = 48
	catalogLatest    = 49
	catalogDelisting = 131

	defaultPageSize = 20

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"
)

// Un request cada 2s: el CMS banea IPs que van más rápido.
var announcementsRate = rate.Every(2 * time.Second)

// Los anuncios de Binance llevan el ticker entre paréntesis:
// "Binance Will List Arbitrum (ARB)".
var tickerRe = regexp.MustCompile(`\(([A-Z0-9]{2,10})\)`)

// Client es el HTTP client de Binance Announcements con rate limiting y retries.
type Client struct {
	http     *http.Client
	baseURL  string
	limiter  *rate.Limiter
	pageSize int
}

// NewClient crea un Client. Si baseURL está vacío usa el URL de producción.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:     &http.Client{Timeout: 15 * time.Second},
		baseURL:  baseURL,
		limiter:  rate.NewLimiter(announcementsRate, 1),
		pageSize: defaultPageSize,
	}
}

// Name implementa ports.NewsSource.
func (c *Client) Name() string { return "binance" }

// FetchNews descarga la primera página de listings, delistings y noticias
// generales. Un catálogo que falla se loggea y se salta: perder una categoría
// no debe dejar al pipeline sin las otras dos.
func (c *Client) FetchNews(ctx context.Context) ([]domain.NewsItem, error) {
	catalogs := []struct {
		id   int
		name string
	}{
		{catalogListing, "listing"},
		{catalogDelisting, "delisting"},
		{catalogLatest, "latest"},
	}

	var items []domain.NewsItem
	var lastErr error
	for _, cat := range catalogs {
		articles, err := c.fetchCatalog(ctx, cat.id)
		if err != nil {
			slog.Warn("binance: catalog fetch failed", "catalog", cat.name, "err", err)
			lastErr = err
			continue
		}
		for _, a := range articles {
			items = append(items, a.toNewsItem(c.baseURL))
		}
	}

	if len(items) == 0 && lastErr != nil {
		return nil, fmt.Errorf("binance.FetchNews: all catalogs failed: %w", lastErr)
	}
	return items, nil
}

func (c *Client) fetchCatalog(ctx context.Context, catalogID int) ([]article, error) {
	payload := map[string]any{
		"type":      1,
		"pageNo":    1,
		"pageSize":  c.pageSize,
		"catalogId": catalogID,
	}

	var resp queryResponse
	if err := c.post(ctx, c.baseURL+queryPath, payload, &resp); err != nil {
		return nil, err
	}
	return resp.articles(), nil
}

// post hace un POST JSON con rate limiting y retries.
func (c *Client) post(ctx context.Context, url string, body, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("binance: rate limited", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// --- formato de respuesta del CMS ---

type article struct {
	Title       string `json:"title"`
	Code        string `json:"code"`
	ReleaseDate int64  `json:"releaseDate"` // epoch millis
}

func (a article) toNewsItem(baseURL string) domain.NewsItem {
	item := domain.NewsItem{
		Title:   a.Title,
		Domain:  "binance.com",
		Source:  "binance",
		Tickers: extractTickers(a.Title),
	}
	if a.Code != "" {
		item.URL = baseURL + "/en/support/announcement/" + a.Code
	}
	if a.ReleaseDate > 0 {
		item.PublishedAt = time.UnixMilli(a.ReleaseDate).UTC()
	}
	return item
}

// extractTickers saca los símbolos entre paréntesis del título, sin duplicados.
func extractTickers(title string) []string {
	var tickers []string
	seen := make(map[string]bool)
	for _, m := range tickerRe.FindAllStringSubmatch(title, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			tickers = append(tickers, m[1])
		}
	}
	return tickers
}

// queryResponse cubre las dos formas que devuelve el CMS:
// {"data": {"catalogs": [{"articles": [...]}]}} y {"data": {"articles": [...]}}.
type queryResponse struct {
	Data struct {
		Catalogs []struct {
			Articles []article `json:"articles"`
		} `json:"catalogs"`
		Articles []article `json:"articles"`
	} `json:"data"`
}

func (r queryResponse) articles() []article {
	for _, cat := range r.Data.Catalogs {
		if len(cat.Articles) > 0 {
			return cat.Articles
		}
	}
	return r.Data.Articles
}
