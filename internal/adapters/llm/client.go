package llm

// client.go — cliente de chat completions con rotación de providers.
//
// Es un round-robin con circuit-breaker sobre upstreams poco fiables:
//   - 429 → cooldown temporal del provider (60s), el call sigue con otro.
//   - 401 → provider deshabilitado para toda la vida del proceso.
//   - 5xx / timeout / body malformado → transitorio, el provider sigue elegible.
//   - cursor de rotación: tras cada intento (éxito incluido) avanza, así el
//     siguiente call empieza por OTRO provider — fairness.
// Tras 3 rounds sin éxito, error agregado con el último fallo visto.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxRounds        = 3
	cooldownDuration = 60 * time.Second
	minCooldownWait  = time.Second
	defaultTimeout   = 30 * time.Second
)

// Kind clasifica los errores del cliente para que los callers decidan por
// etiqueta, no por tipo concreto.
type Kind int

const (
	// KindConfig: sin providers usables. Fatal, no se reintenta.
	KindConfig Kind = iota
	// KindExhausted: los 3 rounds de rotación agotados sin una respuesta válida.
	KindExhausted
)

// Error es el error etiquetado del cliente.
type Error struct {
	Kind Kind
	Msg  string
	Last error // último error transitorio visto, si lo hay
}

func (e *Error) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("llm: %s: %v", e.Msg, e.Last)
	}
	return "llm: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Last }

// IsConfigError devuelve true si err es un error de configuración del cliente.
func IsConfigError(err error) bool {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind == KindConfig
	}
	return false
}

// Provider es un backend de chat completions OpenAI-compatible.
type Provider struct {
	Name   string
	URL    string
	KeyEnv string // variable de entorno con la credencial
	APIKey string // resuelta desde KeyEnv al construir el cliente
	Model  string
	RPM    int // requests por minuto; 0 = sin límite
}

// Client implementa ports.Completer rotando entre providers.
// El estado de rotación (cursor, cooldowns, disabled) es propiedad de la
// instancia y va protegido por mutex: la fairness del round-robin no es
// segura bajo mutación concurrente sin serializar.
type Client struct {
	http      *http.Client
	providers []Provider
	limiters  []*rate.Limiter

	mu        sync.Mutex
	cursor    int
	cooldowns map[string]time.Time
	disabled  map[string]bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient construye el cliente resolviendo credenciales desde el entorno.
// Providers sin credencial se descartan con un log. Si no queda ninguno
// usable devuelve un error KindConfig — única condición fatal del sistema.
func NewClient(providers []Provider, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var active []Provider
	for _, p := range providers {
		if p.APIKey == "" && p.KeyEnv != "" {
			p.APIKey = os.Getenv(p.KeyEnv)
		}
		if p.APIKey == "" {
			slog.Info("llm provider skipped, no credential", "provider", p.Name, "key_env", p.KeyEnv)
			continue
		}
		active = append(active, p)
	}
	if len(active) == 0 {
		return nil, &Error{Kind: KindConfig, Msg: "no providers configured"}
	}

	limiters := make([]*rate.Limiter, len(active))
	for i, p := range active {
		if p.RPM > 0 {
			limiters[i] = rate.NewLimiter(rate.Limit(float64(p.RPM)/60.0), 1)
		} else {
			limiters[i] = rate.NewLimiter(rate.Inf, 1)
		}
	}

	names := make([]string, len(active))
	for i, p := range active {
		names[i] = p.Name
	}
	slog.Info("llm providers configured", "providers", names)

	return &Client{
		http:      &http.Client{Timeout: timeout},
		providers: active,
		limiters:  limiters,
		cooldowns: make(map[string]time.Time),
		disabled:  make(map[string]bool),
		now:       time.Now,
		sleep:     sleepCtx,
	}, nil
}

// Complete envía el prompt a un provider disponible y devuelve la completion.
func (c *Client) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if len(c.providers) == 0 {
		return "", &Error{Kind: KindConfig, Msg: "no providers configured"}
	}
	if c.allDisabled() {
		return "", &Error{Kind: KindConfig, Msg: "all providers disabled (bad credentials)"}
	}

	var lastErr error

	for round := 0; round < maxRounds; round++ {
		tried := 0

		for slot := 0; slot < len(c.providers); slot++ {
			idx, prov, ok := c.takeNext()
			if !ok {
				continue // en cooldown o deshabilitado
			}
			tried++

			if err := c.limiters[idx].Wait(ctx); err != nil {
				return "", fmt.Errorf("llm.Complete: rate limiter: %w", err)
			}

			text, err := c.attempt(ctx, prov, prompt, temperature, maxTokens)
			if err == nil {
				slog.Debug("llm completion ok", "provider", prov.Name, "temperature", temperature)
				return text, nil
			}
			if ctx.Err() != nil {
				return "", fmt.Errorf("llm.Complete: %w", ctx.Err())
			}

			switch classify(err) {
			case statusRateLimited:
				slog.Warn("llm provider rate limited, cooldown", "provider", prov.Name, "cooldown", cooldownDuration)
				c.setCooldown(prov.Name)
			case statusUnauthorized:
				slog.Warn("llm provider disabled, bad credential", "provider", prov.Name)
				c.disable(prov.Name)
			default:
				slog.Warn("llm provider transient failure", "provider", prov.Name, "err", err)
				lastErr = err
			}
		}

		if tried == 0 {
			if c.allDisabled() {
				break
			}
			wait := c.untilEarliestCooldown()
			slog.Info("all llm providers in cooldown, waiting",
				"wait", wait.Round(time.Second), "round", round+1, "rounds", maxRounds)
			if err := c.sleep(ctx, wait); err != nil {
				return "", fmt.Errorf("llm.Complete: %w", err)
			}
		}
	}

	return "", &Error{
		Kind: KindExhausted,
		Msg:  fmt.Sprintf("all providers failed after %d rounds", maxRounds),
		Last: lastErr,
	}
}

// takeNext devuelve el siguiente provider disponible en orden round-robin,
// avanzando el cursor más allá de la posición devuelta. ok=false si la
// posición actual no está disponible (el cursor avanza igualmente).
func (c *Client) takeNext() (int, Provider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.cursor % len(c.providers)
	prov := c.providers[idx]
	c.cursor = idx + 1

	if c.disabled[prov.Name] {
		return 0, Provider{}, false
	}
	if until, ok := c.cooldowns[prov.Name]; ok && c.now().Before(until) {
		return 0, Provider{}, false
	}
	return idx, prov, true
}

func (c *Client) setCooldown(name string) {
	c.mu.Lock()
	c.cooldowns[name] = c.now().Add(cooldownDuration)
	c.mu.Unlock()
}

func (c *Client) disable(name string) {
	c.mu.Lock()
	c.disabled[name] = true
	c.mu.Unlock()
}

func (c *Client) allDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.providers {
		if !c.disabled[p.Name] {
			return false
		}
	}
	return true
}

// untilEarliestCooldown devuelve cuánto esperar hasta que el primer provider
// no deshabilitado salga de cooldown. Mínimo 1 segundo.
func (c *Client) untilEarliestCooldown() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	var earliest time.Time
	for _, p := range c.providers {
		if c.disabled[p.Name] {
			continue
		}
		until := c.cooldowns[p.Name]
		if earliest.IsZero() || until.Before(earliest) {
			earliest = until
		}
	}

	wait := earliest.Sub(c.now()) + 500*time.Millisecond
	if wait < minCooldownWait {
		wait = minCooldownWait
	}
	return wait
}

// --- request HTTP ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// statusError etiqueta el fallo de un intento para decidir cooldown/disable.
type statusError struct {
	status int
	err    error
}

const (
	statusTransient    = 0
	statusRateLimited  = http.StatusTooManyRequests
	statusUnauthorized = http.StatusUnauthorized
)

func (e *statusError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("HTTP %d", e.status)
}

func classify(err error) int {
	var serr *statusError
	if errors.As(err, &serr) {
		switch serr.status {
		case statusRateLimited, statusUnauthorized:
			return serr.status
		}
	}
	return statusTransient
}

// attempt hace UNA petición a UN provider. Todos los fallos vuelven como
// *statusError para clasificarlos; un body malformado cuenta como transitorio.
func (c *Client) attempt(ctx context.Context, prov Provider, prompt string, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       prov.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", &statusError{err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, prov.URL, bytes.NewReader(body))
	if err != nil {
		return "", &statusError{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+prov.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &statusError{err: fmt.Errorf("%s: %w", prov.Name, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return "", &statusError{err: fmt.Errorf("%s: decode response: %w", prov.Name, err)}
		}
		if len(parsed.Choices) == 0 {
			return "", &statusError{err: fmt.Errorf("%s: empty choices", prov.Name)}
		}
		return parsed.Choices[0].Message.Content, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &statusError{status: statusRateLimited}

	case resp.StatusCode == http.StatusUnauthorized:
		return "", &statusError{status: statusUnauthorized}

	default:
		return "", &statusError{err: fmt.Errorf("%s: HTTP %d", prov.Name, resp.StatusCode)}
	}
}

// sleepCtx espera d respetando la cancelación del contexto.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
