package notify

// console.go — salida de señales por consola, en modo compacto (una línea
// por run, apto para logs) o tabla completa.

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime las señales en el modo configurado.
func (c *Console) Notify(_ context.Context, signals []domain.TokenSignal) error {
	if len(signals) == 0 {
		fmt.Fprintf(c.out, "[%s] no signals\n", time.Now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printFull(signals)
	} else {
		c.printCompact(signals)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(signals []domain.TokenSignal) {
	now := time.Now().Format("15:04:05")
	longs, shorts, neutrals := countByDirection(signals)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d tokens → L:%d S:%d N:%d", now, len(signals), longs, shorts, neutrals)

	shown := 0
	for _, s := range signals {
		if shown >= 4 || s.Signal == domain.SignalNeutral {
			break
		}
		capMark := ""
		if s.Capped {
			capMark = "!"
		}
		fmt.Fprintf(&sb, " | %s %s %+.2f%%%s (%dev, conf %s)",
			directionIcon(s.Signal), s.Token, s.TotalEReturn, capMark,
			s.EventsCount, confidenceLabel(s.AvgConfidenceDelta))
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla con escenarios bull/bear.
func (c *Console) printFull(signals []domain.TokenSignal) {
	now := time.Now().Format("15:04:05")
	longs, shorts, neutrals := countByDirection(signals)

	fmt.Fprintf(c.out, "\n[%s] %d tokens with signals — L:%d S:%d N:%d\n",
		now, len(signals), longs, shorts, neutrals)

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Signal", "Token", "E[ret]%", "Bull%", "Bear%", "Conf", "Events", "Strength")

	for i, s := range signals {
		strength := string(s.Strength)
		if s.Capped {
			strength += " (capped)"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			directionIcon(s.Signal)+" "+string(s.Signal),
			s.Token,
			fmt.Sprintf("%+.2f", s.TotalEReturn),
			fmt.Sprintf("%+.2f", s.TotalBull),
			fmt.Sprintf("%+.2f", s.TotalBear),
			confidenceLabel(s.AvgConfidenceDelta),
			fmt.Sprintf("%d", s.EventsCount),
			strength,
		)
	}

	table.Render()

	// desglose por evento de las señales activas
	for _, s := range signals {
		if s.Signal == domain.SignalNeutral {
			continue
		}
		fmt.Fprintf(c.out, "\n  %s %s %+.2f%%\n", directionIcon(s.Signal), s.Token, s.TotalEReturn)
		for _, ev := range s.Events {
			fmt.Fprintf(c.out, "    %+7.2f%%  [%s] %s\n", ev.EReturn, ev.EventType, truncate(ev.Title, 60))
		}
	}
	fmt.Fprintln(c.out)
}

// --- helpers ---

func countByDirection(signals []domain.TokenSignal) (longs, shorts, neutrals int) {
	for _, s := range signals {
		switch s.Signal {
		case domain.SignalLong:
			longs++
		case domain.SignalShort:
			shorts++
		default:
			neutrals++
		}
	}
	return
}

func directionIcon(d domain.Direction) string {
	switch d {
	case domain.SignalLong:
		return "🟢"
	case domain.SignalShort:
		return "🔴"
	default:
		return "⚪"
	}
}

// confidenceLabel traduce el semiancho medio del intervalo de probabilidad a
// una etiqueta: bandas estrechas = el modelo respondió consistente.
func confidenceLabel(delta float64) string {
	switch {
	case delta < 0.03:
		return "high"
	case delta < 0.08:
		return "medium"
	default:
		return "low"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
