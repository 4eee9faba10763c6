package ports

import (
	"context"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
)

// Notifier presenta las señales calculadas al usuario.
type Notifier interface {
	// Notify muestra las señales ordenadas por |E[return]| descendente.
	// En la implementación de consola, imprime una tabla formateada.
	Notify(ctx context.Context, signals []domain.TokenSignal) error
}
