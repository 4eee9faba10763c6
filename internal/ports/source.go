package ports

import (
	"context"

	"github.com/alejandrodnm/cryptoscanner/internal/domain"
)

// NewsSource obtiene titulares crudos de una fuente externa.
// La validación de formato ya ocurrió aguas arriba: el core no rechaza nada aquí.
type NewsSource interface {
	// Name identifica la fuente en logs y en el campo source_name.
	Name() string

	// FetchNews devuelve los titulares recientes de la fuente.
	FetchNews(ctx context.Context) ([]domain.NewsItem, error)
}
