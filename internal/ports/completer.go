package ports

import "context"

// Completer envía un prompt a un LLM y devuelve el texto de la completion.
// La implementación rota entre providers intercambiables y tolera fallos
// individuales sin fallar al caller.
type Completer interface {
	// Complete ejecuta una completion a la temperatura dada. El error de
	// configuración (sin providers usables) es fatal; el resto de fallos se
	// agota internamente antes de propagarse.
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}
