package ports

import (
	"context"

	"github.com/alejandrodnm/updown/internal/domain"
)

// Policy decide qué hacer con el mercado activo. Las estrategias son
// valores intercambiables; el coordinator mantiene exactamente una.
type Policy interface {
	// Decide evalúa el snapshot del mercado y el contexto del feed y
	// devuelve una decisión ya normalizada (LOW ⇒ SKIP). No debe mutar
	// estado fuera de la policy; puede emitir eventos de log.
	Decide(ctx context.Context, snapshot domain.MarketSnapshot, feed domain.PriceContext) domain.Decision

	// Name identifies the strategy in logs and activity events.
	Name() string
}
