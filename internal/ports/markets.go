package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/updown/internal/domain"
)

// EventProvider consulta el índice de eventos (Gamma) por slug.
type EventProvider interface {
	// FetchEventBySlug devuelve los mercados del evento con ese slug.
	// Un slug inexistente devuelve lista vacía, no error.
	FetchEventBySlug(ctx context.Context, slug string) ([]domain.Market, error)
}

// MarketProvider resuelve la ventana de 15 minutos activa a un mercado.
type MarketProvider interface {
	// ScanMarkets devuelve cero o un mercado por asset para la ventana
	// actual. Errores por candidato se ignoran en silencio.
	ScanMarkets(ctx context.Context, now time.Time) ([]domain.Market, error)
}

// MarketDataProvider builds the full per-decision snapshot.
type MarketDataProvider interface {
	// FetchFullMarketData snapshots prices, books and history for both
	// tokens concurrently. Failed sub-requests leave nil sub-fields; the
	// call itself never fails.
	FetchFullMarketData(ctx context.Context, market domain.Market) domain.MarketSnapshot
}
