package polymarket

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/updown/internal/domain"
)

const dataPositionsPath = "/positions"

// FetchPositions consulta el índice off-chain de posiciones para una
// wallet. Devuelve las posiciones normalizadas (campos desconocidos fuera).
func (c *Client) FetchPositions(ctx context.Context, wallet string) ([]domain.Position, error) {
	u := fmt.Sprintf("%s%s?user=%s&sizeThreshold=0", c.dataBase, dataPositionsPath, wallet)

	var resp []dataPosition
	if err := c.get(ctx, c.dataLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("data.FetchPositions %s: %w", wallet, err)
	}
	return mapPositions(resp, wallet), nil
}
