// Package priceenrich is the USD price-enrichment collaborator: refreshing
// Coin.PriceUSD. It has no operation for ExchangeMarket's volume_usd
// fields. Represented here as
// a narrow interface plus a no-op default so `fetch-prices` and `init-data`
// have something to call.
package priceenrich

import (
	"context"

	"github.com/nadircryptocurrency/antalla/internal/actions"
	"github.com/nadircryptocurrency/antalla/internal/models"
)

// Enricher refreshes USD-denominated fields on the reference entities.
type Enricher interface {
	// RefreshCoinPrices returns an Insert action updating PriceUSD/
	// LastPriceUpdated for every coin it has a quote for.
	RefreshCoinPrices(ctx context.Context, coins []models.Coin) (actions.Action, error)
}

// NoopEnricher performs no external lookups; fetch-prices becomes a no-op
// until a real price source is wired in.
type NoopEnricher struct{}

func (NoopEnricher) RefreshCoinPrices(context.Context, []models.Coin) (actions.Action, error) {
	return actions.NewInsertAction(nil), nil
}
