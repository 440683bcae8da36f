// Package fixtures loads the reference entities (the exchange registry; no
// coins) a fresh database needs before any listener can run — a narrow, swappable default
// rather than a full fixture-management system.
package fixtures

import (
	"context"
	"fmt"

	"github.com/nadircryptocurrency/antalla/internal/actions"
	"github.com/nadircryptocurrency/antalla/internal/models"
	"github.com/nadircryptocurrency/antalla/internal/store"
)

// Loader seeds a fresh store with the reference entities a venue needs
// before it can bootstrap markets.
type Loader interface {
	Load(ctx context.Context, st store.Store) error
}

// defaultExchanges assigns the stable exchange_id every listener.Config and
// AggOrder/Trade row is scoped by. New venues are appended, never
// renumbered — the id is a foreign key other tables reference.
var defaultExchanges = []models.Exchange{
	{ID: 1, Name: "hitbtc"},
}

// Exchange looks up the fixture-assigned Exchange for a venue name, for
// internal/config to populate listener.Config.Exchange.
func Exchange(name string) (models.Exchange, bool) {
	for _, e := range defaultExchanges {
		if e.Name == name {
			return e, true
		}
	}
	return models.Exchange{}, false
}

// DefaultLoader seeds the exchange registry above. Coin/market fixtures are
// intentionally absent: markets are discovered per venue by the `markets`
// CLI command's get_markets fan-out, not preloaded.
type DefaultLoader struct{}

func (DefaultLoader) Load(ctx context.Context, st store.Store) error {
	entities := make([]actions.Entity, 0, len(defaultExchanges))
	for _, e := range defaultExchanges {
		entities = append(entities, e)
	}
	action := actions.NewInsertAction(entities)

	tx, err := st.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin fixture load: %w", err)
	}
	if err := action.Execute(ctx, tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("load fixtures: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fixtures: %w", err)
	}
	return nil
}
