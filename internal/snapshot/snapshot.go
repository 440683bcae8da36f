// Package snapshot periodically distills a venue's append-only
// aggregate-order history into per-market order-book statistics, run
// offline or on demand against a fixed wall-clock stop time.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nadircryptocurrency/antalla/internal/actions"
	"github.com/nadircryptocurrency/antalla/internal/models"
	"github.com/nadircryptocurrency/antalla/internal/store"
)

// DefaultInterval is the wall-clock step between consecutive ticks.
const DefaultInterval = time.Second

// DefaultCommitInterval is the buffer depth that triggers an intermediate
// flush, mirroring the orchestrator's commit policy.
const DefaultCommitInterval = 100

// marketKey identifies one venue's instance of a market.
type marketKey struct {
	exchangeID int64
	exchange   string
	buySym     string
	sellSym    string
}

// marketStart is a market paired with the earliest timestamp of any
// aggregate-order event recorded for it — the walk's starting tick.
type marketStart struct {
	marketKey
	start time.Time
}

// Generator walks every (venue, market) with recorded aggregate-order
// history and writes one OrderBookSnapshot per non-empty tick.
type Generator struct {
	store          store.Store
	commitInterval int
	interval       time.Duration

	mu     sync.Mutex
	buffer []actions.Action

	log *logrus.Entry
}

// New builds a Generator. commitInterval and interval fall back to their
// defaults when non-positive.
func New(st store.Store, commitInterval int, interval time.Duration) *Generator {
	if commitInterval <= 0 {
		commitInterval = DefaultCommitInterval
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Generator{
		store:          st,
		commitInterval: commitInterval,
		interval:       interval,
		log:            logrus.WithField("component", "snapshot"),
	}
}

// Run walks every (venue, market) with any aggregate-order events —
// restricted to venues when non-empty — from its earliest event up to
// stopTime, persisting one OrderBookSnapshot per non-empty tick.
func (g *Generator) Run(ctx context.Context, venues []string, stopTime time.Time) error {
	markets, err := g.listMarkets(ctx, venues)
	if err != nil {
		return fmt.Errorf("list markets: %w", err)
	}
	for _, m := range markets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.runMarket(ctx, m, stopTime); err != nil {
			g.log.WithError(err).WithField("market", marketLabel(m.marketKey)).Error("snapshot walk failed")
		}
	}
	return g.flush(ctx)
}

func marketLabel(m marketKey) string {
	return fmt.Sprintf("%s/%s-%s", m.exchange, m.buySym, m.sellSym)
}

// listMarkets returns every (venue, market) pair with aggregate-order
// history, each paired with its earliest event timestamp.
func (g *Generator) listMarkets(ctx context.Context, venues []string) ([]marketStart, error) {
	rows, err := g.store.Execute(ctx, `
		SELECT e.name, ao.exchange_id, ao.buy_sym_id, ao.sell_sym_id, MIN(ao.timestamp)
		FROM aggregate_orders ao
		JOIN exchanges e ON ao.exchange_id = e.id
		GROUP BY e.name, ao.exchange_id, ao.buy_sym_id, ao.sell_sym_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	allowed := toLowerSet(venues)
	var out []marketStart
	for rows.Next() {
		var ms marketStart
		if err := rows.Scan(&ms.exchange, &ms.exchangeID, &ms.buySym, &ms.sellSym, &ms.start); err != nil {
			return nil, err
		}
		if len(allowed) > 0 && !allowed[strings.ToLower(ms.exchange)] {
			continue
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}

func toLowerSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}

// runMarket steps from m.start to stopTime by g.interval, reconstructing
// and persisting one snapshot per non-empty tick.
func (g *Generator) runMarket(ctx context.Context, m marketStart, stopTime time.Time) error {
	for t := m.start; t.Before(stopTime); t = t.Add(g.interval) {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := g.reconstructBook(ctx, m.marketKey, t)
		if err != nil {
			return fmt.Errorf("reconstruct book at %s: %w", t, err)
		}
		if len(rows) == 0 {
			continue // empty book: skip tick
		}
		snap, ok := buildSnapshot(m.marketKey, t, rows)
		if !ok {
			continue // one-sided book (bids but no asks, or vice versa): skip tick
		}
		g.enqueue(ctx, snap)
	}
	return nil
}

// reconstructBook selects, per (order_type, price), the row with the
// maximum last_update_id among rows at or before t, dropping size=0 levels.
// Quartile membership (which needs percentile_disc) is computed in Go in
// quartileSides rather than pushed into this query, keeping the SQL to a
// plain latest-row-per-level lookup.
func (g *Generator) reconstructBook(ctx context.Context, m marketKey, t time.Time) ([]bookRow, error) {
	rows, err := g.store.Execute(ctx, `
		SELECT order_type, price, size
		FROM aggregate_orders
		WHERE exchange_id = $1 AND buy_sym_id = $2 AND sell_sym_id = $3 AND timestamp <= $4
		  AND size > 0
		  AND (order_type, price, last_update_id) IN (
		      SELECT order_type, price, MAX(last_update_id)
		      FROM aggregate_orders
		      WHERE exchange_id = $1 AND buy_sym_id = $2 AND sell_sym_id = $3 AND timestamp <= $4
		      GROUP BY order_type, price
		  )
	`, m.exchangeID, m.buySym, m.sellSym, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bookRow
	for rows.Next() {
		var r bookRow
		var orderType string
		if err := rows.Scan(&orderType, &r.price, &r.size); err != nil {
			return nil, err
		}
		r.orderType = models.OrderType(orderType)
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildSnapshot computes full-book and quartile-book statistics. ok is
// false when either side of the full book is empty — a market with bids
// but no asks (or vice versa) is a skipped tick.
func buildSnapshot(m marketKey, t time.Time, rows []bookRow) (models.OrderBookSnapshot, bool) {
	bids, asks := splitSides(rows)
	if len(bids) == 0 || len(asks) == 0 {
		return models.OrderBookSnapshot{}, false
	}

	bidStats := computeSide(bids, true)  // extreme = max bid price
	askStats := computeSide(asks, false) // extreme = min ask price

	qBids, qAsks := quartileSides(bids, asks)
	// bid_price_upper_quartile is the min of the quartile bid prices, ask_price_lower_quartile
	// the max of the quartile ask prices — the opposite extremum convention from the full book.
	qBidStats := computeSide(qBids, false)
	qAskStats := computeSide(qAsks, true)

	return models.OrderBookSnapshot{
		ExchangeID: m.exchangeID,
		BuySymID:   m.buySym,
		SellSymID:  m.sellSym,
		Timestamp:  t,

		Spread:         askStats.extremePx.Sub(bidStats.extremePx),
		BidsCount:      bidStats.count,
		AsksCount:      askStats.count,
		BidsVolume:     bidStats.volume,
		AsksVolume:     askStats.volume,
		BidsPriceMean:  bidStats.mean,
		AsksPriceMean:  askStats.mean,
		BidsPriceStd:   bidStats.stddev,
		AsksPriceStd:   askStats.stddev,
		BidPriceMedian: bidStats.median,
		AskPriceMedian: askStats.median,
		MinAskPrice:    askStats.extremePx,
		MinAskSize:     askStats.extremeSz,
		MaxBidPrice:    bidStats.extremePx,
		MaxBidSize:     bidStats.extremeSz,

		BidPriceUpperQuartile:      qBidStats.extremePx,
		AskPriceLowerQuartile:      qAskStats.extremePx,
		BidsVolumeUpperQuartile:    qBidStats.volume,
		AsksVolumeLowerQuartile:    qAskStats.volume,
		BidsCountUpperQuartile:     qBidStats.count,
		AsksCountLowerQuartile:     qAskStats.count,
		BidsPriceStdUpperQuartile:  qBidStats.stddev,
		AsksPriceStdLowerQuartile:  qAskStats.stddev,
		BidsPriceMeanUpperQuartile: qBidStats.mean,
		AsksPriceMeanLowerQuartile: qAskStats.mean,
	}, true
}

// enqueue buffers a snapshot insert, flushing once commitInterval is
// reached.
func (g *Generator) enqueue(ctx context.Context, snap models.OrderBookSnapshot) {
	g.mu.Lock()
	g.buffer = append(g.buffer, actions.NewInsertAction([]actions.Entity{snap}))
	shouldFlush := len(g.buffer) >= g.commitInterval
	g.mu.Unlock()

	if shouldFlush {
		if err := g.flush(ctx); err != nil {
			g.log.WithError(err).Error("commit failed, buffer retained for retry")
		}
	}
}

// flush drains the entire buffer into one transaction, same always-fully-
// drain policy as the orchestrator.
func (g *Generator) flush(ctx context.Context) error {
	g.mu.Lock()
	if len(g.buffer) == 0 {
		g.mu.Unlock()
		return nil
	}
	batch := g.buffer
	g.buffer = nil
	g.mu.Unlock()

	tx, err := g.store.Begin(ctx)
	if err != nil {
		g.retain(batch)
		return fmt.Errorf("begin commit: %w", err)
	}
	for _, a := range batch {
		if err := a.Execute(ctx, tx); err != nil {
			g.log.WithError(err).Warn("dropping malformed snapshot action")
		}
	}
	if err := tx.Commit(); err != nil {
		g.retain(batch)
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (g *Generator) retain(batch []actions.Action) {
	g.mu.Lock()
	g.buffer = append(batch, g.buffer...)
	g.mu.Unlock()
}

// BufferLen reports the current buffered-snapshot count, for tests.
func (g *Generator) BufferLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buffer)
}
