package snapshot

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/nadircryptocurrency/antalla/internal/models"
)

// bookRow is one reconstructed (order_type, price, size) level, already
// reduced to the latest last_update_id at or before the snapshot instant.
type bookRow struct {
	orderType models.OrderType
	price     decimal.Decimal
	size      decimal.Decimal
}

// sideStats is the descriptive-statistics block computed independently for
// the bid side and the ask side of a (possibly quartile) book.
type sideStats struct {
	count      int
	volume     decimal.Decimal
	mean       decimal.Decimal
	stddev     decimal.Decimal
	median     decimal.Decimal
	extremePx  decimal.Decimal // min ask price or max bid price
	extremeSz  decimal.Decimal // size at extremePx (max size if tied)
}

// splitSides partitions a reconstructed book into its bid and ask rows.
func splitSides(rows []bookRow) (bids, asks []bookRow) {
	for _, r := range rows {
		switch r.orderType {
		case models.OrderTypeBid:
			bids = append(bids, r)
		case models.OrderTypeAsk:
			asks = append(asks, r)
		}
	}
	return bids, asks
}

// quartileSides restricts bids to those at or above Q3(bid prices) and asks
// to those at or below Q1(ask prices), using the discrete percentile.
// Either side empty yields an empty quartile for that side.
func quartileSides(bids, asks []bookRow) (qBids, qAsks []bookRow) {
	if len(bids) > 0 {
		threshold := percentileDisc(sortedPrices(bids), 0.75)
		for _, r := range bids {
			if r.price.GreaterThanOrEqual(threshold) {
				qBids = append(qBids, r)
			}
		}
	}
	if len(asks) > 0 {
		threshold := percentileDisc(sortedPrices(asks), 0.25)
		for _, r := range asks {
			if r.price.LessThanOrEqual(threshold) {
				qAsks = append(qAsks, r)
			}
		}
	}
	return qBids, qAsks
}

func sortedPrices(rows []bookRow) []decimal.Decimal {
	prices := make([]decimal.Decimal, len(rows))
	for i, r := range rows {
		prices[i] = r.price
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	return prices
}

// computeSide computes one side's statistics. isBid selects whether the
// extremum is the maximum (bid) or minimum (ask) price.
func computeSide(rows []bookRow, isBid bool) sideStats {
	if len(rows) == 0 {
		return sideStats{}
	}

	prices := make([]decimal.Decimal, len(rows))
	for i, r := range rows {
		prices[i] = r.price
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })

	sum := decimal.Zero
	volume := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.price)
		volume = volume.Add(r.price.Mul(r.size))
	}
	n := decimal.NewFromInt(int64(len(rows)))
	mean := sum.Div(n)

	variance := decimal.Zero
	for _, r := range rows {
		d := r.price.Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.Div(n)
	stddev := decimalSqrt(variance)

	median := medianOf(prices)

	extreme := prices[0]
	if isBid {
		extreme = prices[len(prices)-1]
	}
	extremeSize := decimal.Zero
	for _, r := range rows {
		if r.price.Equal(extreme) && r.size.GreaterThan(extremeSize) {
			extremeSize = r.size
		}
	}

	return sideStats{
		count:     len(rows),
		volume:    volume,
		mean:      mean,
		stddev:    stddev,
		median:    median,
		extremePx: extreme,
		extremeSz: extremeSize,
	}
}

// medianOf returns the median of an already-sorted slice of decimals.
func medianOf(sorted []decimal.Decimal) decimal.Decimal {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	two := decimal.NewFromInt(2)
	return sorted[n/2-1].Add(sorted[n/2]).Div(two)
}

// decimalSqrt computes a population-stddev-precision square root via
// decimal.Decimal's own InexactFloat64 round trip — adequate for a
// descriptive statistic that is never used as an arithmetic input again.
func decimalSqrt(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(d.InexactFloat64()))
}

// percentileDisc returns the discrete percentile of sorted: the smallest
// value whose cumulative distribution CRN = RN/N is >= p, i.e. the value at
// 0-based index ceil(p*n)-1 — Postgres's percentile_disc(p) semantics.
func percentileDisc(sorted []decimal.Decimal, p float64) decimal.Decimal {
	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
