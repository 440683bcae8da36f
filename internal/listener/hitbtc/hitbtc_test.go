package hitbtc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadircryptocurrency/antalla/internal/actions"
	"github.com/nadircryptocurrency/antalla/internal/listener"
	"github.com/nadircryptocurrency/antalla/internal/models"
)

func newTestListener(symbols ...symbolInfo) *Listener {
	l := &Listener{cfg: listener.Config{Exchange: models.Exchange{ID: 1, Name: "hitbtc"}}}
	l.setSymbols(symbols)
	return l
}

// TestLookupPair_GatesOnSymbolCatalog is the symbol-catalog gate: messages
// whose symbol never appeared in the fetched catalog are dropped.
func TestLookupPair_GatesOnSymbolCatalog(t *testing.T) {
	l := newTestListener(symbolInfo{ID: "ETHBTC", BaseCurrency: "ETH", QuoteCurrency: "BTC"})

	base, quote, ok := l.lookupPair("ethbtc")
	require.True(t, ok)
	assert.Equal(t, "ETH", base)
	assert.Equal(t, "BTC", quote)

	_, _, ok = l.lookupPair("LTCBTC")
	assert.False(t, ok)
}

// TestParseMarkets_QuotedVolumeIDIsBaseBeforeCanonicalization covers the
// market-canonicalization scenario: quotedVolumeID is captured as the raw
// base currency before CanonicalPair may swap first/second.
func TestParseMarkets_QuotedVolumeIDIsBaseBeforeCanonicalization(t *testing.T) {
	l := newTestListener(symbolInfo{ID: "ETHBTC", BaseCurrency: "ETH", QuoteCurrency: "BTC"})

	actionsOut := l.parseMarkets([]marketTicker{{
		Symbol:    "ETHBTC",
		Volume:    "12.5",
		Timestamp: "2024-01-01T00:00:00Z",
	}})

	require.Len(t, actionsOut, 3) // coins, markets, exchange_markets
	ins := actionsOut[2].(*actions.InsertAction)
	require.Len(t, ins.Entities, 1)
	em := ins.Entities[0].(models.ExchangeMarket)
	assert.Equal(t, "ETH", em.QuotedVolumeID)
}

// TestParseMarkets_DropsMalformedVolume ensures a non-finite/malformed
// volume drops the whole ticker rather than emitting a partial action.
func TestParseMarkets_DropsMalformedVolume(t *testing.T) {
	l := newTestListener(symbolInfo{ID: "ETHBTC", BaseCurrency: "ETH", QuoteCurrency: "BTC"})
	out := l.parseMarkets([]marketTicker{{Symbol: "ETHBTC", Volume: "NaN", Timestamp: "2024-01-01T00:00:00Z"}})
	assert.Empty(t, out)
}

// TestParseMarkets_UnknownSymbolDropped skips tickers whose symbol never
// resolved against the fetched catalog.
func TestParseMarkets_UnknownSymbolDropped(t *testing.T) {
	l := newTestListener(symbolInfo{ID: "ETHBTC", BaseCurrency: "ETH", QuoteCurrency: "BTC"})
	out := l.parseMarkets([]marketTicker{{Symbol: "LTCBTC", Volume: "1", Timestamp: "2024-01-01T00:00:00Z"}})
	assert.Empty(t, out)
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// TestParseSnapshotOrderbook_ConvertsBothSides covers the snapshotOrderbook
// path: both bid and ask levels become AggOrder inserts tagged with the
// message sequence as last_update_id.
func TestParseSnapshotOrderbook_ConvertsBothSides(t *testing.T) {
	l := newTestListener(symbolInfo{ID: "ETHBTC", BaseCurrency: "ETH", QuoteCurrency: "BTC"})

	payload := mustJSON(t, orderbookSnapshot{
		Symbol:    "ETHBTC",
		Sequence:  42,
		Timestamp: "2024-01-01T00:00:00Z",
		Bid:       []orderbookLevel{{Price: "10", Size: "1"}},
		Ask:       []orderbookLevel{{Price: "11", Size: "2"}, {Price: "bad", Size: "1"}},
	})

	out, err := l.parseSnapshotOrderbook(payload)
	require.NoError(t, err)
	require.Len(t, out, 1)

	ins := out[0].(*actions.InsertAction)
	require.Len(t, ins.Entities, 2) // one bid level, one well-formed ask level
	var sawBid, sawAsk bool
	for _, e := range ins.Entities {
		ao := e.(models.AggOrder)
		assert.EqualValues(t, 42, ao.LastUpdateID)
		switch ao.OrderType {
		case models.OrderTypeBid:
			sawBid = true
		case models.OrderTypeAsk:
			sawAsk = true
		}
	}
	assert.True(t, sawBid)
	assert.True(t, sawAsk)
}

// TestConvertLevels_DropsMalformedLevel drops only the bad level, keeping
// the well-formed ones.
func TestConvertLevels_DropsMalformedLevel(t *testing.T) {
	levels := []orderbookLevel{
		{Price: "10", Size: "1"},
		{Price: "NaN", Size: "1"},
		{Price: "11", Size: "bad"},
	}
	out := convertLevels(1, "ETH", "BTC", models.OrderTypeBid, levels, 1, time.Now())
	require.Len(t, out, 1)
	ao := out[0].(models.AggOrder)
	assert.Equal(t, "10", ao.Price.String())
}

// TestParseRawTrades_UnknownSymbolDropped mirrors the orderbook gate for the
// trades path.
func TestParseRawTrades_UnknownSymbolDropped(t *testing.T) {
	l := newTestListener(symbolInfo{ID: "ETHBTC", BaseCurrency: "ETH", QuoteCurrency: "BTC"})
	payload := mustJSON(t, tradesMessage{Symbol: "LTCBTC", Data: []tradeEntry{{ID: 1, Price: "1", Quantity: "1", Side: "buy", Timestamp: "2024-01-01T00:00:00Z"}}})
	out, err := l.parseRawTrades(payload)
	require.NoError(t, err)
	assert.Nil(t, out)
}

// TestParseRawTrades_FallsBackToUUIDWhenIDZero covers the fallback trade-id
// generation path for a zero venue-assigned id.
func TestParseRawTrades_FallsBackToUUIDWhenIDZero(t *testing.T) {
	l := newTestListener(symbolInfo{ID: "ETHBTC", BaseCurrency: "ETH", QuoteCurrency: "BTC"})
	payload := mustJSON(t, tradesMessage{
		Symbol: "ETHBTC",
		Data:   []tradeEntry{{ID: 0, Price: "1", Quantity: "1", Side: "buy", Timestamp: "2024-01-01T00:00:00Z"}},
	})

	out, err := l.parseRawTrades(payload)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestParseFiniteDecimal_RejectsNaNAndInf(t *testing.T) {
	for _, s := range []string{"NaN", "Infinity", "-inf", ""} {
		_, err := parseFiniteDecimal(s)
		assert.Error(t, err, s)
	}
	d, err := parseFiniteDecimal("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1.5", d.String())
}

func TestParseTimestamp_NormalizesToUTC(t *testing.T) {
	ts, err := parseTimestamp("2024-01-01T00:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())

	_, err = parseTimestamp("not-a-timestamp")
	assert.Error(t, err)
}
