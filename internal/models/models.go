// Package models holds the domain entities persisted by the ingestion
// pipeline and read back by the snapshot generator.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType distinguishes the two sides of a price ladder.
type OrderType string

const (
	OrderTypeBid OrderType = "bid"
	OrderTypeAsk OrderType = "ask"
)

// Coin is a venue-agnostic currency, keyed by its uppercase symbol.
type Coin struct {
	Symbol           string // primary key, always uppercase
	Name             string
	PriceUSD         decimal.Decimal
	LastPriceUpdated time.Time
}

// Exchange identifies a venue.
type Exchange struct {
	ID   int64
	Name string
}

// Market is the venue-agnostic, canonically ordered pair of coins.
type Market struct {
	FirstCoinID  string
	SecondCoinID string
}

// ExchangeMarket is a venue's instance of a Market.
type ExchangeMarket struct {
	FirstCoinID      string
	SecondCoinID     string
	ExchangeID       int64
	QuotedVolume     decimal.Decimal
	QuotedVolumeID   string // which coin the quoted volume is denominated in
	QuotedVolTime    time.Time
	VolumeUSD        decimal.Decimal
	VolUSDTimestamp  time.Time
}

// OrderKey is the composite identity shared by Order and its amendments.
// Modeled as a value object composed by inclusion rather than an
// inheritance hierarchy.
type OrderKey struct {
	ExchangeID      int64
	ExchangeOrderID string
}

// Order is an individual limit/market order.
type Order struct {
	Key         OrderKey
	BuySymID    string
	SellSymID   string
	Side        string // "buy" or "sell"
	OrderType   string // "limit", "market", ...
	Timestamp   time.Time
	FilledAt    *time.Time
	Expiry      *time.Time
	CancelledAt *time.Time
	AmountBuy   decimal.Decimal
	AmountSell  decimal.Decimal
	GasFee      decimal.Decimal
	User        string
}

// OrderSize is a time-stamped amendment to the evolving size of a live order.
type OrderSize struct {
	Key       OrderKey
	Timestamp time.Time
	Size      decimal.Decimal
}

// MarketOrderFunds is a time-stamped amendment to the evolving funds backing
// a live market order.
type MarketOrderFunds struct {
	Key       OrderKey
	Timestamp time.Time
	Funds     decimal.Decimal
}

// Trade is an execution record.
type Trade struct {
	ID            string // venue-assigned
	ExchangeID    int64
	BuySymID      string
	SellSymID     string
	Timestamp     time.Time
	TradeType     string // side: "buy"/"sell"
	Maker         string
	Taker         string
	Price         decimal.Decimal
	Size          decimal.Decimal
	Total         decimal.Decimal
	BuyerFee      decimal.Decimal
	SellerFee     decimal.Decimal
	GasFee        decimal.Decimal
	BuyOrderID    string
	SellOrderID   string
}

// AggOrder is one append-only row of a venue's level-2 price-ladder history.
type AggOrder struct {
	ExchangeID   int64
	BuySymID     string
	SellSymID    string
	OrderType    OrderType
	Price        decimal.Decimal
	Size         decimal.Decimal
	LastUpdateID int64
	Timestamp    time.Time
}

// OrderBookSnapshot is a derived, per-(venue, market, timestamp) statistical
// digest of the reconstructed order book.
type OrderBookSnapshot struct {
	ExchangeID int64
	BuySymID   string
	SellSymID  string
	Timestamp  time.Time

	Spread        decimal.Decimal
	BidsCount     int
	AsksCount     int
	BidsVolume    decimal.Decimal
	AsksVolume    decimal.Decimal
	BidsPriceMean decimal.Decimal
	AsksPriceMean decimal.Decimal
	BidsPriceStd  decimal.Decimal
	AsksPriceStd  decimal.Decimal
	BidPriceMedian decimal.Decimal
	AskPriceMedian decimal.Decimal
	MinAskPrice   decimal.Decimal
	MinAskSize    decimal.Decimal
	MaxBidPrice   decimal.Decimal
	MaxBidSize    decimal.Decimal

	// Quartile sub-book statistics.
	BidPriceUpperQuartile       decimal.Decimal
	AskPriceLowerQuartile       decimal.Decimal
	BidsVolumeUpperQuartile     decimal.Decimal
	AsksVolumeLowerQuartile     decimal.Decimal
	BidsCountUpperQuartile      int
	AsksCountLowerQuartile      int
	BidsPriceStdUpperQuartile   decimal.Decimal
	AsksPriceStdLowerQuartile   decimal.Decimal
	BidsPriceMeanUpperQuartile  decimal.Decimal
	AsksPriceMeanLowerQuartile  decimal.Decimal
}

// NormalizeSymbol upper-cases a coin symbol; symbols are always stored
// uppercase.
func NormalizeSymbol(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}

// CanonicalPair returns the two symbols in lexicographic order, the
// venue-agnostic canonical form a Market is stored under.
func CanonicalPair(a, b string) (first, second string) {
	a, b = NormalizeSymbol(a), NormalizeSymbol(b)
	if a <= b {
		return a, b
	}
	return b, a
}
