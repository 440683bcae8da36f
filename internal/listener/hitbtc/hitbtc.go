// Package hitbtc is the reference per-venue parser: it maps HitBTC's native
// JSON protocol onto the action algebra.
package hitbtc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nadircryptocurrency/antalla/internal/actions"
	"github.com/nadircryptocurrency/antalla/internal/listener"
	"github.com/nadircryptocurrency/antalla/internal/models"
)

// TradesLimit is the trade-history depth requested on subscribeTrades;
// HitBTC's own ceiling is 1000.
const TradesLimit = 10

func init() {
	listener.Register("hitbtc", New)
}

// symbolInfo is one entry of HitBTC's public symbol catalog.
type symbolInfo struct {
	ID            string `json:"id"`
	BaseCurrency  string `json:"baseCurrency"`
	QuoteCurrency string `json:"quoteCurrency"`
}

// marketTicker is one entry of HitBTC's public ticker list, used for
// get_markets.
type marketTicker struct {
	Symbol    string `json:"symbol"`
	Volume    string `json:"volume"`
	Timestamp string `json:"timestamp"`
}

// Listener implements listener.ExchangeListener and listener.Handler for
// HitBTC.
type Listener struct {
	*listener.WebsocketListener
	cfg  listener.Config
	sink listener.Sink
	http *resty.Client

	mu      sync.RWMutex
	symbols []symbolInfo
}

// New constructs a HitBTC listener. Matches listener.Constructor.
func New(cfg listener.Config, sink listener.Sink) listener.ExchangeListener {
	l := &Listener{
		cfg:  cfg,
		sink: sink,
		http: resty.New().SetBaseURL(cfg.APIBaseURL).SetTimeout(10 * time.Second),
	}
	l.WebsocketListener = listener.NewWebsocketListener(cfg, sink, l)
	return l
}

func (l *Listener) setSymbols(symbols []symbolInfo) {
	l.mu.Lock()
	l.symbols = symbols
	l.mu.Unlock()
}

// lookupPair maps a HitBTC wire symbol (e.g. "ETHBTC") to its canonical
// (base, quote) pair via the pre-fetched symbol catalog. Returns ok=false if
// the symbol isn't in the catalog — such messages are dropped with a
// warning rather than treated as an error.
func (l *Listener) lookupPair(symbol string) (base, quote string, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	upper := strings.ToUpper(symbol)
	for _, s := range l.symbols {
		if s.ID == upper {
			return s.BaseCurrency, s.QuoteCurrency, true
		}
	}
	return "", "", false
}

// RefreshCache implements listener.Handler: fetch the symbol catalog fresh
// before every (re)connect.
func (l *Listener) RefreshCache(ctx context.Context) error {
	symbols, err := l.fetchAllSymbols(ctx)
	if err != nil {
		return err
	}
	l.setSymbols(symbols)
	return nil
}

func (l *Listener) fetchAllSymbols(ctx context.Context) ([]symbolInfo, error) {
	var symbols []symbolInfo
	resp, err := l.http.R().SetContext(ctx).SetResult(&symbols).Get("/public/symbol")
	if err != nil {
		return nil, fmt.Errorf("fetch symbol catalog: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch symbol catalog: status %d", resp.StatusCode())
	}
	return symbols, nil
}

// GetMarkets performs the one-shot market list fetch: fetch the symbol
// catalog, fetch the ticker list, and emit Coin/Market/ExchangeMarket
// actions for every resolvable symbol.
func (l *Listener) GetMarkets(ctx context.Context) error {
	symbols, err := l.fetchAllSymbols(ctx)
	if err != nil {
		return err
	}
	l.setSymbols(symbols)

	var tickers []marketTicker
	resp, err := l.http.R().SetContext(ctx).SetResult(&tickers).Get("/public/ticker")
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch markets: status %d", resp.StatusCode())
	}

	batch := l.parseMarkets(tickers)
	if len(batch) > 0 && l.sink != nil {
		l.sink(l, batch)
	}
	return nil
}

func (l *Listener) parseMarkets(tickers []marketTicker) []actions.Action {
	var coins []actions.Entity
	var markets []actions.Entity
	var exchangeMarkets []actions.Entity

	for _, t := range tickers {
		base, quote, ok := l.lookupPair(t.Symbol)
		if !ok {
			logrus.WithField("symbol", t.Symbol).Warn("symbol not found in fetched symbols")
			continue
		}
		base, quote = models.NormalizeSymbol(base), models.NormalizeSymbol(quote)
		quotedVolumeID := base

		vol, err := parseFiniteDecimal(t.Volume)
		if err != nil {
			logrus.WithField("symbol", t.Symbol).WithError(err).Warn("dropping market with malformed volume")
			continue
		}
		ts, err := parseTimestamp(t.Timestamp)
		if err != nil {
			logrus.WithField("symbol", t.Symbol).WithError(err).Warn("dropping market with malformed timestamp")
			continue
		}

		first, second := models.CanonicalPair(base, quote)
		coins = append(coins, models.Coin{Symbol: first}, models.Coin{Symbol: second})
		markets = append(markets, models.Market{FirstCoinID: first, SecondCoinID: second})
		exchangeMarkets = append(exchangeMarkets, models.ExchangeMarket{
			FirstCoinID:    first,
			SecondCoinID:   second,
			ExchangeID:     l.cfg.Exchange.ID,
			QuotedVolume:   vol,
			QuotedVolumeID: quotedVolumeID,
			QuotedVolTime:  ts,
		})
	}

	var out []actions.Action
	if len(coins) > 0 {
		out = append(out, actions.NewInsertAction(coins))
	}
	if len(markets) > 0 {
		out = append(out, actions.NewInsertAction(markets))
	}
	if len(exchangeMarkets) > 0 {
		out = append(out, actions.NewInsertAction(exchangeMarkets))
	}
	return out
}

// subscribeMessage is the {method, params, id} frame shape shared by every
// subscription request.
type subscribeMessage struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
	ID     string      `json:"id"`
}

// Subscribe implements listener.Handler: one orderbook + one trades
// subscription per configured market.
func (l *Listener) Subscribe(ctx context.Context, conn *websocket.Conn) error {
	for _, pair := range l.cfg.Markets {
		symbol := strings.ToUpper(strings.ReplaceAll(pair, "_", ""))

		if err := conn.WriteJSON(subscribeMessage{
			Method: "subscribeOrderbook",
			Params: map[string]string{"symbol": symbol},
			ID:     l.cfg.APIKey,
		}); err != nil {
			return fmt.Errorf("subscribe orderbook %s: %w", symbol, err)
		}

		if err := conn.WriteJSON(subscribeMessage{
			Method: "subscribeTrades",
			Params: map[string]interface{}{"symbol": symbol, "limit": TradesLimit},
			ID:     l.cfg.APIKey,
		}); err != nil {
			return fmt.Errorf("subscribe trades %s: %w", symbol, err)
		}
	}
	return nil
}

// inboundEnvelope captures just enough of an inbound frame to dispatch it.
type inboundEnvelope struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type parseFunc func(l *Listener, payload json.RawMessage) ([]actions.Action, error)

// dispatch is the explicit {event_name -> parse_fn} table: no reflection-
// based lookup.
var dispatch = map[string]parseFunc{
	"snapshotOrderbook": (*Listener).parseSnapshotOrderbook,
	"snapshotTrades":    (*Listener).parseSnapshotTrades,
	"updateTrades":      (*Listener).parseUpdateTrades,
}

// HandleMessage implements listener.Handler.
func (l *Listener) HandleMessage(raw []byte) ([]actions.Action, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Method == "" {
		logrus.WithField("message", string(raw)).Warn("unknown message received")
		return nil, nil
	}
	fn, ok := dispatch[env.Method]
	if !ok {
		logrus.WithField("method", env.Method).Debug("unhandled message method")
		return nil, nil
	}
	return fn(l, env.Params)
}

type orderbookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type orderbookSnapshot struct {
	Symbol    string           `json:"symbol"`
	Sequence  int64            `json:"sequence"`
	Timestamp string           `json:"timestamp"`
	Ask       []orderbookLevel `json:"ask"`
	Bid       []orderbookLevel `json:"bid"`
}

func (l *Listener) parseSnapshotOrderbook(payload json.RawMessage) ([]actions.Action, error) {
	var snap orderbookSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshotOrderbook: %w", err)
	}

	base, quote, ok := l.lookupPair(snap.Symbol)
	if !ok {
		logrus.WithField("symbol", snap.Symbol).Warn("no market found for symbol")
		return nil, nil
	}
	ts, err := parseTimestamp(snap.Timestamp)
	if err != nil {
		logrus.WithField("symbol", snap.Symbol).WithError(err).Warn("dropping orderbook snapshot with malformed timestamp")
		return nil, nil
	}

	var orders []actions.Entity
	orders = append(orders, convertLevels(l.cfg.Exchange.ID, base, quote, models.OrderTypeBid, snap.Bid, snap.Sequence, ts)...)
	orders = append(orders, convertLevels(l.cfg.Exchange.ID, base, quote, models.OrderTypeAsk, snap.Ask, snap.Sequence, ts)...)
	if len(orders) == 0 {
		return nil, nil
	}
	return []actions.Action{actions.NewInsertAction(orders)}, nil
}

func convertLevels(exchangeID int64, base, quote string, ot models.OrderType, levels []orderbookLevel, lastUpdateID int64, ts time.Time) []actions.Entity {
	out := make([]actions.Entity, 0, len(levels))
	for _, lv := range levels {
		price, err := parseFiniteDecimal(lv.Price)
		if err != nil {
			logrus.WithError(err).Warn("dropping aggregate order level with malformed price")
			continue
		}
		size, err := parseFiniteDecimal(lv.Size)
		if err != nil {
			logrus.WithError(err).Warn("dropping aggregate order level with malformed size")
			continue
		}
		out = append(out, models.AggOrder{
			ExchangeID:   exchangeID,
			BuySymID:     base,
			SellSymID:    quote,
			OrderType:    ot,
			Price:        price,
			Size:         size,
			LastUpdateID: lastUpdateID,
			Timestamp:    ts,
		})
	}
	return out
}

type tradeEntry struct {
	ID        int64  `json:"id"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	Side      string `json:"side"`
	Timestamp string `json:"timestamp"`
}

type tradesMessage struct {
	Symbol string       `json:"symbol"`
	Data   []tradeEntry `json:"data"`
}

func (l *Listener) parseSnapshotTrades(payload json.RawMessage) ([]actions.Action, error) {
	return l.parseRawTrades(payload)
}

func (l *Listener) parseUpdateTrades(payload json.RawMessage) ([]actions.Action, error) {
	return l.parseRawTrades(payload)
}

func (l *Listener) parseRawTrades(payload json.RawMessage) ([]actions.Action, error) {
	var msg tradesMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	base, quote, ok := l.lookupPair(msg.Symbol)
	if !ok {
		logrus.WithField("symbol", msg.Symbol).Warn("no market found for symbol")
		return nil, nil
	}

	var trades []actions.Entity
	for _, t := range msg.Data {
		price, err := parseFiniteDecimal(t.Price)
		if err != nil {
			logrus.WithError(err).Warn("dropping trade with malformed price")
			continue
		}
		size, err := parseFiniteDecimal(t.Quantity)
		if err != nil {
			logrus.WithError(err).Warn("dropping trade with malformed quantity")
			continue
		}
		ts, err := parseTimestamp(t.Timestamp)
		if err != nil {
			logrus.WithError(err).Warn("dropping trade with malformed timestamp")
			continue
		}
		tradeID := strconv.FormatInt(t.ID, 10)
		if t.ID == 0 {
			// HitBTC always assigns a trade id; this only guards against a
			// future venue reusing this parser without one.
			tradeID = uuid.NewString()
		}
		trades = append(trades, models.Trade{
			ID:         l.cfg.Exchange.Name + ":" + tradeID,
			ExchangeID: l.cfg.Exchange.ID,
			BuySymID:   base,
			SellSymID:  quote,
			Timestamp:  ts,
			TradeType:  t.Side,
			Price:      price,
			Size:       size,
		})
	}
	if len(trades) == 0 {
		return nil, nil
	}
	return []actions.Action{actions.NewInsertAction(trades)}, nil
}

// parseFiniteDecimal converts a venue numeric string to a finite decimal,
// rejecting NaN/Inf.
func parseFiniteDecimal(s string) (decimal.Decimal, error) {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "" || strings.Contains(lower, "nan") || strings.Contains(lower, "inf") {
		return decimal.Decimal{}, fmt.Errorf("non-finite numeric value: %q", s)
	}
	return decimal.NewFromString(s)
}

// parseTimestamp parses a venue timestamp to UTC.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
