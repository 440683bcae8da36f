package models

// This file implements the actions.Entity contract (TableName/PrimaryKey/
// Columns) for every persisted type. Defined here, not in package actions,
// so models has no dependency on the action algebra — Go's structural
// interfaces let actions.Entity be satisfied without an import back.

func (c Coin) TableName() string { return "coins" }

func (c Coin) PrimaryKey() map[string]interface{} {
	return map[string]interface{}{"symbol": c.Symbol}
}

func (c Coin) Columns() map[string]interface{} {
	cols := map[string]interface{}{"symbol": c.Symbol}
	if c.Name != "" {
		cols["name"] = c.Name
	}
	if !c.PriceUSD.IsZero() {
		cols["price_usd"] = c.PriceUSD
	}
	if !c.LastPriceUpdated.IsZero() {
		cols["last_price_updated"] = c.LastPriceUpdated
	}
	return cols
}

func (e Exchange) TableName() string { return "exchanges" }

func (e Exchange) PrimaryKey() map[string]interface{} {
	return map[string]interface{}{"id": e.ID}
}

func (e Exchange) Columns() map[string]interface{} {
	cols := map[string]interface{}{"id": e.ID}
	if e.Name != "" {
		cols["name"] = e.Name
	}
	return cols
}

func (m Market) TableName() string { return "markets" }

func (m Market) PrimaryKey() map[string]interface{} {
	return map[string]interface{}{"first_coin_id": m.FirstCoinID, "second_coin_id": m.SecondCoinID}
}

func (m Market) Columns() map[string]interface{} {
	return map[string]interface{}{
		"first_coin_id":  m.FirstCoinID,
		"second_coin_id": m.SecondCoinID,
	}
}

func (em ExchangeMarket) TableName() string { return "exchange_markets" }

func (em ExchangeMarket) PrimaryKey() map[string]interface{} {
	return map[string]interface{}{
		"first_coin_id":  em.FirstCoinID,
		"second_coin_id": em.SecondCoinID,
		"exchange_id":    em.ExchangeID,
	}
}

func (em ExchangeMarket) Columns() map[string]interface{} {
	cols := em.PrimaryKey()
	if em.QuotedVolumeID != "" {
		cols["quoted_volume_id"] = em.QuotedVolumeID
		cols["quoted_volume"] = em.QuotedVolume
		cols["quoted_vol_timestamp"] = em.QuotedVolTime
	}
	if !em.VolUSDTimestamp.IsZero() {
		cols["volume_usd"] = em.VolumeUSD
		cols["vol_usd_timestamp"] = em.VolUSDTimestamp
	}
	return cols
}

func (o Order) TableName() string { return "orders" }

func (o Order) PrimaryKey() map[string]interface{} {
	return map[string]interface{}{
		"exchange_id":       o.Key.ExchangeID,
		"exchange_order_id": o.Key.ExchangeOrderID,
	}
}

func (o Order) Columns() map[string]interface{} {
	cols := o.PrimaryKey()
	cols["buy_sym_id"] = o.BuySymID
	cols["sell_sym_id"] = o.SellSymID
	cols["side"] = o.Side
	cols["order_type"] = o.OrderType
	cols["timestamp"] = o.Timestamp
	cols["amount_buy"] = o.AmountBuy
	cols["amount_sell"] = o.AmountSell
	if o.FilledAt != nil {
		cols["filled_at"] = *o.FilledAt
	}
	if o.Expiry != nil {
		cols["expiry"] = *o.Expiry
	}
	if o.CancelledAt != nil {
		cols["cancelled_at"] = *o.CancelledAt
	}
	if o.User != "" {
		cols["user"] = o.User
	}
	return cols
}

func (s OrderSize) TableName() string { return "order_sizes" }

func (s OrderSize) PrimaryKey() map[string]interface{} {
	return map[string]interface{}{
		"exchange_id":       s.Key.ExchangeID,
		"exchange_order_id": s.Key.ExchangeOrderID,
		"timestamp":         s.Timestamp,
	}
}

func (s OrderSize) Columns() map[string]interface{} {
	cols := s.PrimaryKey()
	cols["size"] = s.Size
	return cols
}

func (f MarketOrderFunds) TableName() string { return "market_order_funds" }

func (f MarketOrderFunds) PrimaryKey() map[string]interface{} {
	return map[string]interface{}{
		"exchange_id":       f.Key.ExchangeID,
		"exchange_order_id": f.Key.ExchangeOrderID,
		"timestamp":         f.Timestamp,
	}
}

func (f MarketOrderFunds) Columns() map[string]interface{} {
	cols := f.PrimaryKey()
	cols["funds"] = f.Funds
	return cols
}

func (t Trade) TableName() string { return "trades" }

func (t Trade) PrimaryKey() map[string]interface{} {
	return map[string]interface{}{"id": t.ID}
}

func (t Trade) Columns() map[string]interface{} {
	return map[string]interface{}{
		"id":            t.ID,
		"exchange_id":   t.ExchangeID,
		"buy_sym_id":    t.BuySymID,
		"sell_sym_id":   t.SellSymID,
		"timestamp":     t.Timestamp,
		"trade_type":    t.TradeType,
		"maker":         t.Maker,
		"taker":         t.Taker,
		"price":         t.Price,
		"size":          t.Size,
		"total":         t.Total,
		"buyer_fee":     t.BuyerFee,
		"seller_fee":    t.SellerFee,
		"gas_fee":       t.GasFee,
		"buy_order_id":  t.BuyOrderID,
		"sell_order_id": t.SellOrderID,
	}
}

func (a AggOrder) TableName() string { return "aggregate_orders" }

// PrimaryKey includes last_update_id: AggOrder rows are append-only, never
// mutated, so each sequence number for a given (order_type, price) is a
// distinct row rather than an update to a prior one. Including it here
// keeps batch coalescing from merging two genuinely different rows, and
// matches the aggregate_orders UNIQUE constraint the generic Upsert's
// ON CONFLICT target depends on.
func (a AggOrder) PrimaryKey() map[string]interface{} {
	return map[string]interface{}{
		"exchange_id":    a.ExchangeID,
		"buy_sym_id":     a.BuySymID,
		"sell_sym_id":    a.SellSymID,
		"order_type":     string(a.OrderType),
		"price":          a.Price.String(),
		"last_update_id": a.LastUpdateID,
	}
}

func (a AggOrder) Columns() map[string]interface{} {
	cols := a.PrimaryKey()
	cols["size"] = a.Size
	cols["timestamp"] = a.Timestamp
	return cols
}

func (s OrderBookSnapshot) TableName() string { return "order_book_snapshots" }

func (s OrderBookSnapshot) PrimaryKey() map[string]interface{} {
	return map[string]interface{}{
		"exchange_id": s.ExchangeID,
		"buy_sym_id":  s.BuySymID,
		"sell_sym_id": s.SellSymID,
		"timestamp":   s.Timestamp,
	}
}

func (s OrderBookSnapshot) Columns() map[string]interface{} {
	cols := s.PrimaryKey()
	cols["spread"] = s.Spread
	cols["bids_count"] = s.BidsCount
	cols["asks_count"] = s.AsksCount
	cols["bids_volume"] = s.BidsVolume
	cols["asks_volume"] = s.AsksVolume
	cols["bids_price_mean"] = s.BidsPriceMean
	cols["asks_price_mean"] = s.AsksPriceMean
	cols["bids_price_stddev"] = s.BidsPriceStd
	cols["asks_price_stddev"] = s.AsksPriceStd
	cols["bid_price_median"] = s.BidPriceMedian
	cols["ask_price_median"] = s.AskPriceMedian
	cols["min_ask_price"] = s.MinAskPrice
	cols["min_ask_size"] = s.MinAskSize
	cols["max_bid_price"] = s.MaxBidPrice
	cols["max_bid_size"] = s.MaxBidSize
	cols["bid_price_upper_quartile"] = s.BidPriceUpperQuartile
	cols["ask_price_lower_quartile"] = s.AskPriceLowerQuartile
	cols["bids_volume_upper_quartile"] = s.BidsVolumeUpperQuartile
	cols["asks_volume_lower_quartile"] = s.AsksVolumeLowerQuartile
	cols["bids_count_upper_quartile"] = s.BidsCountUpperQuartile
	cols["asks_count_lower_quartile"] = s.AsksCountLowerQuartile
	cols["bids_price_stddev_upper_quartile"] = s.BidsPriceStdUpperQuartile
	cols["asks_price_stddev_lower_quartile"] = s.AsksPriceStdLowerQuartile
	cols["bids_price_mean_upper_quartile"] = s.BidsPriceMeanUpperQuartile
	cols["asks_price_mean_lower_quartile"] = s.AsksPriceMeanLowerQuartile
	return cols
}
