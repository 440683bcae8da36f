package actions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadircryptocurrency/antalla/internal/models"
)

type stubEntity struct {
	table string
	pk    map[string]interface{}
	cols  map[string]interface{}
}

func (e stubEntity) TableName() string                  { return e.table }
func (e stubEntity) PrimaryKey() map[string]interface{}  { return e.pk }
func (e stubEntity) Columns() map[string]interface{}     { return e.cols }

// TestNewInsertAction_CoalescesDuplicateKeys: the last entity for a given
// primary key wins, and insertion order of the surviving keys is preserved.
func TestNewInsertAction_CoalescesDuplicateKeys(t *testing.T) {
	a := NewInsertAction([]Entity{
		stubEntity{table: "coins", pk: map[string]interface{}{"symbol": "ETH"}, cols: map[string]interface{}{"symbol": "ETH", "name": "stale"}},
		stubEntity{table: "coins", pk: map[string]interface{}{"symbol": "BTC"}, cols: map[string]interface{}{"symbol": "BTC", "name": "Bitcoin"}},
		stubEntity{table: "coins", pk: map[string]interface{}{"symbol": "ETH"}, cols: map[string]interface{}{"symbol": "ETH", "name": "Ethereum"}},
	})

	require.Len(t, a.Entities, 2)
	assert.Equal(t, "ETH", a.Entities[0].PrimaryKey()["symbol"])
	assert.Equal(t, "Ethereum", a.Entities[0].Columns()["name"])
	assert.Equal(t, "BTC", a.Entities[1].PrimaryKey()["symbol"])
}

// TestNewInsertAction_CoalescesMultiFieldKeys guards the keyString sort:
// without it, map iteration order could make two equal multi-field
// primary keys hash to different strings and defeat coalescing.
func TestNewInsertAction_CoalescesMultiFieldKeys(t *testing.T) {
	pk := func() map[string]interface{} {
		return map[string]interface{}{"exchange_id": int64(1), "buy_sym_id": "ETH", "sell_sym_id": "BTC"}
	}
	a := NewInsertAction([]Entity{
		stubEntity{table: "exchange_markets", pk: pk(), cols: map[string]interface{}{"quoted_volume": "1"}},
		stubEntity{table: "exchange_markets", pk: pk(), cols: map[string]interface{}{"quoted_volume": "2"}},
	})
	require.Len(t, a.Entities, 1)
	assert.Equal(t, "2", a.Entities[0].Columns()["quoted_volume"])
}

// TestNewInsertAction_CoalescesTimeKeyedEntities guards the toString
// time.Time case: OrderBookSnapshot and similar entities key partly on a
// timestamp, and two equal timestamps must coalesce like any other field
// while two different timestamps must stay separate.
func TestNewInsertAction_CoalescesTimeKeyedEntities(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pk := func() map[string]interface{} {
		return map[string]interface{}{"exchange_id": int64(1), "timestamp": ts}
	}
	a := NewInsertAction([]Entity{
		stubEntity{table: "order_book_snapshots", pk: pk(), cols: map[string]interface{}{"spread": "1"}},
		stubEntity{table: "order_book_snapshots", pk: pk(), cols: map[string]interface{}{"spread": "2"}},
	})
	require.Len(t, a.Entities, 1)
	assert.Equal(t, "2", a.Entities[0].Columns()["spread"])

	b := NewInsertAction([]Entity{
		stubEntity{table: "order_book_snapshots", pk: map[string]interface{}{"exchange_id": int64(1), "timestamp": ts}},
		stubEntity{table: "order_book_snapshots", pk: map[string]interface{}{"exchange_id": int64(1), "timestamp": ts.Add(time.Second)}},
	})
	assert.Len(t, b.Entities, 2)
}

type recordingTx struct {
	upserts []Entity
	updates []string
	cancels []models.OrderKey
}

func (tx *recordingTx) Upsert(_ context.Context, e Entity) error {
	tx.upserts = append(tx.upserts, e)
	return nil
}
func (tx *recordingTx) UpdateFields(_ context.Context, table string, _ map[string]interface{}, _ map[string]interface{}) error {
	tx.updates = append(tx.updates, table)
	return nil
}
func (tx *recordingTx) CancelOrder(_ context.Context, key models.OrderKey, _ time.Time) error {
	tx.cancels = append(tx.cancels, key)
	return nil
}

func TestInsertAction_Execute(t *testing.T) {
	tx := &recordingTx{}
	a := NewInsertAction([]Entity{stubEntity{table: "coins", pk: map[string]interface{}{"symbol": "ETH"}}})
	require.NoError(t, a.Execute(context.Background(), tx))
	assert.Len(t, tx.upserts, 1)
}

func TestUpdateAction_Execute(t *testing.T) {
	tx := &recordingTx{}
	a := &UpdateAction{Table: "exchange_markets", Key: map[string]interface{}{"exchange_id": int64(1)}, Fields: map[string]interface{}{"quoted_volume": "1"}}
	require.NoError(t, a.Execute(context.Background(), tx))
	assert.Equal(t, []string{"exchange_markets"}, tx.updates)
}

func TestCancelAction_Execute(t *testing.T) {
	tx := &recordingTx{}
	key := models.OrderKey{ExchangeID: 1, ExchangeOrderID: "abc"}
	a := &CancelAction{Key: key, CancelledAt: time.Now()}
	require.NoError(t, a.Execute(context.Background(), tx))
	assert.Equal(t, []models.OrderKey{key}, tx.cancels)
}
