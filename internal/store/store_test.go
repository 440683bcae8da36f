package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedKeys_IsDeterministic(t *testing.T) {
	m := map[string]interface{}{"sell_sym_id": "BTC", "exchange_id": int64(1), "buy_sym_id": "ETH"}
	for i := 0; i < 10; i++ {
		assert.Equal(t, []string{"buy_sym_id", "exchange_id", "sell_sym_id"}, sortedKeys(m))
	}
}

func TestSortedKeys_Empty(t *testing.T) {
	assert.Empty(t, sortedKeys(nil))
}

func TestJoinComma(t *testing.T) {
	assert.Equal(t, "", joinComma(nil))
	assert.Equal(t, "a", joinComma([]string{"a"}))
	assert.Equal(t, "a, b, c", joinComma([]string{"a", "b", "c"}))
}

func TestJoinAnd(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", joinAnd([]string{"a = $1", "b = $2"}))
}

func TestContains(t *testing.T) {
	set := []string{"exchange_id", "buy_sym_id"}
	assert.True(t, contains(set, "buy_sym_id"))
	assert.False(t, contains(set, "missing"))
	assert.False(t, contains(nil, "anything"))
}
