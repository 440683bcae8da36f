package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkets(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "ETH_BTC", want: []string{"ETH_BTC"}},
		{name: "multiple with spaces", raw: "ETH_BTC, LTC_USD ,  EOS_ETH", want: []string{"ETH_BTC", "LTC_USD", "EOS_ETH"}},
		{name: "malformed", raw: "ETHBTC", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMarkets(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadVenue_RequiresWSURL(t *testing.T) {
	v := viper.New()
	v.AutomaticEnv()
	_, err := loadVenue(v, "hitbtc")
	assert.Error(t, err)
}

func TestLoadVenue_UnknownExchangeRejected(t *testing.T) {
	v := viper.New()
	v.Set("NOSUCHVENUE_WS_URL", "wss://example.test")
	_, err := loadVenue(v, "nosuchvenue")
	assert.Error(t, err)
}
