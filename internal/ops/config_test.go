package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadResolvesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"api": {"baseUrl": "https://example.test", "key": "k", "secret": "s"},
		"strategy": [{"symbol": "BTC"}],
		"risk": {"BTC": {"maxNetPosition": 10, "maxNotional": 50000}}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test", loaded.Gateway.BaseURL)
	assert.Equal(t, 5*time.Second, loaded.Gateway.Timeout)
	assert.Equal(t, 100, loaded.Submit.RateLimit)
	assert.Equal(t, time.Second, loaded.Submit.RateWindow)
	assert.Equal(t, 3, loaded.Submit.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, loaded.Tick)

	require.Len(t, loaded.Strategy, 1)
	q := loaded.Strategy[0]
	assert.Equal(t, "BTC", q.Symbol)
	assert.Equal(t, "20", q.SpreadBps.String())
	assert.Equal(t, 3, q.OrdersPerSide)
	assert.Equal(t, time.Second, q.RefreshInterval)

	limits, ok := loaded.Risk["BTC"]
	require.True(t, ok)
	assert.Equal(t, "10", limits.MaxNetPosition.String())
	assert.Equal(t, "50000", limits.MaxNotional.String())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"api": {
			"baseUrl": "https://example.test",
			"timeoutMs": 2500,
			"maxRetries": 5,
			"retryDelayMs": 250,
			"rateLimit": 40,
			"rateWindowMs": 500
		},
		"engine": {"tickIntervalMs": 50},
		"strategy": [{
			"symbol": "ETH",
			"spreadBps": 15,
			"minEdgeBps": 3,
			"orderSize": 0.5,
			"ordersPerSide": 2,
			"inventorySkew": 0.2,
			"refreshIntervalMs": 750
		}],
		"breakers": [{"id": "eth-vol", "symbol": "ETH", "cooldownSec": 90}]
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2500*time.Millisecond, loaded.Gateway.Timeout)
	assert.Equal(t, 40, loaded.Submit.RateLimit)
	assert.Equal(t, 500*time.Millisecond, loaded.Submit.RateWindow)
	assert.Equal(t, 5, loaded.Submit.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, loaded.Submit.RetryDelay)
	assert.Equal(t, 50*time.Millisecond, loaded.Tick)

	require.Len(t, loaded.Strategy, 1)
	q := loaded.Strategy[0]
	assert.Equal(t, "15", q.SpreadBps.String())
	assert.Equal(t, "0.5", q.OrderSize.String())
	assert.Equal(t, 2, q.OrdersPerSide)
	assert.Equal(t, "0.2", q.InventorySkew.String())
	assert.Equal(t, 750*time.Millisecond, q.RefreshInterval)

	require.Len(t, loaded.Breakers, 1)
	assert.Equal(t, "eth-vol", loaded.Breakers[0].ID)
	assert.Equal(t, 90*time.Second, loaded.Breakers[0].Cooldown)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"no strategies":   `{"api": {}}`,
		"empty symbol":    `{"strategy": [{"symbol": ""}]}`,
		"negative limit":  `{"strategy": [{"symbol": "BTC"}], "risk": {"BTC": {"maxNotional": -1}}}`,
		"breaker no id":   `{"strategy": [{"symbol": "BTC"}], "breakers": [{"cooldownSec": 60}]}`,
		"breaker no cool": `{"strategy": [{"symbol": "BTC"}], "breakers": [{"id": "x"}]}`,
		"bad json":        `{`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	loaded := Default()
	require.Len(t, loaded.Strategy, 1)
	assert.Equal(t, "BTC", loaded.Strategy[0].Symbol)
	assert.NotEmpty(t, loaded.Gateway.BaseURL)
	assert.False(t, loaded.Store.Enabled)
}
