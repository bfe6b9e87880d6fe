package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"mmbot/internal/gateway"
	"mmbot/internal/quote"
	"mmbot/internal/schema"
	"mmbot/internal/submit"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Api      ApiConfig             `json:"api"`
	Engine   EngineConfig          `json:"engine"`
	Strategy []StrategyConfig      `json:"strategy"`
	Risk     map[string]RiskConfig `json:"risk"`
	Breakers []BreakerConfig       `json:"breakers"`
	Store    StoreConfig           `json:"store"`
}

// ApiConfig describes the exchange endpoints and request budget.
type ApiConfig struct {
	BaseUrl      string `json:"baseUrl"`
	WsUrl        string `json:"wsUrl"`
	Key          string `json:"key"`
	Secret       string `json:"secret"`
	TimeoutMs    int    `json:"timeoutMs"`
	MaxRetries   int    `json:"maxRetries"`
	RetryDelayMs int    `json:"retryDelayMs"`
	RateLimit    int    `json:"rateLimit"`
	RateWindowMs int    `json:"rateWindowMs"`
}

// EngineConfig describes the control loop.
type EngineConfig struct {
	TickIntervalMs int `json:"tickIntervalMs"`
}

// StrategyConfig describes one symbol's quoting parameters.
type StrategyConfig struct {
	Symbol            string          `json:"symbol"`
	SpreadBps         decimal.Decimal `json:"spreadBps"`
	MinEdgeBps        decimal.Decimal `json:"minEdgeBps"`
	OrderSize         decimal.Decimal `json:"orderSize"`
	OrdersPerSide     int             `json:"ordersPerSide"`
	InventorySkew     decimal.Decimal `json:"inventorySkew"`
	RefreshIntervalMs int             `json:"refreshIntervalMs"`
}

// RiskConfig describes one symbol's limits.
type RiskConfig struct {
	MaxNetPosition    decimal.Decimal `json:"maxNetPosition"`
	MaxNotional       decimal.Decimal `json:"maxNotional"`
	MaxDailyLoss      decimal.Decimal `json:"maxDailyLoss"`
	MaxSpreadBps      decimal.Decimal `json:"maxSpreadBps"`
	MaxPriceChangePct decimal.Decimal `json:"maxPriceChangePct"`
}

// BreakerConfig describes a circuit breaker entry.
type BreakerConfig struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	CooldownSec int    `json:"cooldownSec"`
}

// StoreConfig describes the optional trade journal database.
type StoreConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Gateway  gateway.Config
	WsUrl    string
	Submit   submit.Config
	Tick     time.Duration
	Strategy []quote.Config
	Risk     map[string]schema.RiskLimits
	Breakers []schema.CircuitBreaker
	Store    StoreConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

// Default returns the configuration used when no file is given: one BTC
// strategy with moderate limits against the production endpoints.
func Default() Loaded {
	return Loaded{
		Gateway:  gateway.DefaultConfig(),
		Submit:   submit.DefaultConfig(),
		Tick:     100 * time.Millisecond,
		Strategy: []quote.Config{quote.DefaultConfig("BTC")},
		Risk:     map[string]schema.RiskLimits{"BTC": schema.ModerateLimits()},
		Breakers: []schema.CircuitBreaker{
			{ID: "btc-volatility", Symbol: "BTC", Cooldown: time.Minute},
		},
	}
}

func resolve(cfg FileConfig) (Loaded, error) {
	out := Loaded{
		Gateway: gateway.Config{
			BaseURL: cfg.Api.BaseUrl,
			Key:     cfg.Api.Key,
			Secret:  cfg.Api.Secret,
			Timeout: durationMs(cfg.Api.TimeoutMs, 5000),
		},
		WsUrl: cfg.Api.WsUrl,
		Submit: submit.Config{
			RateLimit:    orDefault(cfg.Api.RateLimit, 100),
			RateWindow:   durationMs(cfg.Api.RateWindowMs, 1000),
			MaxRetries:   orDefault(cfg.Api.MaxRetries, 3),
			RetryDelay:   durationMs(cfg.Api.RetryDelayMs, 1000),
			PollInterval: 100 * time.Millisecond,
		},
		Tick:  durationMs(cfg.Engine.TickIntervalMs, 100),
		Risk:  make(map[string]schema.RiskLimits, len(cfg.Risk)),
		Store: cfg.Store,
	}

	if len(cfg.Strategy) == 0 {
		return Loaded{}, fmt.Errorf("no strategies configured")
	}
	for _, s := range cfg.Strategy {
		if s.Symbol == "" {
			return Loaded{}, fmt.Errorf("strategy symbol is empty")
		}
		q := quote.DefaultConfig(s.Symbol)
		if s.SpreadBps.IsPositive() {
			q.SpreadBps = s.SpreadBps
		}
		if s.MinEdgeBps.IsPositive() {
			q.MinEdgeBps = s.MinEdgeBps
		}
		if s.OrderSize.IsPositive() {
			q.OrderSize = s.OrderSize
		}
		if s.OrdersPerSide > 0 {
			q.OrdersPerSide = s.OrdersPerSide
		}
		if !s.InventorySkew.IsZero() {
			q.InventorySkew = s.InventorySkew
		}
		if s.RefreshIntervalMs > 0 {
			q.RefreshInterval = time.Duration(s.RefreshIntervalMs) * time.Millisecond
		}
		if s.InventorySkew.IsNegative() {
			return Loaded{}, fmt.Errorf("strategy %s: inventorySkew must be >= 0", s.Symbol)
		}
		out.Strategy = append(out.Strategy, q)
	}

	for symbol, r := range cfg.Risk {
		if r.MaxNetPosition.IsNegative() || r.MaxNotional.IsNegative() ||
			r.MaxDailyLoss.IsNegative() || r.MaxSpreadBps.IsNegative() ||
			r.MaxPriceChangePct.IsNegative() {
			return Loaded{}, fmt.Errorf("risk %s: limits must be >= 0", symbol)
		}
		out.Risk[symbol] = schema.RiskLimits{
			MaxNetPosition:    r.MaxNetPosition,
			MaxNotional:       r.MaxNotional,
			MaxDailyLoss:      r.MaxDailyLoss,
			MaxSpreadBps:      r.MaxSpreadBps,
			MaxPriceChangePct: r.MaxPriceChangePct,
		}
	}

	for _, b := range cfg.Breakers {
		if b.ID == "" {
			return Loaded{}, fmt.Errorf("breaker id is empty")
		}
		if b.CooldownSec <= 0 {
			return Loaded{}, fmt.Errorf("breaker %s: cooldownSec must be > 0", b.ID)
		}
		out.Breakers = append(out.Breakers, schema.CircuitBreaker{
			ID:       b.ID,
			Symbol:   b.Symbol,
			Cooldown: time.Duration(b.CooldownSec) * time.Second,
		})
	}

	return out, nil
}

func durationMs(ms, fallback int) time.Duration {
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
