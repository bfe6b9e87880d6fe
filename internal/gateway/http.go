package gateway

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"mmbot/internal/schema"
	"mmbot/pkg/exception"
)

const (
	_hyperliquidBaseUrl    = "https://api.hyperliquid.xyz"
	_hyperliquidBaseUrlDev = "https://api.hyperliquid-testnet.xyz"

	_defaultTimeout = 5 * time.Second
)

// Config holds the REST endpoint and credentials.
type Config struct {
	BaseURL string
	Key     string
	Secret  string
	Timeout time.Duration
}

// DefaultConfig returns the production endpoint with the standard timeout.
func DefaultConfig() Config {
	return Config{BaseURL: _hyperliquidBaseUrl, Timeout: _defaultTimeout}
}

// Client is an HTTP Gateway implementation.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a gateway client. A nil http client uses the default.
func NewClient(cfg Config, client *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = _hyperliquidBaseUrl
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = _defaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Client{cfg: cfg, client: client}
}

type response[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
	Error  string `json:"error"`
}

type placeOrderData struct {
	OrderID string `json:"oid"`
	Status  string `json:"status"`
}

type accountData struct {
	Equity       decimal.Decimal `json:"equity"`
	Withdrawable decimal.Decimal `json:"withdrawable"`
}

func wireSide(side schema.Side) string {
	switch side {
	case schema.SideSell:
		return "A"
	default:
		return "B"
	}
}

// PlaceOrder submits a resting order and returns the exchange order id.
// Market orders are not supported on this venue.
func (c *Client) PlaceOrder(ctx context.Context, o schema.NewOrder, clientOrderID uint64) (string, error) {
	if !o.Type.IsAvailable() || o.Type == schema.OrderTypeMarket {
		return "", exception.ErrOrderUnsupportedType
	}

	body := map[string]string{
		"access_id": c.cfg.Key,
		"tm":        strconv.FormatInt(time.Now().Unix(), 10),
		"coin":      o.Symbol,
		"side":      wireSide(o.Side),
		"px":        o.Price.String(),
		"sz":        o.Size.String(),
		"cloid":     strconv.FormatUint(clientOrderID, 10),
	}
	if o.Type == schema.OrderTypePostOnly {
		body["tif"] = "Alo"
	}

	var data placeOrderData
	if err := c.post(ctx, "/exchange/order", body, &data); err != nil {
		return "", err
	}
	if data.OrderID == "" {
		return "", exception.ErrOrderRejected
	}
	return data.OrderID, nil
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]string{
		"access_id": c.cfg.Key,
		"tm":        strconv.FormatInt(time.Now().Unix(), 10),
		"coin":      symbol,
		"oid":       orderID,
	}
	var data struct{}
	return c.post(ctx, "/exchange/cancel", body, &data)
}

// AccountState fetches the account snapshot.
func (c *Client) AccountState(ctx context.Context) (AccountState, error) {
	body := map[string]string{
		"access_id": c.cfg.Key,
		"tm":        strconv.FormatInt(time.Now().Unix(), 10),
	}
	var data accountData
	if err := c.post(ctx, "/info/account", body, &data); err != nil {
		return AccountState{}, err
	}
	return AccountState{Equity: data.Equity, Withdrawable: data.Withdrawable}, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]string, out any) error {
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	r, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.cfg.BaseURL+path,
		bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("authorization", signBody(body, c.cfg.Secret))

	resp, err := c.client.Do(r)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return exception.ErrTimeout
		}
		return exception.ErrNetwork
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	var envelope response[json.RawMessage]
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return exception.ErrParse
	}
	if envelope.Status == "err" || envelope.Error != "" {
		return classifyRejection(envelope.Error)
	}
	if len(envelope.Data) > 0 {
		if err := sonic.ConfigFastest.Unmarshal(envelope.Data, out); err != nil {
			return exception.ErrParse
		}
	}
	return nil
}

// signBody is a placeholder signature over the sorted request parameters.
func signBody(body map[string]string, secret string) string {
	pairs := make([]string, 0, len(body)+1)
	for k, v := range body {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	pairs = append(pairs, fmt.Sprintf("secret_key=%s", secret))
	sort.Strings(pairs)
	hash := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(hash[:])
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return exception.ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return exception.ErrAuthentication
	case code >= 500:
		return exception.ErrNetwork
	default:
		return exception.ErrOrderInvalid
	}
}

func classifyRejection(msg string) error {
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "insufficient"):
		return exception.ErrInsufficientBalance
	case strings.Contains(lowered, "invalid"):
		return exception.ErrOrderInvalid
	case strings.Contains(lowered, "rate limit"):
		return exception.ErrRateLimited
	default:
		return exception.ErrOrderRejected
	}
}
