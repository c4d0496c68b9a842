// Package catalog integrates the VIP Reseller game-feature API: the
// service list the storefront sells from, player nickname lookups, and
// top-up fulfillment orders. Everything goes through one form-encoded
// endpoint selected by a "type" field.
package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"golang.org/x/time/rate"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
	coremetrics "github.com/riky-24/bot-medsos-sub000/core/metrics"
)

const (
	defaultBaseURL  = "https://vip-reseller.co.id"
	gameFeaturePath = "/api/game-feature"
	formContentType = "application/x-www-form-urlencoded"
)

// Config holds VIP Reseller credentials and transport options.
type Config struct {
	BaseURL string        `yaml:"base_url" envconfig:"VIP_BASE_URL"`
	APIID   string        `yaml:"api_id" envconfig:"VIP_API_ID"`
	APIKey  string        `yaml:"api_key" envconfig:"VIP_API_KEY"`
	Timeout time.Duration `yaml:"timeout" envconfig:"VIP_TIMEOUT"`
	// CacheTTL bounds how long the Redis copy of the service list is
	// trusted; 0 uses the catalog service default.
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"VIP_CACHE_TTL"`
}

// APIError is a provider-level rejection (result=false) with the
// provider's own message, used upstream to tell "player not found" from
// provider trouble.
type APIError struct {
	Op      string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vip %s: %s", e.Op, e.Message)
}

// Client provides typed access to the VIP Reseller H2H API.
type Client struct {
	baseURL string
	apiID   string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	metrics *coremetrics.Metrics
}

// NewClient builds a VIP Reseller client. Requests are throttled with a
// small token bucket so catalog refreshes cannot burst the provider.
func NewClient(cfg Config, m *coremetrics.Metrics) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: base,
		apiID:   cfg.APIID,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		metrics: m,
	}
}

// sign is MD5(apiID+apiKey) per the provider contract.
func (c *Client) sign() string {
	sum := md5.Sum([]byte(c.apiID + c.apiKey))
	return hex.EncodeToString(sum[:])
}

// envelope mirrors the provider's standard response shape. Result and
// message come back with loose typing depending on the endpoint.
type envelope struct {
	Result  bool
	Message string
	Data    json.RawMessage
}

func (r *envelope) UnmarshalJSON(data []byte) error {
	type alias struct {
		Result  json.RawMessage `json:"result"`
		Message json.RawMessage `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	r.Data = a.Data
	r.Message = strings.TrimSpace(strings.Trim(string(a.Message), `"`))
	if len(a.Result) != 0 {
		var boolVal bool
		if err := json.Unmarshal(a.Result, &boolVal); err == nil {
			r.Result = boolVal
		} else {
			str := strings.Trim(strings.TrimSpace(string(a.Result)), `"`)
			r.Result = strings.EqualFold(str, "true") || strings.EqualFold(str, "success") || str == "1"
		}
	}
	return nil
}

// ServiceRow is one product row of the provider's service list.
type ServiceRow struct {
	Code   string
	Game   string
	Name   string
	Price  int64
	Status string
}

// UnmarshalJSON tolerates the provider's tiered price object and key
// variants.
func (s *ServiceRow) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Code = readString(raw, "code", "service")
	s.Game = readString(raw, "game", "category")
	s.Name = readString(raw, "name")
	s.Status = strings.ToLower(readString(raw, "status"))
	s.Price = readPrice(raw)
	return nil
}

// Services fetches the provider's full game service list.
func (c *Client) Services(ctx context.Context) ([]ServiceRow, error) {
	form := url.Values{}
	form.Set("type", "services")

	env, err := c.postForm(ctx, "services", form)
	if err != nil {
		return nil, err
	}

	var rows []ServiceRow
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}
	return rows, nil
}

// Nickname resolves a player id to its in-game nickname. code is the
// provider's per-game nickname lookup code.
func (c *Client) Nickname(ctx context.Context, code, target, zone string) (string, error) {
	form := url.Values{}
	form.Set("type", "get-nickname")
	form.Set("code", code)
	form.Set("target", target)
	if zone != "" {
		form.Set("additional_target", zone)
	}

	env, err := c.postForm(ctx, "get-nickname", form)
	if err != nil {
		return "", err
	}

	// Data is usually the bare nickname string; some games return an
	// object instead.
	var nickname string
	if err := json.Unmarshal(env.Data, &nickname); err == nil {
		return strings.TrimSpace(nickname), nil
	}
	data, err := decodeMap(env.Data)
	if err != nil {
		return "", fmt.Errorf("decode nickname: %w", err)
	}
	return firstString(data, "nickname", "name", "username"), nil
}

// OrderResult captures the provider's view of one fulfillment order.
type OrderResult struct {
	TrxID  string
	Status string
	SN     string
	Note   string
}

// CreateOrder places a top-up order for a validated player.
func (c *Client) CreateOrder(ctx context.Context, serviceCode, target, zone string) (*OrderResult, error) {
	form := url.Values{}
	form.Set("type", "order")
	form.Set("service", serviceCode)
	form.Set("data_no", target)
	if zone != "" {
		form.Set("data_zone", zone)
	}

	env, err := c.postForm(ctx, "order", form)
	if err != nil {
		return nil, err
	}
	data, err := decodeMap(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &OrderResult{
		TrxID:  firstString(data, "trxid", "trx_id", "id"),
		Status: normalizeOrderStatus(firstString(data, "status")),
		SN:     firstString(data, "sn", "serial_number"),
		Note:   firstString(data, "note", "message"),
	}, nil
}

// OrderStatus checks a previously placed order by provider trx id.
func (c *Client) OrderStatus(ctx context.Context, trxID string) (*OrderResult, error) {
	form := url.Values{}
	form.Set("type", "status")
	form.Set("trxid", trxID)

	env, err := c.postForm(ctx, "status", form)
	if err != nil {
		return nil, err
	}

	// Status queries may answer with a single object or a list.
	data, err := decodeMap(env.Data)
	if err != nil {
		rows, sliceErr := decodeSlice(env.Data)
		if sliceErr != nil || len(rows) == 0 {
			return nil, fmt.Errorf("decode status: %w", err)
		}
		data = rows[0]
	}
	return &OrderResult{
		TrxID:  firstString(data, "trxid", "trx_id", "id"),
		Status: normalizeOrderStatus(firstString(data, "status")),
		SN:     firstString(data, "sn", "serial_number"),
		Note:   firstString(data, "note", "message"),
	}, nil
}

func (c *Client) postForm(ctx context.Context, op string, form url.Values) (*envelope, error) {
	form.Set("key", c.apiKey)
	form.Set("sign", c.sign())

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("vip limiter: %w", err)
	}

	reqURL := c.baseURL + gameFeaturePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.ProviderRequests.WithLabelValues(op, "error").Inc()
		}
		return nil, fmt.Errorf("vip request: %w", err)
	}
	defer res.Body.Close()

	statusLabel := strconv.Itoa(res.StatusCode)
	if c.metrics != nil {
		c.metrics.ProviderRequests.WithLabelValues(op, statusLabel).Inc()
		c.metrics.ProviderLatency.WithLabelValues(op, statusLabel).Observe(time.Since(start).Seconds())
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	logger.Debug(ctx, "catalog", "vip.request",
		slog.String("op", op),
		slog.Int("http_status", res.StatusCode),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)

	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("vip %s: status=%d body=%s", op, res.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Result {
		message := env.Message
		if message == "" {
			message = "operation failed"
		}
		return nil, &APIError{Op: op, Message: message}
	}
	return &env, nil
}

func normalizeOrderStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "sukses", "berhasil", "completed", "done":
		return "success"
	case "pending", "waiting", "process", "processing", "diproses", "menunggu":
		return "processing"
	case "error", "failed", "gagal", "cancel", "cancelled", "refund", "refunded":
		return "failed"
	default:
		return strings.ToLower(strings.TrimSpace(status))
	}
}

func decodeMap(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeSlice(raw json.RawMessage) ([]map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if val, ok := data[key]; ok {
			if str := toString(val); str != "" {
				return str
			}
		}
	}
	return ""
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func readString(raw map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		if val, ok := raw[key]; ok {
			var decoded string
			if err := json.Unmarshal(val, &decoded); err == nil {
				if decoded = strings.TrimSpace(decoded); decoded != "" {
					return decoded
				}
				continue
			}
			if str := strings.Trim(strings.TrimSpace(string(val)), `"`); str != "" && str != "null" {
				return str
			}
		}
	}
	return ""
}

func readPrice(raw map[string]json.RawMessage) int64 {
	val, ok := raw["price"]
	if !ok {
		return 0
	}
	nested := make(map[string]json.RawMessage)
	if err := json.Unmarshal(val, &nested); err == nil {
		for _, key := range []string{"basic", "premium", "special"} {
			if v := readNumber(nested[key]); v > 0 {
				return v
			}
		}
		return 0
	}
	return readNumber(val)
}

func readNumber(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		str = strings.ReplaceAll(strings.TrimSpace(str), ".", "")
		str = strings.ReplaceAll(str, ",", "")
		if parsed, err := strconv.ParseInt(str, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
