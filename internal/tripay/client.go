// Package tripay implements the Tripay payment gateway: closed
// transaction creation with a merchant HMAC signature, transaction
// detail lookup, the payment channel list with fee math, and callback
// signature verification.
package tripay

import (
	"bytes"
	"context"
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

const defaultBaseURL = "https://tripay.co.id/api"

// Canonical payment statuses. Everything the bot stores and renders
// uses this vocabulary; provider strings are mapped on the way in.
const (
	StatusUnpaid  = "UNPAID"
	StatusPaid    = "PAID"
	StatusExpired = "EXPIRED"
	StatusFailed  = "FAILED"
)

// NormalizeStatus maps provider status strings onto the canonical
// vocabulary. Only explicitly known values leave UNPAID; unknown
// strings never produce a terminal status.
func NormalizeStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case StatusPaid:
		return StatusPaid
	case StatusExpired:
		return StatusExpired
	case StatusFailed, "REFUND", "REFUNDED", "CANCELED", "CANCELLED":
		return StatusFailed
	default:
		return StatusUnpaid
	}
}

// IsTerminal reports whether a canonical status can never change again.
func IsTerminal(status string) bool {
	switch status {
	case StatusPaid, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// Config holds Tripay credentials and transport options.
type Config struct {
	BaseURL      string        `yaml:"base_url" envconfig:"TRIPAY_BASE_URL"`
	APIKey       string        `yaml:"api_key" envconfig:"TRIPAY_API_KEY"`
	PrivateKey   string        `yaml:"private_key" envconfig:"TRIPAY_PRIVATE_KEY"`
	MerchantCode string        `yaml:"merchant_code" envconfig:"TRIPAY_MERCHANT_CODE"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TRIPAY_TIMEOUT"`
	// ChannelCacheTTL bounds how long the Redis copy of the channel
	// list is trusted; 0 uses the channel service default.
	ChannelCacheTTL time.Duration `yaml:"channel_cache_ttl" envconfig:"TRIPAY_CHANNEL_CACHE_TTL"`
}

// APIError is a gateway-level rejection with the gateway's own message.
type APIError struct {
	Op      string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tripay %s: %s", e.Op, e.Message)
}

// Client provides typed access to the Tripay REST API.
type Client struct {
	baseURL      string
	apiKey       string
	privateKey   string
	merchantCode string
	http         *http.Client
	limiter      *rate.Limiter
	metrics      *coremetrics.Metrics
}

// NewClient builds a Tripay client.
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
		baseURL:      base,
		apiKey:       cfg.APIKey,
		privateKey:   cfg.PrivateKey,
		merchantCode: cfg.MerchantCode,
		http:         &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		metrics:      m,
	}
}

// Order is the input for a closed transaction.
type Order struct {
	MerchantRef   string
	Method        string
	Amount        int64
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ItemSKU       string
	ItemName      string
	ReturnURL     string
	ExpiredAt     time.Time
}

// Invoice is the gateway's view of a created transaction.
type Invoice struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Method      string `json:"payment_method"`
	MethodName  string `json:"payment_name"`
	Amount      int64  `json:"amount"`
	TotalFee    int64  `json:"total_fee"`
	PayCode     string `json:"pay_code"`
	PayURL      string `json:"pay_url"`
	CheckoutURL string `json:"checkout_url"`
	QRString    string `json:"qr_string"`
	QRURL       string `json:"qr_url"`
	Status      string `json:"status"`
	ExpiredTime int64  `json:"expired_time"`
}

// Detail is a transaction detail lookup result.
type Detail struct {
	Invoice
	PaidAt int64 `json:"paid_at"`
}

type orderItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type createRequest struct {
	Method        string      `json:"method"`
	MerchantRef   string      `json:"merchant_ref"`
	Amount        int64       `json:"amount"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	CustomerPhone string      `json:"customer_phone,omitempty"`
	OrderItems    []orderItem `json:"order_items"`
	ReturnURL     string      `json:"return_url,omitempty"`
	ExpiredTime   int64       `json:"expired_time,omitempty"`
	Signature     string      `json:"signature"`
}

// CreateInvoice opens a closed transaction for the given order. The
// signature covers merchantCode+merchantRef+amount with the private
// key.
func (c *Client) CreateInvoice(ctx context.Context, order Order) (*Invoice, error) {
	if order.MerchantRef == "" || order.Method == "" || order.Amount <= 0 {
		return nil, fmt.Errorf("tripay create: incomplete order %q", order.MerchantRef)
	}

	req := createRequest{
		Method:        order.Method,
		MerchantRef:   order.MerchantRef,
		Amount:        order.Amount,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
		OrderItems: []orderItem{{
			SKU:      order.ItemSKU,
			Name:     order.ItemName,
			Price:    order.Amount,
			Quantity: 1,
		}},
		ReturnURL: order.ReturnURL,
		Signature: Signature(c.privateKey, c.merchantCode, order.MerchantRef, order.Amount),
	}
	if !order.ExpiredAt.IsZero() {
		req.ExpiredTime = order.ExpiredAt.Unix()
	}

	var invoice Invoice
	if err := c.do(ctx, http.MethodPost, "/transaction/create", nil, req, &invoice); err != nil {
		return nil, err
	}
	invoice.Status = NormalizeStatus(invoice.Status)
	return &invoice, nil
}

// TransactionDetail fetches the current gateway state of a transaction
// by gateway reference or merchant ref.
func (c *Client) TransactionDetail(ctx context.Context, reference string) (*Detail, error) {
	query := url.Values{}
	query.Set("reference", reference)

	var detail Detail
	if err := c.do(ctx, http.MethodGet, "/transaction/detail", query, nil, &detail); err != nil {
		return nil, err
	}
	detail.Status = NormalizeStatus(detail.Status)
	return &detail, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("tripay limiter: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	op := strings.TrimPrefix(path, "/")
	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.GatewayRequests.WithLabelValues(op, "error").Inc()
		}
		return fmt.Errorf("tripay request: %w", err)
	}
	defer res.Body.Close()

	statusLabel := strconv.Itoa(res.StatusCode)
	if c.metrics != nil {
		c.metrics.GatewayRequests.WithLabelValues(op, statusLabel).Inc()
		c.metrics.GatewayLatency.WithLabelValues(op, statusLabel).Observe(time.Since(start).Seconds())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	logger.Debug(ctx, "pay", "tripay.request",
		slog.String("op", op),
		slog.Int("http_status", res.StatusCode),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if res.StatusCode >= 400 {
			return fmt.Errorf("tripay %s: status=%d body=%s", op, res.StatusCode, logger.SanitizeLimit(string(raw), 256))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		message := env.Message
		if message == "" {
			message = fmt.Sprintf("request failed with status %d", res.StatusCode)
		}
		return &APIError{Op: op, Message: message}
	}
	if dest != nil {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
