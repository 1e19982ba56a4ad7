// Package gateway talks to the SSLCommerz hosted checkout.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"goride/internal/service"
)

const initPath = "/gwprocess/v4/api.php"

// ErrSessionRejected is returned when the gateway refuses to open a session.
var ErrSessionRejected = errors.New("gateway rejected payment session")

// Config holds the SSLCommerz merchant settings.
type Config struct {
	BaseURL        string // e.g. https://sandbox.sslcommerz.com
	StoreID        string
	StorePassword  string
	Currency       string
	SuccessURL     string // callback base, transactionId is appended
	FailURL        string
	CancelURL      string
	DefaultAddress string
	DefaultPhone   string
	Timeout        time.Duration
}

// SSLCommerz implements service.PaymentGateway.
type SSLCommerz struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// Ensure SSLCommerz implements service.PaymentGateway.
var _ service.PaymentGateway = (*SSLCommerz)(nil)

// NewSSLCommerz creates a gateway client.
func NewSSLCommerz(cfg Config, client *http.Client, logger *zap.Logger) *SSLCommerz {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if cfg.Currency == "" {
		cfg.Currency = "BDT"
	}
	if cfg.DefaultAddress == "" {
		cfg.DefaultAddress = "Dhaka, Bangladesh"
	}
	if cfg.DefaultPhone == "" {
		cfg.DefaultPhone = "01700000000"
	}
	return &SSLCommerz{cfg: cfg, client: client, logger: logger}
}

type initResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// InitPayment opens a hosted checkout session.
func (g *SSLCommerz) InitPayment(ctx context.Context, req service.GatewayRequest) (*service.GatewaySession, error) {
	form := g.form(req)

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + initPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.Error("gateway request failed", zap.String("transaction_id", req.TransactionID), zap.Error(err))
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		g.logger.Error("gateway returned error status",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(body)),
		)
		return nil, fmt.Errorf("%w: http %d", ErrSessionRejected, resp.StatusCode)
	}

	var parsed initResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse gateway response: %w", err)
	}
	if !strings.EqualFold(parsed.Status, "SUCCESS") || parsed.GatewayPageURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrSessionRejected, parsed.FailedReason)
	}

	g.logger.Info("gateway session opened", zap.String("transaction_id", req.TransactionID))
	return &service.GatewaySession{
		TransactionID: req.TransactionID,
		PaymentURL:    parsed.GatewayPageURL,
		Raw:           json.RawMessage(body),
	}, nil
}

func (g *SSLCommerz) form(req service.GatewayRequest) url.Values {
	address := req.Address
	if address == "" {
		address = g.cfg.DefaultAddress
	}
	phone := req.Phone
	if phone == "" {
		phone = g.cfg.DefaultPhone
	}
	amount := req.Amount.StringFixed(2)

	form := url.Values{}
	form.Set("store_id", g.cfg.StoreID)
	form.Set("store_passwd", g.cfg.StorePassword)
	form.Set("total_amount", amount)
	form.Set("currency", g.cfg.Currency)
	form.Set("tran_id", req.TransactionID)
	form.Set("success_url", callbackURL(g.cfg.SuccessURL, req.TransactionID, amount, "success"))
	form.Set("fail_url", callbackURL(g.cfg.FailURL, req.TransactionID, amount, "fail"))
	form.Set("cancel_url", callbackURL(g.cfg.CancelURL, req.TransactionID, amount, "cancel"))
	form.Set("shipping_method", "N/A")
	form.Set("product_name", "Ride")
	form.Set("product_category", "Service")
	form.Set("product_profile", "general")
	form.Set("cus_name", req.Name)
	form.Set("cus_email", req.Email)
	form.Set("cus_add1", address)
	form.Set("cus_city", "Dhaka")
	form.Set("cus_country", "Bangladesh")
	form.Set("cus_phone", phone)
	return form
}

func callbackURL(base, transactionID, amount, status string) string {
	q := url.Values{}
	q.Set("transactionId", transactionID)
	q.Set("amount", amount)
	q.Set("status", status)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
