package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rentpay/pkg/logger"
	"rentpay/pkg/metrics"
)

const (
	initializePath = "/v1/transaction/initialize"
	verifyPath     = "/v1/transaction/verify/"

	opInitialize = "initialize"
	opVerify     = "verify"

	maxResponseBytes = 1 << 20
)

type ChapaConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// ChapaClient talks to the Chapa hosted-checkout API.
type ChapaClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	log        *logger.Logger
}

func NewChapaClient(cfg ChapaConfig, log *logger.Logger) *ChapaClient {
	return &ChapaClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

type chapaInitializeRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number,omitempty"`
	TxRef       string `json:"tx_ref"`
	CallbackURL string `json:"callback_url"`
	ReturnURL   string `json:"return_url,omitempty"`
}

type chapaResponse struct {
	Message json.RawMessage `json:"message"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

type chapaInitializeData struct {
	CheckoutURL string `json:"checkout_url"`
	Reference   string `json:"reference"`
}

type chapaVerifyData struct {
	Status    string `json:"status"`
	TxRef     string `json:"tx_ref"`
	Reference string `json:"reference"`
}

func (c *ChapaClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := chapaInitializeRequest{
		Amount:      req.Amount.GatewayAmount(),
		Currency:    req.Amount.Currency,
		Email:       req.PayerEmail,
		PhoneNumber: req.PayerPhone,
		TxRef:       req.TxRef,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
	}

	resp, err := c.do(ctx, opInitialize, http.MethodPost, initializePath, body)
	if err != nil {
		return nil, err
	}

	var data chapaInitializeData
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.CheckoutURL == "" {
		return nil, &Error{Kind: Unreachable, Operation: opInitialize, Message: "response carried no checkout_url", Err: err}
	}

	return &InitializeResult{
		CheckoutURL: data.CheckoutURL,
		ProviderRef: data.Reference,
	}, nil
}

func (c *ChapaClient) Verify(ctx context.Context, txRef string) (Status, error) {
	resp, err := c.do(ctx, opVerify, http.MethodGet, verifyPath+url.PathEscape(txRef), nil)
	if err != nil {
		return StatusUnknown, err
	}

	var data chapaVerifyData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return StatusUnknown, &Error{Kind: Unreachable, Operation: opVerify, Message: "malformed verify response", Err: err}
	}

	return mapChapaStatus(data.Status), nil
}

// mapChapaStatus treats anything not clearly final as unknown.
func mapChapaStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "successful":
		return StatusSuccess
	case "failed", "cancelled", "canceled", "reversed":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

func (c *ChapaClient) do(ctx context.Context, operation, method, path string, payload any) (*chapaResponse, error) {
	start := time.Now()
	resp, err := c.send(ctx, operation, method, path, payload)

	outcome := "ok"
	var gwErr *Error
	if errors.As(err, &gwErr) {
		outcome = gwErr.Kind.String()
	} else if err != nil {
		outcome = "error"
	}
	metrics.ObserveGateway(operation, outcome, time.Since(start).Seconds())

	if err != nil {
		c.log.Warn("Payment gateway call failed",
			"operation", operation,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	c.log.Debug("Payment gateway call succeeded",
		"operation", operation,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (c *ChapaClient) send(ctx context.Context, operation, method, path string, payload any) (*chapaResponse, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Kind: Unreachable, Operation: operation, Message: "failed to marshal request body", Err: err}
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &Error{Kind: Unreachable, Operation: operation, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: Unreachable, Operation: operation, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: Unreachable, Operation: operation, StatusCode: httpResp.StatusCode, Err: err}
	}

	var resp chapaResponse
	decodeErr := json.Unmarshal(respBody, &resp)

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return nil, &Error{Kind: Unreachable, Operation: operation, StatusCode: httpResp.StatusCode, Message: messageText(resp.Message)}
	case httpResp.StatusCode >= 400:
		return nil, &Error{Kind: Rejected, Operation: operation, StatusCode: httpResp.StatusCode, Message: messageText(resp.Message)}
	case decodeErr != nil:
		return nil, &Error{Kind: Unreachable, Operation: operation, StatusCode: httpResp.StatusCode, Message: "malformed response body", Err: decodeErr}
	}

	return &resp, nil
}

// messageText flattens Chapa's message field, which is either a string or an
// object of field errors.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
