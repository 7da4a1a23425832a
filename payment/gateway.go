package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type SessionRequest struct {
	OrderID       string
	Amount        float64
	Currency      string
	Method        string
	Description   string
	CustomerEmail string
}

// Session is a hosted checkout the customer is redirected to.
type Session struct {
	Reference string
	URL       string
}

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// HostedCheckout talks to a JSON hosted-checkout API.
type HostedCheckout struct {
	endpoint  string
	apiKey    string
	returnURL string
	client    *http.Client
}

func NewHostedCheckout(endpoint, apiKey, returnURL string) *HostedCheckout {
	return &HostedCheckout{
		endpoint:  endpoint,
		apiKey:    apiKey,
		returnURL: returnURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type sessionPayload struct {
	Method string       `json:"method"`
	Order  orderPayload `json:"order"`
	Return returnURLs   `json:"return"`
}

type orderPayload struct {
	CartID      string `json:"cartid"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Email       string `json:"email,omitempty"`
	PayMethod   string `json:"paymethod"`
}

type returnURLs struct {
	Authorised string `json:"authorised"`
	Declined   string `json:"declined"`
	Cancelled  string `json:"cancelled"`
}

type sessionResponse struct {
	Order struct {
		Ref string `json:"ref"`
		URL string `json:"url"`
	} `json:"order"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (h *HostedCheckout) returnTo(orderID, outcome string) string {
	q := url.Values{"orderId": {orderID}, "payment": {outcome}}
	return h.returnURL + "?" + q.Encode()
}

func (h *HostedCheckout) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	payload := sessionPayload{
		Method: "create",
		Order: orderPayload{
			CartID:      req.OrderID,
			Amount:      strconv.FormatFloat(req.Amount, 'f', 2, 64),
			Currency:    req.Currency,
			Description: req.Description,
			Email:       req.CustomerEmail,
			PayMethod:   req.Method,
		},
		Return: returnURLs{
			Authorised: h.returnTo(req.OrderID, "authorised"),
			Declined:   h.returnTo(req.OrderID, "declined"),
			Cancelled:  h.returnTo(req.OrderID, "cancelled"),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrGatewayUnavailable, resp.StatusCode, raw)
	}

	var out sessionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse session response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("gateway error %s: %s", out.Error.Code, out.Error.Message)
	}
	if out.Order.URL == "" || out.Order.Ref == "" {
		return nil, errors.New("gateway returned an empty session")
	}
	return &Session{Reference: out.Order.Ref, URL: out.Order.URL}, nil
}

// Sandbox issues local sessions without a remote gateway. The result is
// reported through the signed callback endpoint like a real gateway would.
type Sandbox struct {
	ReturnURL string
}

func (s Sandbox) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
	ref := "sbx_" + uuid.NewString()
	q := url.Values{"orderId": {req.OrderID}, "ref": {ref}}
	return &Session{Reference: ref, URL: s.ReturnURL + "?" + q.Encode()}, nil
}
