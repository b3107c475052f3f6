// Package payment talks to the external checkout gateway. A reservation
// is linked to its payment through the checkout's external reference,
// which carries the reservation ID back in webhook notifications.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agendo/internal/config"
)

// Gateway creates checkouts and resolves payment notifications.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	QueryPayment(ctx context.Context, paymentID string) (*PaymentInfo, error)
}

// CheckoutRequest describes one reservation to be paid.
type CheckoutRequest struct {
	ReservationID string
	Title         string
	AmountCents   int64
	Currency      string
	PayerName     string
	PayerEmail    string
}

// Checkout is the gateway's hosted payment page for a reservation.
type Checkout struct {
	ID          string
	CheckoutURL string
}

// PaymentInfo is the gateway's view of a payment, queried after a
// webhook notification.
type PaymentInfo struct {
	ID                string
	Status            string
	ExternalReference string
}

// Payment states as reported by the gateway.
const (
	StatusApproved  = "approved"
	StatusPending   = "pending"
	StatusInProcess = "in_process"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Approved reports whether the gateway considers the payment settled.
func (p *PaymentInfo) Approved() bool {
	return p.Status == StatusApproved
}

// Client is an HTTP Gateway implementation against a Mercado-Pago
// style checkout API.
type Client struct {
	baseURL     string
	accessToken string
	successURL  string
	failureURL  string
	httpClient  *http.Client
}

// NewClient constructs a gateway client from config.
func NewClient(cfg config.PaymentConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		successURL:  cfg.SuccessURL,
		failureURL:  cfg.FailureURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferencePayer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type preferenceBackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
}

type preferenceRequest struct {
	Items             []preferenceItem   `json:"items"`
	Payer             preferencePayer    `json:"payer"`
	ExternalReference string             `json:"external_reference"`
	BackURLs          preferenceBackURLs `json:"back_urls"`
	AutoReturn        string             `json:"auto_return,omitempty"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// CreateCheckout registers a payment preference carrying the
// reservation ID as the external reference.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	body := preferenceRequest{
		Items: []preferenceItem{{
			Title:      req.Title,
			Quantity:   1,
			UnitPrice:  float64(req.AmountCents) / 100,
			CurrencyID: req.Currency,
		}},
		Payer: preferencePayer{
			Name:  req.PayerName,
			Email: req.PayerEmail,
		},
		ExternalReference: req.ReservationID,
		BackURLs: preferenceBackURLs{
			Success: c.successURL,
			Failure: c.failureURL,
		},
	}
	if c.successURL != "" {
		body.AutoReturn = "approved"
	}

	var resp preferenceResponse
	if err := c.doPost(ctx, c.baseURL+"/checkout/preferences", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to create checkout: %w", err)
	}
	return &Checkout{ID: resp.ID, CheckoutURL: resp.InitPoint}, nil
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
}

// QueryPayment fetches the current state of a payment by gateway ID.
func (c *Client) QueryPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, url.PathEscape(paymentID))
	var resp paymentResponse
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}
	return &PaymentInfo{
		ID:                resp.ID.String(),
		Status:            resp.Status,
		ExternalReference: resp.ExternalReference,
	}, nil
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
}
