package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrGateway = errors.New("payment gateway")

// Gateway creates payment intents on the external provider. The provider
// later confirms them through the signed callback handled by the order
// service.
type Gateway interface {
	CreateIntent(ctx context.Context, amountMinorUnits int64, currency string) (string, error)
}

// Client talks to a razorpay-style orders API with basic auth.
type Client struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	HTTP      *http.Client
}

func NewClient(baseURL, keyID, keySecret string) *Client {
	return &Client{
		BaseURL:   baseURL,
		KeyID:     keyID,
		KeySecret: keySecret,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
	}
}

type createIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type createIntentResponse struct {
	ID string `json:"id"`
}

func (c *Client) CreateIntent(ctx context.Context, amountMinorUnits int64, currency string) (string, error) {
	body, err := json.Marshal(createIntentRequest{Amount: amountMinorUnits, Currency: currency})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.KeyID, c.KeySecret)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: unexpected status %d", ErrGateway, resp.StatusCode)
	}

	var out createIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: empty intent id", ErrGateway)
	}

	return out.ID, nil
}
