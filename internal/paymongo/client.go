package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

//go:generate mockgen -destination=../mocks/paymongo_mock.go -package=mocks donation-platform/internal/paymongo CheckoutClient

const DefaultBaseURL = "https://api.paymongo.com"

// ErrIncompleteSession is returned when the provider answers 2xx without a
// session id or checkout url.
var ErrIncompleteSession = errors.New("paymongo returned no usable checkout session")

type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
}

type CheckoutSessionRequest struct {
	// Amount is in centavos.
	Amount             int64
	Currency           string
	Name               string
	Description        string
	PaymentMethodTypes []string
	SuccessURL         string
	CancelURL          string
	Metadata           map[string]string
}

type CheckoutSession struct {
	ID          string
	CheckoutURL string
}

type ErrorDetail struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Source *struct {
		Pointer   string `json:"pointer"`
		Attribute string `json:"attribute"`
	} `json:"source,omitempty"`
}

// APIError is a non-2xx answer from PayMongo.
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("paymongo error %d: %s: %s", e.StatusCode, e.Errors[0].Code, e.Errors[0].Detail)
	}
	return fmt.Sprintf("paymongo error %d: %s", e.StatusCode, e.Body)
}

type clientImpl struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

func NewClient(baseURL, secretKey string, timeout time.Duration) CheckoutClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &clientImpl{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
	}
}

type lineItem struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type checkoutAttributes struct {
	LineItems          []lineItem        `json:"line_items"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	SuccessURL         string            `json:"success_url"`
	CancelURL          string            `json:"cancel_url"`
	Description        string            `json:"description,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	SendEmailReceipt   bool              `json:"send_email_receipt"`
	ShowDescription    bool              `json:"show_description"`
	ShowLineItems      bool              `json:"show_line_items"`
}

type checkoutPayload struct {
	Data struct {
		Attributes checkoutAttributes `json:"attributes"`
	} `json:"data"`
}

type checkoutResult struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"attributes"`
	} `json:"data"`
}

func (c *clientImpl) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	var payload checkoutPayload
	payload.Data.Attributes = checkoutAttributes{
		LineItems: []lineItem{{
			Amount:   req.Amount,
			Currency: req.Currency,
			Name:     req.Name,
			Quantity: 1,
		}},
		PaymentMethodTypes: req.PaymentMethodTypes,
		SuccessURL:         req.SuccessURL,
		CancelURL:          req.CancelURL,
		Description:        req.Description,
		Metadata:           req.Metadata,
		ShowDescription:    req.Description != "",
		ShowLineItems:      true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout_sessions",
		bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.secretKey + ":"))
	httpReq.Header.Set("Authorization", "Basic "+auth)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("paymongo create checkout session: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read paymongo response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		var errBody struct {
			Errors []ErrorDetail `json:"errors"`
		}
		if json.Unmarshal(respBody, &errBody) == nil {
			apiErr.Errors = errBody.Errors
		}
		return nil, apiErr
	}

	var result checkoutResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode paymongo response: %w", err)
	}
	if result.Data.ID == "" || result.Data.Attributes.CheckoutURL == "" {
		return nil, ErrIncompleteSession
	}

	return &CheckoutSession{
		ID:          result.Data.ID,
		CheckoutURL: result.Data.Attributes.CheckoutURL,
	}, nil
}
