package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stationpay/mpesa-gateway/internal/pkg/env"
)

const (
	defaultBaseURL = "https://api.safaricom.co.ke"

	authPath     = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	// TransactionTypeBuyGoods targets till numbers; paybill shortcodes would
	// use CustomerPayBillOnline instead.
	TransactionTypeBuyGoods = "CustomerBuyGoodsOnline"

	authTimeout = 10 * time.Second
)

// APIError surfaces non-successful HTTP responses from Daraja, carrying the
// provider's errorCode/errorMessage body when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mpesa api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the Daraja REST API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClientFromEnv constructs a client honoring the MPESA_BASE_URL override
// (sandbox vs production).
func NewClientFromEnv() *Client {
	base := strings.TrimRight(env.GetEnv("MPESA_BASE_URL", defaultBaseURL), "/")
	return &Client{
		BaseURL: base,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Password derives the Daraja request password and its timestamp component.
func Password(shortCode, passKey string, t time.Time) (password, timestamp string) {
	timestamp = t.Format("20060102150405")
	password = base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
	return password, timestamp
}

// Authorize obtains an access token using consumer key/secret basic auth.
// Token lifetime in seconds is returned alongside; Daraja sends it as a
// string and omissions default to an hour.
func (c *Client) Authorize(ctx context.Context, consumerKey, consumerSecret string) (token string, expiresIn int, err error) {
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+authPath, nil)
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(consumerKey, consumerSecret)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", 0, err
	}

	var out AuthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", 0, fmt.Errorf("decode auth response: %w", err)
	}
	if out.AccessToken == "" {
		return "", 0, fmt.Errorf("auth response missing access_token: %s", string(body))
	}

	expiresIn = 3600
	if out.ExpiresIn != "" {
		if _, perr := fmt.Sscanf(out.ExpiresIn, "%d", &expiresIn); perr != nil {
			expiresIn = 3600
		}
	}
	return out.AccessToken, expiresIn, nil
}

// STKPush submits a push-payment request.
func (c *Client) STKPush(ctx context.Context, token string, push *STKPushRequest) (*STKPushResponse, error) {
	body, err := c.postJSON(ctx, stkPushPath, token, push)
	if err != nil {
		return nil, err
	}

	var out STKPushResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode stkpush response: %w", err)
	}
	return &out, nil
}

// STKQuery fetches the current state of a previously submitted push.
func (c *Client) STKQuery(ctx context.Context, token, shortCode, passKey, checkoutRequestID string) (*STKQueryResponse, error) {
	password, timestamp := Password(shortCode, passKey, time.Now())
	query := &STKQueryRequest{
		BusinessShortCode: shortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	body, err := c.postJSON(ctx, stkQueryPath, token, query)
	if err != nil {
		return nil, err
	}

	var out STKQueryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode stkquery response: %w", err)
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var raw struct {
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		}
		if jerr := json.Unmarshal(body, &raw); jerr == nil && raw.ErrorMessage != "" {
			apiErr.Code = raw.ErrorCode
			apiErr.Message = raw.ErrorMessage
		} else {
			apiErr.Message = string(body)
		}
		return nil, apiErr
	}
	return body, nil
}
