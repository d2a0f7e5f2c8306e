package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stationpay/mpesa-gateway/internal/pkg/env"
)

const defaultFCMEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMClient sends push notifications through the FCM legacy HTTP API.
type FCMClient struct {
	ServerKey string
	Endpoint  string

	HTTPClient *http.Client
}

// NewFCMClientFromEnv builds a client from FCM_SERVER_KEY; with an empty key
// Send becomes a no-op error, which callers treat as best-effort.
func NewFCMClientFromEnv() *FCMClient {
	return &FCMClient{
		ServerKey: strings.TrimSpace(env.GetEnv("FCM_SERVER_KEY", "")),
		Endpoint:  strings.TrimSpace(env.GetEnv("FCM_ENDPOINT", defaultFCMEndpoint)),
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Send delivers one high-priority notification to a device token.
func (c *FCMClient) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if c.ServerKey == "" {
		return errors.New("fcm server key is not configured")
	}
	if token == "" {
		return errors.New("device token is required")
	}

	payload := map[string]interface{}{
		"to": token,
		"notification": map[string]interface{}{
			"title":              title,
			"body":               body,
			"sound":              "default",
			"android_channel_id": "mpesa_payments",
			"priority":           "high",
		},
		"data":         data,
		"priority":     "high",
		"time_to_live": 60,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.ServerKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fcm send failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out struct {
		Success int `json:"success"`
	}
	if jerr := json.Unmarshal(respBody, &out); jerr == nil && out.Success == 0 {
		return fmt.Errorf("fcm rejected message: %s", string(respBody))
	}
	return nil
}
