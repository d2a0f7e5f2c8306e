package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationpay/mpesa-gateway/app/models"
	"github.com/stationpay/mpesa-gateway/internal/pkg/payments"
)

type fakePaymentService struct {
	initiateResult *payments.InitiateResult
	initiateErr    error

	reconciled   []payments.Outcome
	reconcileErr error

	statusView *payments.StatusView
	statusErr  error

	sweepChecked int
	sweepUpdated int
	sweepErr     error
}

func (s *fakePaymentService) Initiate(ctx context.Context, req *payments.InitiateRequest) (*payments.InitiateResult, error) {
	if s.initiateErr != nil {
		return nil, s.initiateErr
	}
	return s.initiateResult, nil
}

func (s *fakePaymentService) Reconcile(ctx context.Context, out payments.Outcome) (bool, error) {
	s.reconciled = append(s.reconciled, out)
	return s.reconcileErr == nil, s.reconcileErr
}

func (s *fakePaymentService) Status(ctx context.Context, checkoutRequestID string) (*payments.StatusView, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.statusView, nil
}

func (s *fakePaymentService) SweepStale(ctx context.Context) (int, int, error) {
	return s.sweepChecked, s.sweepUpdated, s.sweepErr
}

func newTestApp(svc *fakePaymentService) *fiber.App {
	app := fiber.New()
	pc := NewPaymentController(svc)
	app.Post("/api/v1/payments/stkpush", pc.HandleStkPush)
	app.Post("/api/v1/payments/callback", pc.HandleCallback)
	app.Get("/api/v1/payments/status", pc.HandleStatus)
	app.Post("/api/v1/payments/status", pc.HandleStatus)
	app.Post("/api/v1/payments/poll", pc.HandlePoll)
	return app
}

func jsonRequest(method, target string, payload interface{}) *http.Request {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandleStkPush_Success(t *testing.T) {
	svc := &fakePaymentService{initiateResult: &payments.InitiateResult{
		IntentID:          "intent-1",
		CheckoutRequestID: "ws_CO_1",
		MerchantRequestID: "m-1",
		CustomerMessage:   "Success. Request accepted for processing",
	}}
	app := newTestApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/payments/stkpush", fiber.Map{
		"amount": 1500,
		"phone":  "0712345678",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ws_CO_1", body["checkout_request_id"])
	// Provider-style casing is kept for deployed clients.
	assert.Equal(t, "ws_CO_1", body["CheckoutRequestID"])
	assert.Equal(t, "m-1", body["MerchantRequestID"])
}

func TestHandleStkPush_InvalidJSON(t *testing.T) {
	app := newTestApp(&fakePaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/stkpush", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleStkPush_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", payments.ErrValidation, http.StatusBadRequest},
		{"rejected", payments.ErrProviderRejected, http.StatusBadRequest},
		{"auth", payments.ErrAuth, http.StatusBadGateway},
		{"unavailable", payments.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&fakePaymentService{initiateErr: tt.err})
			resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/payments/stkpush", fiber.Map{
				"amount": 100,
				"phone":  "0712345678",
			}), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func callbackEnvelope(resultCode int) fiber.Map {
	return fiber.Map{
		"Body": fiber.Map{
			"stkCallback": fiber.Map{
				"MerchantRequestID": "m-1",
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode":        resultCode,
				"ResultDesc":        "The service request is processed successfully.",
				"CallbackMetadata": fiber.Map{
					"Item": []fiber.Map{
						{"Name": "Amount", "Value": 1500},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "PhoneNumber", "Value": 254712345678},
					},
				},
			},
		},
	}
}

func TestHandleCallback_Success(t *testing.T) {
	svc := &fakePaymentService{}
	app := newTestApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/payments/callback", callbackEnvelope(0)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(0), body["ResultCode"])
	assert.Equal(t, "Callback processed", body["ResultDesc"])

	require.Len(t, svc.reconciled, 1)
	out := svc.reconciled[0]
	assert.Equal(t, "ws_CO_1", out.CheckoutRequestID)
	assert.Equal(t, 0, out.ResultCode)
	assert.Equal(t, "NLJ7RT61SV", out.Receipt)
	assert.Equal(t, int64(1500), out.Amount)
}

func TestHandleCallback_GarbageStillAcked(t *testing.T) {
	svc := &fakePaymentService{}
	app := newTestApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", bytes.NewReader([]byte("<html>not json</html>")))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(0), body["ResultCode"])
	assert.Empty(t, svc.reconciled)
}

func TestHandleCallback_ReconcileErrorStillAcked(t *testing.T) {
	svc := &fakePaymentService{reconcileErr: errors.New("db gone")}
	app := newTestApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/payments/callback", callbackEnvelope(1032)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleCallback_MissingCheckoutIDAcked(t *testing.T) {
	svc := &fakePaymentService{}
	app := newTestApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/payments/callback", fiber.Map{
		"Body": fiber.Map{"stkCallback": fiber.Map{"ResultCode": 0}},
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, svc.reconciled)
}

func completedView() *payments.StatusView {
	code := 0
	return &payments.StatusView{
		Found:             true,
		Status:            models.PaymentStatusCompleted,
		ResultCode:        &code,
		ResultDesc:        "The service request is processed successfully.",
		CheckoutRequestID: "ws_CO_1",
		Phone:             "254712345678",
		Amount:            1500,
		Receipt:           "NLJ7RT61SV",
	}
}

func TestHandleStatus_QueryParam(t *testing.T) {
	svc := &fakePaymentService{statusView: completedView()}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/payments/status?checkout_request_id=ws_CO_1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, float64(0), body["ResultCode"])
	assert.Equal(t, "NLJ7RT61SV", body["MpesaReceiptNumber"])
}

func TestHandleStatus_JSONBody(t *testing.T) {
	svc := &fakePaymentService{statusView: completedView()}
	app := newTestApp(svc)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/v1/payments/status", fiber.Map{
		"CheckoutRequestID": "ws_CO_1",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleStatus_PendingHasNullResultCode(t *testing.T) {
	svc := &fakePaymentService{statusView: &payments.StatusView{
		Status:            models.PaymentStatusPending,
		ResultDesc:        "Awaiting customer response",
		CheckoutRequestID: "ws_CO_unknown",
	}}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/payments/status?checkout_request_id=ws_CO_unknown", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "pending", body["status"])
	assert.Nil(t, body["ResultCode"])
}

func TestHandleStatus_MissingID(t *testing.T) {
	app := newTestApp(&fakePaymentService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/payments/status", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlePoll(t *testing.T) {
	svc := &fakePaymentService{sweepChecked: 4, sweepUpdated: 2}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/payments/poll", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(4), body["checked"])
	assert.Equal(t, float64(2), body["updated"])
}

func TestHandlePoll_Error(t *testing.T) {
	svc := &fakePaymentService{sweepErr: errors.New("db gone")}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/payments/poll", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
