package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/stationpay/mpesa-gateway/internal/pkg/mpesa"
	"github.com/stationpay/mpesa-gateway/internal/pkg/payments"
)

// PaymentService is the controller-facing slice of the payment service.
type PaymentService interface {
	Initiate(ctx context.Context, req *payments.InitiateRequest) (*payments.InitiateResult, error)
	Reconcile(ctx context.Context, out payments.Outcome) (bool, error)
	Status(ctx context.Context, checkoutRequestID string) (*payments.StatusView, error)
	SweepStale(ctx context.Context) (checked, updated int, err error)
}

// PaymentController exposes the STK push, callback, status and poll routes.
type PaymentController struct {
	svc PaymentService
}

func NewPaymentController(svc PaymentService) *PaymentController {
	return &PaymentController{svc: svc}
}

// HandleStkPush initiates a push payment.
//
// The request runs on a detached context: once the provider call is in
// flight, a disconnecting caller must not be able to abort it and leave the
// intent half-written.
func (pc *PaymentController) HandleStkPush(c *fiber.Ctx) error {
	var req payments.InitiateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid JSON input",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	result, err := pc.svc.Initiate(ctx, &req)
	if err != nil {
		return c.Status(initiateErrorStatus(err)).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	// Both casings are kept for the deployed POS clients, which read the
	// provider-style keys.
	return c.JSON(fiber.Map{
		"success":             true,
		"message":             result.CustomerMessage,
		"transaction_id":      result.IntentID,
		"checkout_request_id": result.CheckoutRequestID,
		"merchant_request_id": result.MerchantRequestID,
		"CheckoutRequestID":   result.CheckoutRequestID,
		"MerchantRequestID":   result.MerchantRequestID,
	})
}

func initiateErrorStatus(err error) int {
	switch {
	case errors.Is(err, payments.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, payments.ErrProviderRejected):
		return fiber.StatusBadRequest
	case errors.Is(err, payments.ErrAuth):
		return fiber.StatusBadGateway
	case errors.Is(err, payments.ErrProviderUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, mpesa.ErrNotConfigured):
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

// HandleCallback receives the asynchronous Daraja result. The provider
// retries the webhook until it sees success, so this handler acknowledges
// unconditionally; internal failures surface only in logs.
func (pc *PaymentController) HandleCallback(c *fiber.Ctx) error {
	ack := func() error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"ResultCode": 0,
			"ResultDesc": "Callback processed",
		})
	}

	var envelope mpesa.CallbackEnvelope
	if err := json.Unmarshal(c.BodyRaw(), &envelope); err != nil {
		log.Warnf("[Callback] invalid payload: %v", err)
		return ack()
	}
	cb := envelope.Body.STKCallback
	if cb.CheckoutRequestID == "" {
		log.Warn("[Callback] missing CheckoutRequestID")
		return ack()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := pc.svc.Reconcile(ctx, payments.OutcomeFromCallback(&cb)); err != nil {
		log.Errorf("[Callback] reconcile for %s failed: %v", cb.CheckoutRequestID, err)
	}
	return ack()
}

// HandleStatus serves the point-in-time intent state to polling clients.
func (pc *PaymentController) HandleStatus(c *fiber.Ctx) error {
	checkoutRequestID := strings.TrimSpace(c.Query("checkout_request_id"))
	if checkoutRequestID == "" {
		var body struct {
			CheckoutRequestID      string `json:"CheckoutRequestID"`
			CheckoutRequestIDSnake string `json:"checkout_request_id"`
		}
		if err := json.Unmarshal(c.BodyRaw(), &body); err == nil {
			checkoutRequestID = body.CheckoutRequestID
			if checkoutRequestID == "" {
				checkoutRequestID = body.CheckoutRequestIDSnake
			}
		}
	}
	if checkoutRequestID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "checkout_request_id is required",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	view, err := pc.svc.Status(ctx, checkoutRequestID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Status lookup failed",
		})
	}

	return c.JSON(fiber.Map{
		"success":             true,
		"message":             view.ResultDesc,
		"status":              view.Status,
		"resultCode":          view.ResultCode,
		"ResultCode":          view.ResultCode,
		"resultDesc":          view.ResultDesc,
		"ResultDesc":          view.ResultDesc,
		"checkoutRequestID":   view.CheckoutRequestID,
		"CheckoutRequestID":   view.CheckoutRequestID,
		"merchantRequestID":   view.MerchantRequestID,
		"MerchantRequestID":   view.MerchantRequestID,
		"phoneNumber":         view.Phone,
		"PhoneNumber":         view.Phone,
		"amount":              view.Amount,
		"Amount":              view.Amount,
		"mpesaReceiptNumber":  view.Receipt,
		"MpesaReceiptNumber":  view.Receipt,
		"accountReference":    view.AccountRef,
		"createdAt":           formatTimePtr(view.CreatedAt),
		"completedAt":         formatTimePtr(view.CompletedAt),
		"TransactionDate":     formatTimePtr(view.CompletedAt),
	})
}

// HandlePoll triggers one stale-intent sweep on demand.
func (pc *PaymentController) HandlePoll(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	checked, updated, err := pc.svc.SweepStale(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
			"checked": checked,
			"updated": updated,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Status check completed successfully",
		"checked": checked,
		"updated": updated,
	})
}
