package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stationpay/mpesa-gateway/app/models"
	"github.com/stationpay/mpesa-gateway/app/repository"
)

// PaymentNotifier pushes payment outcomes to the device that initiated the
// payment and records an audit row. Everything here is best-effort: a lost
// notification never affects the stored intent.
type PaymentNotifier struct {
	fcm  *FCMClient
	logs repository.NotificationLogRepository
}

func NewPaymentNotifier(fcm *FCMClient, logs repository.NotificationLogRepository) *PaymentNotifier {
	return &PaymentNotifier{fcm: fcm, logs: logs}
}

// PaymentResult implements the payments.Notifier contract.
func (n *PaymentNotifier) PaymentResult(ctx context.Context, intent *models.PaymentIntent, resultCode int) {
	title, body := notificationText(intent)

	data := map[string]string{
		"type":                "payment_status",
		"checkout_request_id": intent.CheckoutRequestID,
		"status":              intent.Status,
		"result_code":         strconv.Itoa(resultCode),
		"amount":              strconv.FormatInt(intent.Amount, 10),
		"receipt":             intent.MpesaReceipt,
		"phone":               intent.Phone,
	}

	if intent.FCMToken != "" {
		if err := n.fcm.Send(ctx, intent.FCMToken, title, body, data); err != nil {
			log.Warnf("[Notify] push for %s failed: %v", intent.CheckoutRequestID, err)
		}
	}

	if n.logs == nil {
		return
	}
	rawData, _ := json.Marshal(data)
	entry := &models.NotificationLog{
		StationID:     intent.StationID,
		Type:          models.NotificationTypePaymentStatus,
		Title:         title,
		Body:          body,
		DataJSON:      string(rawData),
		ReferenceType: "payment_intent",
		ReferenceID:   intent.CheckoutRequestID,
	}
	if err := n.logs.Create(entry); err != nil {
		log.Warnf("[Notify] audit log for %s failed: %v", intent.CheckoutRequestID, err)
	}
}

func notificationText(intent *models.PaymentIntent) (title, body string) {
	amount := fmt.Sprintf("KES %d", intent.Amount)
	switch intent.Status {
	case models.PaymentStatusCompleted:
		return "Payment successful", fmt.Sprintf("%s received. Receipt: %s", amount, intent.MpesaReceipt)
	case models.PaymentStatusCancelled:
		return "Payment cancelled", fmt.Sprintf("Customer cancelled the %s payment", amount)
	default:
		return "Payment failed", fmt.Sprintf("%s payment failed: %s", amount, intent.ResultDesc)
	}
}
