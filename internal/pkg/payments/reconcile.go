package payments

import (
	"strconv"
	"time"

	"github.com/stationpay/mpesa-gateway/app/models"
	"github.com/stationpay/mpesa-gateway/internal/pkg/mpesa"
)

// terminalStatus maps a Daraja result code to the intent status and result
// description stored on the terminal transition. Codes with a fixed meaning
// get a fixed description; anything else keeps the provider's wording.
func terminalStatus(code int, providerDesc string) (status, desc string) {
	switch code {
	case mpesa.ResultCodeSuccess:
		return models.PaymentStatusCompleted, "The service request is processed successfully."
	case mpesa.ResultCodeUserCancelled, mpesa.ResultCodeCancelledLegacy:
		return models.PaymentStatusCancelled, "Transaction cancelled by user"
	case mpesa.ResultCodeInsufficientFunds:
		return models.PaymentStatusFailed, "Insufficient funds"
	case mpesa.ResultCodeDSTimeout:
		return models.PaymentStatusFailed, "Transaction timeout"
	default:
		if providerDesc == "" {
			providerDesc = mpesa.ResultMessage(code)
		}
		return models.PaymentStatusFailed, providerDesc
	}
}

// OutcomeFromCallback normalizes a webhook notification, including the
// success metadata items (Amount, MpesaReceiptNumber, PhoneNumber,
// TransactionDate as YYYYMMDDHHMMSS).
func OutcomeFromCallback(cb *mpesa.STKCallback) Outcome {
	out := Outcome{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}

	if cb.CallbackMetadata == nil {
		return out
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			out.Amount = metadataInt(item.Value)
		case "MpesaReceiptNumber":
			if s, ok := item.Value.(string); ok {
				out.Receipt = s
			}
		case "PhoneNumber":
			out.Phone = metadataString(item.Value)
		case "TransactionDate":
			if t, ok := parseTransactionDate(metadataString(item.Value)); ok {
				out.TransactionTime = &t
			}
		}
	}
	return out
}

// OutcomeFromQuery normalizes a status-query response. The second return is
// false when the response is inconclusive (still processing, or no parsable
// result code) and the intent must stay pending.
func OutcomeFromQuery(checkoutRequestID string, resp *mpesa.STKQueryResponse) (Outcome, bool) {
	if resp == nil || resp.ResultCode == "" {
		return Outcome{}, false
	}
	code, err := strconv.Atoi(resp.ResultCode)
	if err != nil {
		return Outcome{}, false
	}
	return Outcome{
		CheckoutRequestID: checkoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		ResultCode:        code,
		ResultDesc:        resp.ResultDesc,
	}, true
}

// metadataInt reads a numeric metadata value; Daraja sends JSON numbers,
// occasionally with a fractional part.
func metadataInt(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return int64(parsed)
	default:
		return 0
	}
}

// metadataString renders a value that may arrive as number or string, such
// as PhoneNumber.
func metadataString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatInt(int64(s), 10)
	default:
		return ""
	}
}

func parseTransactionDate(s string) (time.Time, bool) {
	if len(s) != 14 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102150405", s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
