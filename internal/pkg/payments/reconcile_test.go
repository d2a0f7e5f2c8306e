package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationpay/mpesa-gateway/app/models"
	"github.com/stationpay/mpesa-gateway/internal/pkg/mpesa"
)

func TestTerminalStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		desc       string
		wantStatus string
		wantDesc   string
	}{
		{"success", 0, "ignored by mapping", models.PaymentStatusCompleted, "The service request is processed successfully."},
		{"user cancelled", 1032, "whatever daraja says", models.PaymentStatusCancelled, "Transaction cancelled by user"},
		{"legacy cancel code", 17, "", models.PaymentStatusCancelled, "Transaction cancelled by user"},
		{"insufficient funds", 1, "", models.PaymentStatusFailed, "Insufficient funds"},
		{"ds timeout", 1037, "", models.PaymentStatusFailed, "Transaction timeout"},
		{"unknown code keeps provider wording", 2001, "The initiator information is invalid.", models.PaymentStatusFailed, "The initiator information is invalid."},
		{"unknown code without wording uses catalogue", 1001, "", models.PaymentStatusFailed, mpesa.ResultMessage(1001)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, desc := terminalStatus(tt.code, tt.desc)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}

func TestOutcomeFromCallback_Success(t *testing.T) {
	cb := &mpesa.STKCallback{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: "ws_CO_191220191020363925",
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &mpesa.CallbackMetadata{
			Item: []mpesa.MetadataItem{
				{Name: "Amount", Value: float64(1500)},
				{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
				{Name: "TransactionDate", Value: float64(20191219102115)},
				{Name: "PhoneNumber", Value: float64(254712345678)},
			},
		},
	}

	out := OutcomeFromCallback(cb)
	assert.Equal(t, "ws_CO_191220191020363925", out.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", out.MerchantRequestID)
	assert.Equal(t, 0, out.ResultCode)
	assert.Equal(t, int64(1500), out.Amount)
	assert.Equal(t, "NLJ7RT61SV", out.Receipt)
	assert.Equal(t, "254712345678", out.Phone)
	require.NotNil(t, out.TransactionTime)
	want := time.Date(2019, 12, 19, 10, 21, 15, 0, time.Local)
	assert.True(t, out.TransactionTime.Equal(want))
}

func TestOutcomeFromCallback_FailureHasNoMetadata(t *testing.T) {
	cb := &mpesa.STKCallback{
		CheckoutRequestID: "ws_CO_1",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
	}

	out := OutcomeFromCallback(cb)
	assert.Equal(t, 1032, out.ResultCode)
	assert.Empty(t, out.Receipt)
	assert.Zero(t, out.Amount)
	assert.Nil(t, out.TransactionTime)
}

func TestOutcomeFromCallback_DecimalAmountAndStringDate(t *testing.T) {
	cb := &mpesa.STKCallback{
		CheckoutRequestID: "ws_CO_2",
		ResultCode:        0,
		CallbackMetadata: &mpesa.CallbackMetadata{
			Item: []mpesa.MetadataItem{
				{Name: "Amount", Value: "100.00"},
				{Name: "TransactionDate", Value: "20240102030405"},
			},
		},
	}

	out := OutcomeFromCallback(cb)
	assert.Equal(t, int64(100), out.Amount)
	require.NotNil(t, out.TransactionTime)
}

func TestOutcomeFromQuery(t *testing.T) {
	out, ok := OutcomeFromQuery("ws_CO_3", &mpesa.STKQueryResponse{
		MerchantRequestID: "m-1",
		ResultCode:        "1032",
		ResultDesc:        "Request cancelled by user",
	})
	require.True(t, ok)
	assert.Equal(t, "ws_CO_3", out.CheckoutRequestID)
	assert.Equal(t, "m-1", out.MerchantRequestID)
	assert.Equal(t, 1032, out.ResultCode)
}

func TestOutcomeFromQuery_Inconclusive(t *testing.T) {
	_, ok := OutcomeFromQuery("ws_CO_4", nil)
	assert.False(t, ok)

	_, ok = OutcomeFromQuery("ws_CO_4", &mpesa.STKQueryResponse{ResultCode: ""})
	assert.False(t, ok)

	_, ok = OutcomeFromQuery("ws_CO_4", &mpesa.STKQueryResponse{ResultCode: "pending"})
	assert.False(t, ok)
}

func TestParseTransactionDate(t *testing.T) {
	_, ok := parseTransactionDate("2024")
	assert.False(t, ok)

	got, ok := parseTransactionDate("20240630121530")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 30, 12, 15, 30, 0, time.Local), got)
}
