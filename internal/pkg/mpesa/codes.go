package mpesa

import "fmt"

// Result codes Daraja reports for STK push outcomes.
const (
	ResultCodeSuccess           = 0
	ResultCodeInsufficientFunds = 1
	ResultCodeCancelledLegacy   = 17
	ResultCodeInvalidPhone      = 1001
	ResultCodePinTimeout        = 1019
	ResultCodeUserCancelled     = 1032
	ResultCodeDSTimeout         = 1037
	ResultCodeInvalidPin        = 2001
	ResultCodeSystemError       = 9999
)

var resultMessages = map[int]string{
	ResultCodeSuccess:           "Payment completed successfully",
	ResultCodeInsufficientFunds: "Customer does not have enough money",
	ResultCodeCancelledLegacy:   "Customer cancelled the transaction",
	ResultCodeInvalidPhone:      "Phone number is not registered for M-Pesa",
	ResultCodePinTimeout:        "Customer did not enter PIN in time",
	ResultCodeUserCancelled:     "Request cancelled by user",
	ResultCodeDSTimeout:         "Could not reach customer (DS timeout)",
	ResultCodeInvalidPin:        "Wrong PIN entered too many times",
	ResultCodeSystemError:       "Request processing failed",
}

// ResultMessage returns a human-readable description for a Daraja result code.
func ResultMessage(code int) string {
	if msg, ok := resultMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown status: %d", code)
}
