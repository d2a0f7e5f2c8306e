package payments

import "time"

// InitiateRequest is the inbound payload for starting an STK push.
type InitiateRequest struct {
	Amount      int64  `json:"amount" validate:"required,gte=1"`
	Phone       string `json:"phone" validate:"required"`
	Account     string `json:"account"`
	StationID   *uint  `json:"station_id"`
	Description string `json:"description"`
	FCMToken    string `json:"fcm_token"`

	// Optional POS context; when complete, a pending sale row is created
	// alongside the intent.
	PumpShiftID uint `json:"pump_shift_id"`
	PumpID      uint `json:"pump_id"`
	AttendantID uint `json:"attendant_id"`
}

// InitiateResult acknowledges an accepted push.
type InitiateResult struct {
	IntentID          string
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

// Outcome is the normalized terminal result of a push attempt, produced from
// either a webhook callback or a status query, before it is merged into the
// stored intent.
type Outcome struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            int64
	Phone             string
	Receipt           string
	TransactionTime   *time.Time
}

// StatusView is the caller-facing snapshot of one intent. ResultCode uses the
// provider's own code values (0 completed, 1032 cancelled, 1 failed) and is
// nil while pending, so client apps keep a single decoding path.
type StatusView struct {
	Found             bool       `json:"found"`
	Status            string     `json:"status"`
	ResultCode        *int       `json:"result_code"`
	ResultDesc        string     `json:"result_desc"`
	CheckoutRequestID string     `json:"checkout_request_id"`
	MerchantRequestID string     `json:"merchant_request_id"`
	Phone             string     `json:"phone"`
	Amount            int64      `json:"amount"`
	AccountRef        string     `json:"account_ref"`
	Receipt           string     `json:"receipt"`
	CreatedAt         *time.Time `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at"`
}
