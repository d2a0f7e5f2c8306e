package models

import "time"

// Sale statuses are uppercase by POS convention; they mirror the intent
// status but are owned by the POS subsystem.
const (
	SaleStatusPending   = "PENDING"
	SaleStatusCompleted = "COMPLETED"
	SaleStatusCancelled = "CANCELLED"
	SaleStatusFailed    = "FAILED"
)

// Sale is the downstream POS ledger row linked to a payment intent by
// CheckoutRequestID. Writes to it are best-effort and never gate payment
// reconciliation.
type Sale struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SaleNo            string    `gorm:"type:varchar(50);uniqueIndex" json:"sale_no"`
	PumpShiftID       uint      `gorm:"index" json:"pump_shift_id"`
	PumpID            uint      `json:"pump_id"`
	AttendantID       uint      `json:"attendant_id"`
	StationID         *uint     `gorm:"index" json:"station_id,omitempty"`
	Amount            int64     `gorm:"not null" json:"amount"`
	CustomerPhone     string    `gorm:"type:varchar(15)" json:"customer_phone"`
	TransactionStatus string    `gorm:"type:varchar(20);not null;default:'PENDING'" json:"transaction_status"`
	CheckoutRequestID string    `gorm:"type:varchar(100);index" json:"checkout_request_id"`
	MpesaReceipt      string    `gorm:"type:varchar(50)" json:"mpesa_receipt"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
