package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusFailed    = "failed"
)

// PaymentIntent is the durable record of one STK push attempt. It is created
// pending by the initiator and finalized exactly once by either the callback
// handler or the stale poller; CheckoutRequestID is the provider-side join key.
type PaymentIntent struct {
	ID                string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	CheckoutRequestID string     `gorm:"type:varchar(100);not null;uniqueIndex" json:"checkout_request_id"`
	MerchantRequestID string     `gorm:"type:varchar(100)" json:"merchant_request_id"`
	StationID         *uint      `gorm:"index" json:"station_id,omitempty"`
	Phone             string     `gorm:"type:varchar(15);not null" json:"phone"`
	Amount            int64      `gorm:"not null" json:"amount"`
	AccountRef        string     `gorm:"type:varchar(100)" json:"account_ref"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_payment_intents_status_created,priority:1" json:"status"`
	MpesaReceipt      string     `gorm:"type:varchar(50)" json:"mpesa_receipt"`
	ResultDesc        string     `gorm:"type:varchar(255)" json:"result_desc"`
	FCMToken          string     `gorm:"type:varchar(255)" json:"-"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index:idx_payment_intents_status_created,priority:2" json:"created_at"`
	CompletedAt       *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when the caller did not set one.
func (p *PaymentIntent) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsTerminal reports whether the intent has left the pending state.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status != PaymentStatusPending
}
