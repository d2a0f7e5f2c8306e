package models

import "time"

const NotificationTypePaymentStatus = "payment_status"

// NotificationLog is an audit row for push notifications sent on payment
// outcomes. Writing it is non-critical.
type NotificationLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StationID     *uint     `gorm:"index" json:"station_id,omitempty"`
	Type          string    `gorm:"type:varchar(50);not null" json:"type"`
	Title         string    `gorm:"type:varchar(150)" json:"title"`
	Body          string    `gorm:"type:varchar(255)" json:"body"`
	DataJSON      string    `gorm:"type:text" json:"data_json"`
	ReferenceType string    `gorm:"type:varchar(50)" json:"reference_type"`
	ReferenceID   string    `gorm:"type:varchar(100);index" json:"reference_id"`
	SentAt        time.Time `gorm:"autoCreateTime" json:"sent_at"`
}
