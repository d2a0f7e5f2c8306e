package models

import "time"

// Station holds per-station M-Pesa credential overrides. Empty columns fall
// back to the process-wide defaults; station management itself lives in a
// separate admin system.
type Station struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"type:varchar(150);not null" json:"name"`
	Code                string    `gorm:"type:varchar(30);uniqueIndex" json:"code"`
	IsActive            bool      `gorm:"default:true;index" json:"is_active"`
	MpesaConsumerKey    string    `gorm:"type:varchar(100)" json:"-"`
	MpesaConsumerSecret string    `gorm:"type:varchar(100)" json:"-"`
	MpesaShortCode      string    `gorm:"type:varchar(20)" json:"mpesa_short_code"`
	MpesaPassKey        string    `gorm:"type:varchar(128)" json:"-"`
	MpesaTillNumber     string    `gorm:"type:varchar(20)" json:"mpesa_till_number"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
