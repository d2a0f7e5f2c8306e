package repository

import (
	"time"

	"github.com/stationpay/mpesa-gateway/app/models"
	"gorm.io/gorm"
)

// IntentFinalization carries the fields written when an intent leaves the
// pending state.
type IntentFinalization struct {
	Status      string
	ResultDesc  string
	Receipt     string
	CompletedAt time.Time
}

// PaymentIntentRepository defines the database operations on payment intents.
type PaymentIntentRepository interface {
	Create(intent *models.PaymentIntent) error
	// CreateIfNotExists inserts the intent unless a row with the same
	// checkout request ID already exists. Returns whether a row was created.
	CreateIfNotExists(intent *models.PaymentIntent) (bool, error)
	GetByCheckoutRequestID(checkoutRequestID string) (*models.PaymentIntent, error)
	// FinalizePending applies a terminal transition as a single conditional
	// update guarded by status = pending. Returns false when no pending row
	// matched, i.e. the intent is unknown or already terminal.
	FinalizePending(checkoutRequestID string, fin IntentFinalization) (bool, error)
	// FillReceipt sets the receipt on a terminal intent whose receipt is
	// still empty. Late duplicate callbacks may enrich but never overwrite.
	FillReceipt(checkoutRequestID, receipt string) (bool, error)
	ListStalePending(olderThan time.Time, limit int) ([]models.PaymentIntent, error)
}

// SaleRepository defines the database operations on the POS sales ledger.
type SaleRepository interface {
	Create(sale *models.Sale) error
	UpdateStatusByCheckout(checkoutRequestID, status, receipt string) (int64, error)
}

// StationRepository resolves stations used for credential overrides.
type StationRepository interface {
	GetActiveByID(id uint) (*models.Station, error)
}

// NotificationLogRepository persists notification audit rows.
type NotificationLogRepository interface {
	Create(entry *models.NotificationLog) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Intent          PaymentIntentRepository
	Sale            SaleRepository
	Station         StationRepository
	NotificationLog NotificationLogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Intent:          NewPaymentIntentRepository(db),
		Sale:            NewSaleRepository(db),
		Station:         NewStationRepository(db),
		NotificationLog: NewNotificationLogRepository(db),
	}
}
