package repository

import (
	"time"

	"github.com/stationpay/mpesa-gateway/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentIntentRepository implements the PaymentIntentRepository interface
type paymentIntentRepository struct {
	db *gorm.DB
}

// NewPaymentIntentRepository creates a new payment intent repository instance
func NewPaymentIntentRepository(db *gorm.DB) PaymentIntentRepository {
	return &paymentIntentRepository{db: db}
}

func (r *paymentIntentRepository) Create(intent *models.PaymentIntent) error {
	return r.db.Create(intent).Error
}

func (r *paymentIntentRepository) CreateIfNotExists(intent *models.PaymentIntent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "checkout_request_id"}},
		DoNothing: true,
	}).Create(intent)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *paymentIntentRepository) GetByCheckoutRequestID(checkoutRequestID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.Where("checkout_request_id = ?", checkoutRequestID).First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// FinalizePending is the compare-and-swap that serializes callback and poller
// writes: whichever observes the pending row first wins, the other sees zero
// rows affected.
func (r *paymentIntentRepository) FinalizePending(checkoutRequestID string, fin IntentFinalization) (bool, error) {
	updates := map[string]interface{}{
		"status":       fin.Status,
		"result_desc":  fin.ResultDesc,
		"completed_at": fin.CompletedAt,
	}
	if fin.Receipt != "" {
		updates["mpesa_receipt"] = fin.Receipt
	}
	tx := r.db.Model(&models.PaymentIntent{}).
		Where("checkout_request_id = ? AND status = ?", checkoutRequestID, models.PaymentStatusPending).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *paymentIntentRepository) FillReceipt(checkoutRequestID, receipt string) (bool, error) {
	if receipt == "" {
		return false, nil
	}
	tx := r.db.Model(&models.PaymentIntent{}).
		Where("checkout_request_id = ? AND status <> ? AND (mpesa_receipt IS NULL OR mpesa_receipt = '')",
			checkoutRequestID, models.PaymentStatusPending).
		Update("mpesa_receipt", receipt)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *paymentIntentRepository) ListStalePending(olderThan time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.db.
		Where("status = ? AND created_at < ?", models.PaymentStatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&intents).Error
	return intents, err
}
