package repository

import (
	"github.com/stationpay/mpesa-gateway/app/models"
	"gorm.io/gorm"
)

// saleRepository implements the SaleRepository interface
type saleRepository struct {
	db *gorm.DB
}

// NewSaleRepository creates a new sale repository instance
func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Create(sale *models.Sale) error {
	return r.db.Create(sale).Error
}

func (r *saleRepository) UpdateStatusByCheckout(checkoutRequestID, status, receipt string) (int64, error) {
	updates := map[string]interface{}{
		"transaction_status": status,
	}
	if receipt != "" {
		updates["mpesa_receipt"] = receipt
	}
	tx := r.db.Model(&models.Sale{}).
		Where("checkout_request_id = ?", checkoutRequestID).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}
