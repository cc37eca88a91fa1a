// Package orders is the boundary to the order aggregate. The payment core
// reads orders through Reader and applies settlement effects through
// Reconciler; it never touches order rows directly.
package orders

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/novinshop/paycore/pkg/models"
)

var ErrNotFound = errors.New("orders: order not found")

type Reader interface {
	Find(ctx context.Context, orderID string) (*models.Order, error)
}

// Reconciler applies the business effect of a settled or refunded payment.
// MarkPaid must be idempotent on the transaction id: a repeated call with
// the same proof is a no-op.
type Reconciler interface {
	MarkPaid(ctx context.Context, orderID, transactionID, gatewayName string, raw []byte) error
	MarkRefunded(ctx context.Context, orderID string) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Find(ctx context.Context, orderID string) (*models.Order, error) {
	var ord models.Order
	err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&ord).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ord, nil
}

func (s *GormStore) MarkPaid(ctx context.Context, orderID, transactionID, gatewayName string, raw []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ord models.Order
		if err := tx.Where("id = ?", orderID).First(&ord).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		// Same settlement delivered twice: nothing left to apply.
		if ord.PaymentStatus == models.OrderPaymentStatusPaid && ord.TransactionID == transactionID {
			return nil
		}
		now := time.Now()
		return tx.Model(&ord).Updates(map[string]interface{}{
			"payment_status": models.OrderPaymentStatusPaid,
			"transaction_id": transactionID,
			"paid_gateway":   gatewayName,
			"paid_at":        now,
		}).Error
	})
}

func (s *GormStore) MarkRefunded(ctx context.Context, orderID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("payment_status", models.OrderPaymentStatusRefunded)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
