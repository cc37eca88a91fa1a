package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/novinshop/paycore/pkg/models"
)

// ErrNotFound is returned when no payment record matches the lookup.
var ErrNotFound = errors.New("payments: record not found")

// Settlement is the proof written to a record when it completes.
type Settlement struct {
	TransactionID string
	RefID         string
	Raw           []byte
	CompletedAt   time.Time
}

// Failure is the structured reason written to a record that fails or is
// cancelled.
type Failure struct {
	Status  models.PaymentStatus // failed or cancelled
	Code    string
	Message string
	At      time.Time
}

// Store is the durable home of payment records. CompleteIfNotCompleted and
// MarkFailure are conditional updates: they keep concurrent callbacks, even
// on different instances, from applying a transition twice.
type Store interface {
	Create(ctx context.Context, rec *models.PaymentRecord) error
	Save(ctx context.Context, rec *models.PaymentRecord) error
	FindByID(ctx context.Context, id string) (*models.PaymentRecord, error)
	FindByAuthority(ctx context.Context, authority string) (*models.PaymentRecord, error)
	FindLatestByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error)
	FindCompletedByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error)

	// CompleteIfNotCompleted transitions the record to completed and writes
	// the settlement, but only when the record is not already completed or
	// refunded. It reports whether this call won the transition.
	CompleteIfNotCompleted(ctx context.Context, id string, settle Settlement) (bool, error)

	// MarkFailure transitions a pending/processing record to the failure
	// status. Records that already reached a terminal state are left alone.
	MarkFailure(ctx context.Context, id string, failure Failure) (bool, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, rec *models.PaymentRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *GormStore) Save(ctx context.Context, rec *models.PaymentRecord) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.PaymentRecord, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *GormStore) FindByAuthority(ctx context.Context, authority string) (*models.PaymentRecord, error) {
	return s.findOne(ctx, "authority = ?", authority)
}

func (s *GormStore) FindLatestByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) FindCompletedByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error) {
	return s.findOne(ctx, "order_id = ? AND status = ?", orderID, models.PaymentStatusCompleted)
}

func (s *GormStore) CompleteIfNotCompleted(ctx context.Context, id string, settle Settlement) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("id = ? AND status NOT IN ?", id, []models.PaymentStatus{
			models.PaymentStatusCompleted, models.PaymentStatusRefunded,
		}).
		Updates(map[string]interface{}{
			"status":           models.PaymentStatusCompleted,
			"transaction_id":   settle.TransactionID,
			"ref_id":           settle.RefID,
			"gateway_response": datatypes.JSON(settle.Raw),
			"completed_at":     settle.CompletedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) MarkFailure(ctx context.Context, id string, failure Failure) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("id = ? AND status IN ?", id, []models.PaymentStatus{
			models.PaymentStatusPending, models.PaymentStatusProcessing,
		}).
		Updates(map[string]interface{}{
			"status":        failure.Status,
			"error_code":    failure.Code,
			"error_message": failure.Message,
			"failed_at":     failure.At,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) findOne(ctx context.Context, query string, args ...interface{}) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := s.db.WithContext(ctx).Where(query, args...).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}
