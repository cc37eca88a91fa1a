package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// Terminal reports whether no further gateway activity is expected for the
// record. A completed record is still refundable.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// Reusable reports whether a new payment attempt for the same order may
// take over this record instead of creating a new row.
func (s PaymentStatus) Reusable() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentRecord is one payment attempt against an order. An order may
// accumulate several attempts after failures; at most one of them may ever
// reach the completed state. Records are soft-deleted only, never removed.
type PaymentRecord struct {
	ID          string        `gorm:"primaryKey;size:36"`
	OrderID     string        `gorm:"size:36;index"`
	UserID      string        `gorm:"size:36;index"`
	Amount      int64         `gorm:"not null"` // minor currency unit
	GatewayName string        `gorm:"size:50"`
	Status      PaymentStatus `gorm:"size:20;index"`

	// Authority is the gateway-issued session token, set once at initialize.
	// It is the only key inbound callbacks carry.
	Authority     string `gorm:"size:191;index"`
	TransactionID string `gorm:"size:191"`
	RefID         string `gorm:"size:191"`

	ErrorCode    string `gorm:"size:100"`
	ErrorMessage string `gorm:"size:500"`

	RedirectURL string `gorm:"size:500"`
	CallbackURL string `gorm:"size:500"`

	// GatewayResponse keeps the raw verification payload for audit.
	GatewayResponse datatypes.JSON

	RefundedBy   string `gorm:"size:36"`
	RefundReason string `gorm:"size:500"`
	RefundAmount int64

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time
	RefundedAt  *time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (p *PaymentRecord) TableName() string {
	return "pc_payments"
}
