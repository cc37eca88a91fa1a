package models

import "time"

type OrderPaymentStatus string

const (
	OrderPaymentStatusUnpaid   OrderPaymentStatus = "unpaid"
	OrderPaymentStatusPaid     OrderPaymentStatus = "paid"
	OrderPaymentStatusRefunded OrderPaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodOnline         PaymentMethod = "online"
	PaymentMethodCashOnDelivery PaymentMethod = "cod"
)

// Order carries only the fields the payment flow reads and writes. Catalog,
// pricing and line items live with the order service.
type Order struct {
	ID            string             `gorm:"primaryKey;size:36"`
	UserID        string             `gorm:"size:36;index"`
	PayableAmount int64              `gorm:"not null"` // minor currency unit
	PaymentMethod PaymentMethod      `gorm:"size:20"`
	PaymentStatus OrderPaymentStatus `gorm:"size:20;index"`
	TransactionID string             `gorm:"size:191"`
	PaidGateway   string             `gorm:"size:50"`
	PaidAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) TableName() string {
	return "pc_orders"
}
