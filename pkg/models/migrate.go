package models

import "gorm.io/gorm"

// AutoMigrate creates or updates the payment tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&PaymentRecord{}, &Order{})
}
