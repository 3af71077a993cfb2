package models

import "time"

// Store is the affiliated luggage-storage location a settlement pays out to.
// Store lifecycle (signup, profile edits) is owned elsewhere; this service
// only reads it to resolve payout identity and bank details.
type Store struct {
	ID               uint   `gorm:"primarykey" json:"id"`
	Name             string `gorm:"not null" json:"name"`
	OwnerName        string `json:"owner_name"`
	OwnerEmail       string `json:"owner_email"`
	OwnerPhone       string `json:"owner_phone"`
	BusinessCategory string `gorm:"default:'individual'" json:"business_category"`
	BusinessNumber   string `json:"business_number"`
	BankCode         string `json:"bank_code"`
	BankAccountNo    string `json:"bank_account_no"`
	BankHolderName   string `json:"bank_holder_name"`
	Status           string `gorm:"default:'active'" json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
