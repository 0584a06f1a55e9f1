package domain

import "github.com/shopspring/decimal"

// MaxAmount is the largest value a decimal(18,2) money column holds.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// Account Model
type Account struct {
	ID      uint            `gorm:"primaryKey"`                            // Primary key, doubles as the account number
	UserID  uint            `gorm:"uniqueIndex;not null"`                  // Foreign key to User
	Balance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"` // Must never go below zero
}

// CreditCard Model
type CreditCard struct {
	ID     uint            `gorm:"primaryKey"`                                                // Primary key
	UserID uint            `gorm:"uniqueIndex;not null"`                                      // Foreign key to User
	Limit  decimal.Decimal `gorm:"column:limit_credit;type:decimal(18,2);not null;default:1"` // Credit limit
	Debt   decimal.Decimal `gorm:"column:balance;type:decimal(18,2);not null;default:0"`      // Outstanding balance owed
}

// Available returns the unused part of the credit line, floored at zero.
func (c CreditCard) Available() decimal.Decimal {
	avail := c.Limit.Sub(c.Debt)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}
