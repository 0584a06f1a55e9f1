package domain

import "github.com/shopspring/decimal"

// MovementType names the ledger operation that produced a movement.
type MovementType string

const (
	MovementDeposit        MovementType = "deposit"
	MovementWithdrawal     MovementType = "withdrawal"
	MovementTransfer       MovementType = "transfer"
	MovementCreditPurchase MovementType = "credit_purchase"
	MovementCreditPayment  MovementType = "credit_payment"
)

// Movement Model, one journal row written in the same transaction as the balance change
type Movement struct {
	ID            uint            `gorm:"primaryKey" json:"id"`                      // Primary key
	Type          MovementType    `gorm:"size:32;not null;index" json:"type"`        // Operation type
	FromAccountID *uint           `gorm:"index" json:"from_account_id,omitempty"`    // Debited account, nil for deposits
	ToAccountID   *uint           `gorm:"index" json:"to_account_id,omitempty"`      // Credited account, nil for withdrawals and card ops
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"` // Amount actually moved
	ActorUserID   uint            `gorm:"not null" json:"actor_user_id"`             // User who performed the operation
	CreatedAt     int64           `gorm:"autoCreateTime:milli" json:"created_at"`    // Timestamp of creation in milliseconds
}
