package models

type TransactionType string

const (
	TransactionEarnedReport  TransactionType = "earned_report"
	TransactionEarnedCollect TransactionType = "earned_collect"
	TransactionRedeemed      TransactionType = "redeemed"
)

// Transaction is an append-only audit row, one per point-affecting event.
type Transaction struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Type        TransactionType `json:"type" db:"type"`
	Amount      int             `json:"amount" db:"amount"`
	Description string          `json:"description" db:"description"`
	CreatedAt   int64           `json:"created_at" db:"created_at"`
}
