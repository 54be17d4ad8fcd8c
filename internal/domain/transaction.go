package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownTransactionType indicates a transaction type the rule engine does not know.
	ErrUnknownTransactionType = errors.New("unknown transaction type")
	// ErrEvaluationRequired indicates a submission attempt without a passing evaluation.
	ErrEvaluationRequired = errors.New("transaction has not passed evaluation")
	// ErrSubmissionInFlight indicates that a submission for this intent is already running.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrNotReady indicates that balances have not been refreshed yet.
	ErrNotReady = errors.New("balances not refreshed")
	// ErrUnauthorized indicates that the actor may not perform the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStaleBalance indicates that the remote ledger rejected the submission
	// because balances changed concurrently.
	ErrStaleBalance = errors.New("stale balance")
	// ErrRemoteRejected indicates a business rejection by the remote ledger.
	ErrRemoteRejected = errors.New("rejected by ledger")
	// ErrNetwork indicates a transport failure or timeout talking to the remote ledger.
	ErrNetwork = errors.New("ledger unreachable")
)

// Transaction types supported by the rule engine.
const (
	TypeCredit        = "credit"
	TypeDebit         = "debit"
	TypeReverseCredit = "reverse_credit"
	TypeSelfCredit    = "self_credit"
)

// SupportedTransactionTypes holds all the supported transaction types.
var SupportedTransactionTypes = []string{
	TypeCredit,
	TypeDebit,
	TypeReverseCredit,
	TypeSelfCredit,
}

// IsSupportedTransactionType returns true if the transaction type is supported.
func IsSupportedTransactionType(txType string) bool {
	for _, t := range SupportedTransactionTypes {
		if t == txType {
			return true
		}
	}

	return false
}

// Rejection reasons reported by the rule engine. These are data, not errors:
// they are surfaced inline next to the form fields and never sent to the network.
const (
	ReasonInvalidAmount                  = "InvalidAmount"
	ReasonSenderBelowFloor               = "SenderBelowFloor"
	ReasonTargetInsufficientBalance      = "TargetInsufficientBalance"
	ReasonTargetBelowFloorAfterDeduction = "TargetBelowFloorAfterDeduction"
	ReasonUnauthorized                   = "Unauthorized"
)

// Transaction is a proposed intent, not yet persisted.
type Transaction struct {
	Type            string `json:"type"`
	Amount          string `json:"amount"` // must be positive
	SenderAccountID string `json:"sender_account_id,omitempty"`
	TargetAccountID string `json:"target_account_id,omitempty"`
}

// Evaluation is the rule engine verdict with projected balances.
type Evaluation struct {
	Allowed            bool
	Reason             string
	SenderBalanceAfter decimal.Decimal
	TargetBalanceAfter decimal.Decimal
}

// SubmitTransactionParams is the input data for a ledger submission.
type SubmitTransactionParams struct {
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	TargetAccountID string `json:"target_account_id,omitempty"`
}

// TransactionRecord is a settled ledger entry. Immutable once created and
// owned by the remote ledger service.
type TransactionRecord struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	Amount             string    `json:"amount"`
	SenderAccountID    string    `json:"sender_account_id"`
	TargetAccountID    string    `json:"target_account_id,omitempty"`
	SenderBalanceAfter string    `json:"sender_balance_after"`
	TargetBalanceAfter string    `json:"target_balance_after,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
