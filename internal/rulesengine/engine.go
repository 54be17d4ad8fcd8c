// Package rulesengine implements the legality check and balance projection
// for proposed ledger transactions.
//
// Evaluate is pure: the same inputs always yield the same verdict, and no
// balance is ever mutated. The orchestrator owns the snapshots and feeds
// them in explicitly.
package rulesengine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/streampanel/creditgate/internal/domain"
)

// Evaluate projects the proposed transaction against the given account
// snapshots and capping policy.
//
// Business-rule violations are reported through Evaluation.Allowed and
// Evaluation.Reason. A non-nil error means the input itself is malformed:
// unknown transaction type, missing snapshot, or an unparsable balance.
func Evaluate(tx domain.Transaction, sender, target domain.Account, policy domain.CappingPolicy) (domain.Evaluation, error) {
	if !domain.IsSupportedTransactionType(tx.Type) {
		return domain.Evaluation{}, domain.ErrUnknownTransactionType
	}

	if sender.ID == "" {
		return domain.Evaluation{}, domain.ErrMissingAccount
	}

	if tx.Type != domain.TypeSelfCredit && target.ID == "" {
		return domain.Evaluation{}, domain.ErrMissingAccount
	}

	// Amount checks come before any balance arithmetic.
	amount, err := decimal.NewFromString(tx.Amount)
	if err != nil || !amount.IsPositive() {
		return domain.Evaluation{Reason: domain.ReasonInvalidAmount}, nil
	}

	senderBalance, err := decimal.NewFromString(sender.Balance)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("sender balance %q: %w", sender.Balance, err)
	}

	var targetBalance decimal.Decimal
	if tx.Type != domain.TypeSelfCredit {
		targetBalance, err = decimal.NewFromString(target.Balance)
		if err != nil {
			return domain.Evaluation{}, fmt.Errorf("target balance %q: %w", target.Balance, err)
		}
	}

	switch tx.Type {
	case domain.TypeCredit:
		eval := domain.Evaluation{
			SenderBalanceAfter: senderBalance.Sub(amount),
			TargetBalanceAfter: targetBalance.Add(amount),
		}

		// Receiving money never violates a floor; only the sender is checked.
		if eval.SenderBalanceAfter.LessThan(policy.FloorFor(sender.Role)) {
			eval.Reason = domain.ReasonSenderBelowFloor
			return eval, nil
		}

		eval.Allowed = true

		return eval, nil

	case domain.TypeDebit, domain.TypeReverseCredit:
		// ReverseCredit shares Debit arithmetic; the label differs only for
		// ledger history semantics.
		eval := domain.Evaluation{
			SenderBalanceAfter: senderBalance.Add(amount),
			TargetBalanceAfter: targetBalance.Sub(amount),
		}

		if targetBalance.LessThan(amount) {
			eval.Reason = domain.ReasonTargetInsufficientBalance
			return eval, nil
		}

		if eval.TargetBalanceAfter.LessThan(policy.FloorFor(target.Role)) {
			eval.Reason = domain.ReasonTargetBelowFloorAfterDeduction
			return eval, nil
		}

		eval.Allowed = true

		return eval, nil

	case domain.TypeSelfCredit:
		eval := domain.Evaluation{
			SenderBalanceAfter: senderBalance.Add(amount),
			TargetBalanceAfter: decimal.Zero,
		}

		if sender.Role != domain.RoleAdmin {
			eval.SenderBalanceAfter = senderBalance
			eval.Reason = domain.ReasonUnauthorized

			return eval, nil
		}

		eval.Allowed = true

		return eval, nil
	}

	return domain.Evaluation{}, domain.ErrUnknownTransactionType
}
