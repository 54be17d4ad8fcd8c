package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidPolicy indicates a capping policy with negative or non-numeric floors.
var ErrInvalidPolicy = errors.New("invalid capping policy")

// CappingPolicy holds per-role minimum balance floors. The admin floor is
// implicitly zero.
type CappingPolicy struct {
	DistributorFloor decimal.Decimal `json:"distributor_floor"`
	ResellerFloor    decimal.Decimal `json:"reseller_floor"`
}

// FloorFor returns the minimum balance an account of the given role must
// retain after a settled transaction.
func (p CappingPolicy) FloorFor(role string) decimal.Decimal {
	switch role {
	case RoleDistributor:
		return p.DistributorFloor
	case RoleReseller:
		return p.ResellerFloor
	}

	return decimal.Zero
}

// Validate reports whether the policy floors are legal.
func (p CappingPolicy) Validate() error {
	if p.DistributorFloor.IsNegative() || p.ResellerFloor.IsNegative() {
		return ErrInvalidPolicy
	}

	return nil
}
