// Package domain provides definitions of all entities.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrMissingAccount indicates that a required account snapshot was not provided.
	ErrMissingAccount = errors.New("missing account snapshot")
)

// Roles assignable to an account. The role is fixed at account creation
// and determines the capping floor.
const (
	RoleAdmin       = "admin"
	RoleDistributor = "distributor"
	RoleReseller    = "reseller"
)

// SupportedRoles holds all the supported account roles.
var SupportedRoles = []string{
	RoleAdmin,
	RoleDistributor,
	RoleReseller,
}

// IsSupportedRole returns true if the role is supported.
func IsSupportedRole(role string) bool {
	for _, r := range SupportedRoles {
		if r == role {
			return true
		}
	}

	return false
}

// Account holds a participant snapshot of the credit network.
//
// Balance is owned by the remote ledger; the local copy may be stale and
// must never be treated as durable truth.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}
