// Package policyservice manages business logic layer of the capping policy.
package policyservice

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/streampanel/creditgate/internal/domain"
)

// Repo provides the remote ledger operations needed by the policy service.
//
//go:generate mockgen -source service.go -destination service_mock.go -package policyservice
type Repo interface {
	Policy(ctx context.Context) (domain.CappingPolicy, error)
	UpdatePolicy(ctx context.Context, policy domain.CappingPolicy) (domain.CappingPolicy, error)
}

// Service holds an atomically swapped copy of the capping policy, read
// through from the remote ledger. Floors are evaluated at validation time
// with the current copy; an update never affects an evaluation in flight.
type Service struct {
	repo Repo

	mu      sync.RWMutex
	current domain.CappingPolicy
	loaded  bool
}

// New returns a policy service backed by the given repo.
func New(r Repo) *Service {
	return &Service{repo: r}
}

// Get returns the active policy, fetching it from the ledger on first use.
func (s *Service) Get(ctx context.Context) (domain.CappingPolicy, error) {
	s.mu.RLock()
	if s.loaded {
		policy := s.current
		s.mu.RUnlock()

		return policy, nil
	}
	s.mu.RUnlock()

	return s.Refresh(ctx)
}

// Refresh re-fetches the policy from the ledger and swaps the local copy.
func (s *Service) Refresh(ctx context.Context) (domain.CappingPolicy, error) {
	l := zerolog.Ctx(ctx)

	policy, err := s.repo.Policy(ctx)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.CappingPolicy{}, err
	}

	s.swap(policy)

	return policy, nil
}

// SetFloors validates and replaces the policy for all subsequent
// validations. The update is atomic: either both floors change or neither.
func (s *Service) SetFloors(ctx context.Context, distributorFloor, resellerFloor decimal.Decimal) (domain.CappingPolicy, error) {
	l := zerolog.Ctx(ctx)

	policy := domain.CappingPolicy{
		DistributorFloor: distributorFloor,
		ResellerFloor:    resellerFloor,
	}

	if err := policy.Validate(); err != nil {
		l.Info().Err(err).Send()
		return domain.CappingPolicy{}, err
	}

	updated, err := s.repo.UpdatePolicy(ctx, policy)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.CappingPolicy{}, err
	}

	s.swap(updated)

	return updated, nil
}

func (s *Service) swap(policy domain.CappingPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = policy
	s.loaded = true
}
