package orchestrator

import "sync"

// Registry hands out one orchestrator per acting account, so every UI
// surface of the same actor drives the same lifecycle.
type Registry struct {
	ledger Ledger
	policy PolicyGetter

	mu      sync.Mutex
	byActor map[string]*Orchestrator
}

// NewRegistry returns an empty registry.
func NewRegistry(ledger Ledger, policy PolicyGetter) *Registry {
	return &Registry{
		ledger:  ledger,
		policy:  policy,
		byActor: make(map[string]*Orchestrator),
	}
}

// For returns the orchestrator for the given actor, creating it on first use.
func (r *Registry) For(username string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byActor[username]
	if !ok {
		o = New(r.ledger, r.policy)
		r.byActor[username] = o
	}

	return o
}
