// Package orchestrator sequences the end-to-end lifecycle of a ledger
// transaction: refresh authoritative balances, validate locally, submit,
// refresh again. The local evaluation is an optimistic pre-check only;
// the remote ledger is the final arbiter and may still reject.
package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streampanel/creditgate/internal/balancecache"
	"github.com/streampanel/creditgate/internal/domain"
	"github.com/streampanel/creditgate/internal/rulesengine"
)

// States of the submission lifecycle.
const (
	StateIdle               = "IDLE"
	StateRefreshingBalances = "REFRESHING_BALANCES"
	StateReady              = "READY"
	StateSubmitting         = "SUBMITTING"
	StateSettled            = "SETTLED"
	StateFailed             = "FAILED"
)

var validStateTransitions = map[string][]string{
	StateIdle:               {StateRefreshingBalances},
	StateRefreshingBalances: {StateReady, StateFailed, StateIdle},
	StateReady:              {StateSubmitting, StateRefreshingBalances, StateIdle},
	StateSubmitting:         {StateSettled, StateFailed},
	StateSettled:            {StateIdle, StateRefreshingBalances},
	StateFailed:             {StateIdle, StateRefreshingBalances},
}

// CanTransitionTo reports whether the lifecycle permits moving from
// current to target.
func CanTransitionTo(current, target string) bool {
	for _, s := range validStateTransitions[current] {
		if s == target {
			return true
		}
	}

	return false
}

// Ledger provides the remote ledger operations needed by the orchestrator.
//
//go:generate mockgen -source orchestrator.go -destination orchestrator_mock.go -package orchestrator
type Ledger interface {
	Me(ctx context.Context) (domain.Account, error)
	Account(ctx context.Context, id string) (domain.Account, error)
	Submit(ctx context.Context, arg domain.SubmitTransactionParams, idempotencyKey string) (domain.TransactionRecord, error)
}

// PolicyGetter supplies the active capping policy.
type PolicyGetter interface {
	Get(ctx context.Context) (domain.CappingPolicy, error)
}

// Orchestrator drives one acting account's transaction form through the
// lifecycle. It owns the balance cache; the rule engine only ever sees
// explicit snapshots.
type Orchestrator struct {
	ledger Ledger
	policy PolicyGetter
	cache  *balancecache.Cache

	mu       sync.Mutex
	state    string
	actorID  string
	targetID string
	lastTx   domain.Transaction
	lastEval *domain.Evaluation
	idemKey  string
	subs     []chan string
}

// New returns an idle orchestrator.
func New(ledger Ledger, policy PolicyGetter) *Orchestrator {
	return &Orchestrator{
		ledger: ledger,
		policy: policy,
		cache:  balancecache.New(),
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state
}

// Subscribe returns a channel that receives every state transition. The
// channel is buffered; slow subscribers miss transitions rather than
// blocking the lifecycle.
func (o *Orchestrator) Subscribe() <-chan string {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan string, 8)
	o.subs = append(o.subs, ch)

	return ch
}

// setState must be called with o.mu held. Transitions outside the
// lifecycle table are dropped: a Reset racing an in-flight refresh must
// not have its Idle overwritten when the stale refresh completes.
func (o *Orchestrator) setState(state string) {
	if !CanTransitionTo(o.state, state) {
		return
	}

	o.state = state

	for _, ch := range o.subs {
		select {
		case ch <- state:
		default:
		}
	}
}

// Open starts a new transaction intent: it re-fetches the actor's and the
// counterparty's authoritative balances so the form never validates
// against silently stale data. Pass an empty target for self credits.
func (o *Orchestrator) Open(ctx context.Context, targetAccountID string) (domain.Account, domain.Account, error) {
	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return domain.Account{}, domain.Account{}, domain.ErrSubmissionInFlight
	}
	o.setState(StateRefreshingBalances)
	o.mu.Unlock()

	l := zerolog.Ctx(ctx)

	sender, err := o.ledger.Me(ctx)
	if err != nil {
		l.Error().Err(err).Send()
		o.fail()

		return domain.Account{}, domain.Account{}, err
	}

	var target domain.Account
	if targetAccountID != "" {
		target, err = o.ledger.Account(ctx, targetAccountID)
		if err != nil {
			l.Error().Err(err).Send()
			o.fail()

			return domain.Account{}, domain.Account{}, err
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateRefreshingBalances {
		// A racing Reset discarded this cycle while the fetches were in
		// flight; do not arm a form the actor already abandoned.
		return domain.Account{}, domain.Account{}, domain.ErrNotReady
	}

	o.cache.Put(sender)
	if target.ID != "" {
		o.cache.Put(target)
	}

	o.actorID = sender.ID
	o.targetID = target.ID

	// The verdict is dropped but the idempotency key survives: retrying the
	// same intent after a failure must reuse the key so the ledger can
	// deduplicate. Evaluate clears it when the intent changes.
	o.lastEval = nil
	o.setState(StateReady)

	return sender, target, nil
}

// Evaluate runs the rule engine over the cached snapshots and remembers
// the verdict; Submit only proceeds on a remembered Allowed verdict for
// the same intent. The sender is always the acting account.
func (o *Orchestrator) Evaluate(ctx context.Context, tx domain.Transaction) (domain.Evaluation, error) {
	policy, err := o.policy.Get(ctx)
	if err != nil {
		return domain.Evaluation{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateReady {
		return domain.Evaluation{}, domain.ErrNotReady
	}

	sender, ok := o.cache.Snapshot(o.actorID)
	if !ok {
		return domain.Evaluation{}, domain.ErrNotReady
	}

	tx.SenderAccountID = sender.ID

	var target domain.Account
	if tx.Type != domain.TypeSelfCredit {
		target, ok = o.cache.Snapshot(tx.TargetAccountID)
		if !ok {
			return domain.Evaluation{}, domain.ErrMissingAccount
		}
	}

	eval, err := rulesengine.Evaluate(tx, sender, target, policy)
	if err != nil {
		return domain.Evaluation{}, err
	}

	// A changed intent gets a fresh idempotency key on the next submit.
	if tx != o.lastTx {
		o.idemKey = ""
	}

	o.lastTx = tx
	o.lastEval = &eval

	return eval, nil
}

// Submit sends the last evaluated intent to the remote ledger. Regardless
// of outcome both parties' balances are re-fetched so stale local data
// never persists. Retrying a failed intent reuses its idempotency key so
// the ledger can deduplicate.
func (o *Orchestrator) Submit(ctx context.Context) (domain.TransactionRecord, error) {
	o.mu.Lock()

	if o.state == StateSubmitting {
		o.mu.Unlock()
		return domain.TransactionRecord{}, domain.ErrSubmissionInFlight
	}

	if o.state != StateReady {
		o.mu.Unlock()
		return domain.TransactionRecord{}, domain.ErrNotReady
	}

	if o.lastEval == nil || !o.lastEval.Allowed {
		o.mu.Unlock()
		return domain.TransactionRecord{}, domain.ErrEvaluationRequired
	}

	if o.idemKey == "" {
		o.idemKey = uuid.NewString()
	}

	arg := domain.SubmitTransactionParams{
		Type:            o.lastTx.Type,
		Amount:          o.lastTx.Amount,
		TargetAccountID: o.lastTx.TargetAccountID,
	}
	key := o.idemKey

	o.setState(StateSubmitting)
	o.mu.Unlock()

	l := zerolog.Ctx(ctx)

	record, err := o.ledger.Submit(ctx, arg, key)

	o.refreshBalances(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		l.Info().Err(err).Send()
		o.setState(StateFailed)

		return domain.TransactionRecord{}, err
	}

	o.lastEval = nil
	o.idemKey = ""
	o.setState(StateSettled)

	return record, nil
}

// Reset returns the orchestrator to Idle, dropping the cached snapshots
// and any remembered intent. An in-flight submission cannot be reset: the
// request is already sent and only the optimistic local state may be
// discarded once it finishes.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateSubmitting {
		return domain.ErrSubmissionInFlight
	}

	o.cache.Clear()
	o.lastEval = nil
	o.idemKey = ""
	o.actorID = ""
	o.targetID = ""

	if o.state != StateIdle {
		o.setState(StateIdle)
	}

	return nil
}

func (o *Orchestrator) fail() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.setState(StateFailed)
}

// refreshBalances re-fetches both parties after a submission attempt.
// Fetch failures only log: the cache entries are invalidated instead so
// the next Open starts clean.
func (o *Orchestrator) refreshBalances(ctx context.Context) {
	l := zerolog.Ctx(ctx)

	o.mu.Lock()
	actorID, targetID := o.actorID, o.targetID
	o.mu.Unlock()

	sender, err := o.ledger.Me(ctx)

	o.mu.Lock()
	if err != nil {
		l.Warn().Err(err).Send()
		o.cache.Invalidate(actorID)
	} else {
		o.cache.Put(sender)
	}
	o.mu.Unlock()

	if targetID == "" {
		return
	}

	target, err := o.ledger.Account(ctx, targetID)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		l.Warn().Err(err).Send()
		o.cache.Invalidate(targetID)

		return
	}

	o.cache.Put(target)
}
