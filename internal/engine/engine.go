// Package engine keeps the local copy of the caller's groups consistent with
// the service of record while applying ledger actions optimistically.
//
// Every action follows validate, speculate, call, then reconcile or roll back.
// Speculative changes are entries in a mutation log: a change is tentative
// while its call is in flight, then committed or discarded. The "mine"
// collection shown by the store is always the last authoritative snapshot with
// the live changes replayed on top, so a refetch triggered by one action never
// erases the tentative change of another.
//
// Actions on the same group run one at a time through a per-group queue.
// Remote calls are never cancelled once issued; each action is a single
// attempt with no retries.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/savingcircle/internal/clock"
	"github.com/mmynk/savingcircle/internal/groupstore"
	"github.com/mmynk/savingcircle/internal/metrics"
	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/notify"
)

// DefaultReconcileDelay is how long a locally applied withdrawal decision stays
// before the caller's groups are refetched.
const DefaultReconcileDelay = time.Second

// LedgerClient is the service of record as the engine uses it.
type LedgerClient interface {
	ListMine(ctx context.Context) ([]models.Group, error)
	ListDiscoverable(ctx context.Context) ([]models.Group, error)
	CreateGroup(ctx context.Context, name, description string, target decimal.Decimal) (models.Group, error)
	JoinGroup(ctx context.Context, groupID string) error
	Contribute(ctx context.Context, groupID string, amount decimal.Decimal, description string) (models.Transaction, error)
	RequestWithdrawal(ctx context.Context, groupID string, amount decimal.Decimal, reason string) (models.WithdrawalRequest, error)
	DecideWithdrawal(ctx context.Context, requestID string, status models.WithdrawalStatus) (models.WithdrawalRequest, error)
}

// Identity is the signed-in caller.
type Identity interface {
	Authenticated() bool
	CurrentUser() (models.User, bool)
}

// Engine applies ledger actions to a groupstore.Store.
type Engine struct {
	client   LedgerClient
	store    *groupstore.Store
	identity Identity

	logger         *slog.Logger
	notifier       notify.Notifier
	clock          clock.Clock
	metrics        *metrics.Engine
	reconcileDelay time.Duration
	newID          func() string
	observers      []func(Mutation)

	queues *queues

	// mu guards everything below and every write to the store's "mine"
	// collection, so the store always equals base plus the live mutations.
	mu       sync.Mutex
	log      mutationLog
	base     []models.Group
	tick     uint64
	mineTick uint64
	discTick uint64
	timers   map[uint64]clock.Timer
	closed   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithNotifier sets where user-visible outcomes are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithClock sets the clock used for timestamps and delayed reconciliation.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMetrics sets the collectors the engine reports to.
func WithMetrics(m *metrics.Engine) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithReconcileDelay sets the delay before the refetch that follows a locally
// applied withdrawal decision. Non-positive values keep the default.
func WithReconcileDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.reconcileDelay = d
		}
	}
}

// WithIDGenerator sets the source of the unique part of provisional IDs.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithMutationObserver registers fn to be called on every mutation state
// change. fn runs while the engine holds its lock and must not call back into
// the Engine.
func WithMutationObserver(fn func(Mutation)) Option {
	return func(e *Engine) { e.observers = append(e.observers, fn) }
}

// New creates an engine over store. The store must not be written to by anyone
// else while the engine is in use.
func New(client LedgerClient, store *groupstore.Store, identity Identity, opts ...Option) *Engine {
	e := &Engine{
		client:         client,
		store:          store,
		identity:       identity,
		logger:         slog.Default(),
		notifier:       notify.Discard,
		clock:          clock.Real(),
		reconcileDelay: DefaultReconcileDelay,
		newID:          uuid.NewString,
		queues:         newQueues(),
		timers:         make(map[uint64]clock.Timer),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewEngine(nil)
	}
	return e
}

// Store returns the store the engine writes to.
func (e *Engine) Store() *groupstore.Store {
	return e.store
}

// Mutations returns the speculative changes not yet reflected in an
// authoritative snapshot, oldest first.
func (e *Engine) Mutations() []Mutation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.snapshot()
}

// Load replaces both collections with the service's data. Without a signed-in
// caller both collections are cleared.
func (e *Engine) Load(ctx context.Context) error {
	if !e.identity.Authenticated() {
		e.Reset()
		return nil
	}
	if err := e.refreshMine(ctx); err != nil {
		return err
	}
	return e.refreshDiscoverable(ctx)
}

// Reset drops all local state: both collections, pending mutations, and
// scheduled refetches. Used on sign-out.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTimersLocked()
	for _, m := range e.log.reset() {
		e.observeLocked(m)
	}
	e.base = nil
	e.tick++
	e.mineTick = e.tick
	e.discTick = e.tick
	e.store.Clear()
	e.metrics.PendingMutation.Set(0)
}

// Close stops scheduled refetches and waits for queued actions to finish.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.stopTimersLocked()
	e.mu.Unlock()

	e.queues.close()
}

func (e *Engine) stopTimersLocked() {
	for seq, t := range e.timers {
		t.Stop()
		delete(e.timers, seq)
	}
}

// caller returns the signed-in user, labelled "You" when the name is unknown.
func (e *Engine) caller() (models.User, bool) {
	if e.identity == nil || !e.identity.Authenticated() {
		return models.User{}, false
	}
	u, _ := e.identity.CurrentUser()
	u.Name = u.DisplayName("You")
	return u, true
}

func (e *Engine) observeLocked(m Mutation) {
	for _, fn := range e.observers {
		fn(m)
	}
}

func (e *Engine) success(msg string) {
	e.notifier.Notify(notify.Notification{Level: notify.Success, Message: msg})
}

func (e *Engine) warn(msg string) {
	e.notifier.Notify(notify.Notification{Level: notify.Warning, Message: msg})
}

func (e *Engine) fail(msg string) {
	e.notifier.Notify(notify.Notification{Level: notify.Error, Message: msg})
}

func (e *Engine) count(operation, outcome string) {
	e.metrics.Operations.WithLabelValues(operation, outcome).Inc()
}
