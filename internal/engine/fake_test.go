package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/savingcircle/internal/calculator"
	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/normalize"
)

var errUnavailable = errors.New("service unavailable")

// fakeLedger is an in-memory service of record. Single calls can be made to
// fail or to block until released.
type fakeLedger struct {
	mu           sync.Mutex
	user         models.User
	mine         []models.Group
	discoverable []models.Group
	failures     map[string]error
	gates        map[string]chan struct{}
	entered      chan string
	calls        []string
	nextID       int
	now          time.Time
}

func newFakeLedger(user models.User) *fakeLedger {
	return &fakeLedger{
		user:     user,
		failures: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		entered:  make(chan string, 16),
		now:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeLedger) failOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, method)
		return
	}
	f.failures[method] = err
}

// block makes the next call to method wait until the returned function is called.
func (f *fakeLedger) block(method string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[method] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeLedger) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// enter records the call, waits on a gate if one is set, and returns the
// configured failure.
func (f *fakeLedger) enter(method string) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	gate := f.gates[method]
	delete(f.gates, method)
	f.mu.Unlock()

	if gate != nil {
		f.entered <- method
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[method]
}

func (f *fakeLedger) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeLedger) ListMine(context.Context) ([]models.Group, error) {
	if err := f.enter("ListMine"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneGroups(f.mine), nil
}

func (f *fakeLedger) ListDiscoverable(context.Context) ([]models.Group, error) {
	if err := f.enter("ListDiscoverable"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneGroups(f.discoverable), nil
}

func (f *fakeLedger) CreateGroup(_ context.Context, name, description string, target decimal.Decimal) (models.Group, error) {
	if err := f.enter("CreateGroup"); err != nil {
		return models.Group{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g := models.Group{
		ID:           f.id("g"),
		Name:         name,
		Description:  description,
		TargetAmount: target,
		CreatedDate:  f.now,
		CreatedBy:    f.user.ID,
		Members:      []models.Member{{ID: f.user.ID, Name: f.user.Name, IsAdmin: true}},
		MemberCount:  1,
	}
	f.mine = append(f.mine, g)
	return g, nil
}

func (f *fakeLedger) JoinGroup(_ context.Context, groupID string) error {
	if err := f.enter("JoinGroup"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, g := range f.discoverable {
		if g.ID == groupID {
			g.Members = append(g.Members, models.Member{ID: f.user.ID, Name: f.user.Name})
			f.mine = append(f.mine, g)
			f.discoverable = append(f.discoverable[:i:i], f.discoverable[i+1:]...)
			return nil
		}
	}
	return errors.New("group not found")
}

func (f *fakeLedger) Contribute(_ context.Context, groupID string, amount decimal.Decimal, description string) (models.Transaction, error) {
	if err := f.enter("Contribute"); err != nil {
		return models.Transaction{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.group(groupID)
	if g == nil {
		return models.Transaction{}, errors.New("group not found")
	}
	tx := models.Transaction{
		ID: f.id("c"), GroupID: groupID, UserID: f.user.ID, UserName: f.user.Name,
		Amount: amount, Kind: models.Deposit, Timestamp: f.now, Description: description,
	}
	g.Transactions = append(g.Transactions, tx)
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	return tx, nil
}

func (f *fakeLedger) RequestWithdrawal(_ context.Context, groupID string, amount decimal.Decimal, reason string) (models.WithdrawalRequest, error) {
	if err := f.enter("RequestWithdrawal"); err != nil {
		return models.WithdrawalRequest{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.group(groupID)
	if g == nil {
		return models.WithdrawalRequest{}, errors.New("group not found")
	}
	r := models.WithdrawalRequest{
		ID: f.id("w"), GroupID: groupID, UserID: f.user.ID, UserName: f.user.Name,
		Amount: amount, Timestamp: f.now, Status: models.StatusPending, Reason: reason,
	}
	g.WithdrawalRequests = append(g.WithdrawalRequests, r)
	return r, nil
}

func (f *fakeLedger) DecideWithdrawal(_ context.Context, requestID string, status models.WithdrawalStatus) (models.WithdrawalRequest, error) {
	if err := f.enter("DecideWithdrawal"); err != nil {
		return models.WithdrawalRequest{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.mine {
		g := &f.mine[i]
		r, idx, ok := g.WithdrawalRequest(requestID)
		if !ok {
			continue
		}
		decided, err := r.Decide(status, f.user.ID, f.now)
		if err != nil {
			return models.WithdrawalRequest{}, err
		}
		g.WithdrawalRequests[idx] = decided
		if status == models.StatusApproved {
			g.CurrentAmount, _ = calculator.ApplyWithdrawal(g.CurrentAmount, decided.Amount)
			g.Transactions = append(g.Transactions, normalize.ApprovedWithdrawal(decided))
		}
		return decided, nil
	}
	return models.WithdrawalRequest{}, errors.New("withdrawal not found")
}

func (f *fakeLedger) group(id string) *models.Group {
	for i := range f.mine {
		if f.mine[i].ID == id {
			return &f.mine[i]
		}
	}
	return nil
}

func cloneGroups(groups []models.Group) []models.Group {
	out := make([]models.Group, len(groups))
	for i, g := range groups {
		out[i] = g.Clone()
	}
	return out
}

type fakeIdentity struct {
	mu   sync.Mutex
	user models.User
	ok   bool
}

func (i *fakeIdentity) Authenticated() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ok
}

func (i *fakeIdentity) CurrentUser() (models.User, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.user, i.ok
}

func (i *fakeIdentity) signOut() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ok = false
}
