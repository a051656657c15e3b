package engine_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/savingcircle/internal/auth"
	"github.com/mmynk/savingcircle/internal/clock"
	"github.com/mmynk/savingcircle/internal/engine"
	"github.com/mmynk/savingcircle/internal/groupstore"
	"github.com/mmynk/savingcircle/internal/models"
	"github.com/mmynk/savingcircle/internal/notify"
	"github.com/mmynk/savingcircle/internal/remote"
	"github.com/mmynk/savingcircle/internal/service"
	"github.com/mmynk/savingcircle/internal/session"
	"github.com/mmynk/savingcircle/internal/storage/sqlite"
)

type member struct {
	session *session.Session
	client  *remote.Client
	engine  *engine.Engine
	store   *groupstore.Store
	notes   *notify.Recorder
}

func startLedger(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	server := httptest.NewServer(service.NewRouter(service.Options{
		Store:      store,
		JWTManager: auth.NewJWTManager("integration-secret", time.Hour),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		BcryptCost: bcrypt.MinCost,
	}))
	t.Cleanup(server.Close)
	return server
}

func signUp(t *testing.T, server *httptest.Server, name, email string) *member {
	t.Helper()
	ctx := context.Background()
	quiet := remote.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	user, token, err := remote.New(server.Client(), server.URL, nil, quiet).Register(ctx, name, email, "password123", "")
	require.NoError(t, err)

	sess := session.New(&session.MemoryStore{})
	require.NoError(t, sess.Start(token, user))

	m := &member{
		session: sess,
		client:  remote.New(server.Client(), server.URL, sess, quiet),
		notes:   &notify.Recorder{},
	}
	m.store = groupstore.New(m.client, sess)
	m.engine = engine.New(m.client, m.store, sess,
		engine.WithNotifier(m.notes),
		engine.WithClock(clock.NewFake(time.Now())),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(m.engine.Close)
	require.NoError(t, m.engine.Load(ctx))
	return m
}

func (m *member) group(t *testing.T, id string) models.Group {
	t.Helper()
	g, _, ok := m.store.Lookup(id)
	require.True(t, ok, "group %s not in store", id)
	return g
}

func TestEngineAgainstLedgerService(t *testing.T) {
	server := startLedger(t)
	ctx := context.Background()
	alice := signUp(t, server, "Alice", "alice@example.com")
	bob := signUp(t, server, "Bob", "bob@example.com")

	group, err := alice.engine.CreateGroup(ctx, "Trip Fund", "Lisbon", decimal.NewFromInt(500))
	require.NoError(t, err)
	require.Len(t, alice.store.Mine(), 1)

	_, err = alice.engine.ContributeToGroup(ctx, group.ID, decimal.NewFromInt(100), "")
	require.NoError(t, err)
	got := alice.group(t, group.ID)
	assert.True(t, got.CurrentAmount.Equal(decimal.NewFromInt(100)))
	require.Len(t, got.Transactions, 1)
	assert.False(t, got.Transactions[0].Provisional)
	assert.Equal(t, "Contributed $100.00 successfully!", lastMessage(t, alice))
	assert.Empty(t, alice.engine.Mutations())

	require.NoError(t, bob.engine.Load(ctx))
	require.Len(t, bob.store.Discoverable(), 1)
	require.NoError(t, bob.engine.JoinGroup(ctx, group.ID))
	assert.Len(t, bob.store.Mine(), 1)
	assert.Empty(t, bob.store.Discoverable())

	t.Run("service rejection rolls back", func(t *testing.T) {
		_, err := bob.engine.RequestWithdrawal(ctx, group.ID, decimal.NewFromInt(1000), "too much")
		require.ErrorIs(t, err, engine.ErrRemote)
		assert.Empty(t, bob.group(t, group.ID).WithdrawalRequests)
		assert.Equal(t, "Failed to request withdrawal. Please try again.", lastMessage(t, bob))
	})

	req, err := bob.engine.RequestWithdrawal(ctx, group.ID, decimal.NewFromInt(40), "tickets")
	require.NoError(t, err)
	assert.False(t, req.Provisional)

	require.NoError(t, alice.engine.Load(ctx))
	require.NoError(t, alice.engine.ApproveWithdrawal(ctx, group.ID, req.ID))
	got = alice.group(t, group.ID)
	assert.True(t, got.CurrentAmount.Equal(decimal.NewFromInt(60)), "current amount %s", got.CurrentAmount)
	decided, _, ok := got.WithdrawalRequest(req.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusApproved, decided.Status)

	err = alice.engine.RejectWithdrawal(ctx, group.ID, req.ID)
	require.ErrorIs(t, err, engine.ErrRequestNotPending)
	assert.Equal(t, "Withdrawal request has already been processed", lastMessage(t, alice))

	t.Run("non-admin decision falls back locally", func(t *testing.T) {
		other, err := bob.engine.RequestWithdrawal(ctx, group.ID, decimal.NewFromInt(10), "")
		require.NoError(t, err)
		err = bob.engine.ApproveWithdrawal(ctx, group.ID, other.ID)
		require.ErrorIs(t, err, engine.ErrDecidedLocally)
		assert.Equal(t, "Withdrawal request approved (optimistic update)", lastMessage(t, bob))
		assert.True(t, bob.group(t, group.ID).CurrentAmount.Equal(decimal.NewFromInt(50)))
	})
}

func lastMessage(t *testing.T, m *member) string {
	t.Helper()
	n, ok := m.notes.Last()
	require.True(t, ok)
	return n.Message
}

func TestEngineKeepsAmountPrecision(t *testing.T) {
	server := startLedger(t)
	ctx := context.Background()
	alice := signUp(t, server, "Alice", "alice@example.com")

	group, err := alice.engine.CreateGroup(ctx, "Treasury", "", decimal.RequireFromString("100000000000000000000"))
	require.NoError(t, err)

	large := decimal.RequireFromString("12345678901234567.89")
	tiny := decimal.RequireFromString("0.10000000000000000001")

	_, err = alice.engine.ContributeToGroup(ctx, group.ID, large, "")
	require.NoError(t, err)
	got := alice.group(t, group.ID)
	assert.Equal(t, "12345678901234567.89", got.CurrentAmount.String())

	_, err = alice.engine.ContributeToGroup(ctx, group.ID, tiny, "")
	require.NoError(t, err)
	got = alice.group(t, group.ID)
	assert.True(t, got.CurrentAmount.Equal(large.Add(tiny)), "current amount %s", got.CurrentAmount)
	require.Len(t, got.Transactions, 2)
	var recorded []string
	for _, tx := range got.Transactions {
		recorded = append(recorded, tx.Amount.String())
	}
	assert.ElementsMatch(t, []string{"12345678901234567.89", "0.10000000000000000001"}, recorded)
}
