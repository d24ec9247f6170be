package mysql

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payment-service/internal/domain"
	"payment-service/internal/repository"
	"payment-service/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(t *testing.T, repo repository.OrderRepository, owner string) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder(uuid.NewString(), owner, "addr-1", []domain.LineItem{{ProductID: "p1", Quantity: 1}}, 500, domain.MethodPushMoney, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), o))
	return o
}

func strp(s string) *string { return &s }

func TestOrderRepo_SaveAndFind(t *testing.T) {
	repo := NewOrderRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	o := newOrder(t, repo, "u1")

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusPendingPayment, got.Status)
	assert.Equal(t, int64(500), got.Amount)
	assert.Equal(t, domain.LineItems{{ProductID: "p1", Quantity: 1}}, got.Items)
	assert.Nil(t, got.GatewaySessionID)

	missing, err := repo.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	none, err := repo.FindBySessionID(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestOrderRepo_AttachSession(t *testing.T) {
	repo := NewOrderRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	o := newOrder(t, repo, "u1")

	ok, err := repo.AttachSession(ctx, o.ID, "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AttachSession(ctx, o.ID, "sess-other")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindBySessionID(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, domain.StatusAwaitingCallback, got.Status)
	assert.Equal(t, "sess-1", got.SessionID())
}

func TestOrderRepo_SessionIDIsUnique(t *testing.T) {
	repo := NewOrderRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	a := newOrder(t, repo, "u1")
	b := newOrder(t, repo, "u1")

	ok, err := repo.AttachSession(ctx, a.ID, "sess-dup")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.AttachSession(ctx, b.ID, "sess-dup")
	assert.ErrorIs(t, err, domain.ErrDuplicateSession)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got.GatewaySessionID)
	assert.Equal(t, domain.StatusPendingPayment, got.Status)
}

func TestOrderRepo_ApplyIsCompareAndSet(t *testing.T) {
	repo := NewOrderRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	o := newOrder(t, repo, "u1")
	_, err := repo.AttachSession(ctx, o.ID, "sess-1")
	require.NoError(t, err)

	ok, err := repo.Apply(ctx, o.ID, repository.Transition{
		From:                 domain.SourcesOf(domain.StatusPaid),
		To:                   domain.StatusPaid,
		ReceiptID:            strp("R1"),
		TransactionTimestamp: strp("20240101120000"),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Apply(ctx, o.ID, repository.Transition{
		From:      domain.SourcesOf(domain.StatusManuallyVerified),
		To:        domain.StatusManuallyVerified,
		ReceiptID: strp("MANUAL_1"),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
	assert.True(t, got.IsPaid)
	assert.Equal(t, "R1", *got.ReceiptID)
	assert.Equal(t, "20240101120000", *got.TransactionTimestamp)
}

func TestOrderRepo_ApplyRejectsEmptySources(t *testing.T) {
	repo := NewOrderRepository(testutil.NewTestDB(t))
	o := newOrder(t, repo, "u1")

	_, err := repo.Apply(context.Background(), o.ID, repository.Transition{To: domain.StatusPaid})
	assert.Error(t, err)
}

func TestOrderRepo_ConcurrentWritersOneWins(t *testing.T) {
	repo := NewOrderRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	o := newOrder(t, repo, "u1")
	_, err := repo.AttachSession(ctx, o.ID, "sess-race")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := domain.StatusPaid
			if i%2 == 0 {
				to = domain.StatusManuallyVerified
			}
			ok, err := repo.Apply(ctx, o.ID, repository.Transition{From: domain.SourcesOf(to), To: to, ReceiptID: strp("R")})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.IsTerminal())
	assert.True(t, got.IsPaid)
}

func TestOrderRepo_FindByOwner(t *testing.T) {
	repo := NewOrderRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	newOrder(t, repo, "u1")
	newOrder(t, repo, "u1")
	newOrder(t, repo, "u2")

	out, err := repo.FindByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = repo.FindByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOrderRepo_FindAll(t *testing.T) {
	repo := NewOrderRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	a := newOrder(t, repo, "u1")
	newOrder(t, repo, "u2")

	_, err := repo.Apply(ctx, a.ID, repository.Transition{
		From:       domain.SourcesOf(domain.StatusManuallyVerified),
		To:         domain.StatusManuallyVerified,
		ReceiptID:  strp("MANUAL_1"),
		VerifiedBy: strp("u1"),
	})
	require.NoError(t, err)

	all, err := repo.FindAll(ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	verified, err := repo.FindAll(ctx, repository.OrderFilter{Status: domain.StatusManuallyVerified})
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, a.ID, verified[0].ID)
	assert.Equal(t, "u1", *verified[0].VerifiedBy)
}

func TestOrderRepo_ClaimAttempt(t *testing.T) {
	repo := NewOrderRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	o := newOrder(t, repo, "u1")
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	lease := 2 * time.Minute

	ok, err := repo.ClaimAttempt(ctx, o.ID, now, now.Add(-lease))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimAttempt(ctx, o.ID, now.Add(time.Minute), now.Add(time.Minute-lease))
	require.NoError(t, err)
	assert.False(t, ok, "a live claim blocks a second attempt")

	later := now.Add(5 * time.Minute)
	ok, err = repo.ClaimAttempt(ctx, o.ID, later, later.Add(-lease))
	require.NoError(t, err)
	assert.True(t, ok, "a stale claim can be taken over")

	require.NoError(t, repo.ReleaseAttempt(ctx, o.ID))
	ok, err = repo.ClaimAttempt(ctx, o.ID, later, later.Add(-lease))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.PushAttempts)

	_, err = repo.AttachSession(ctx, o.ID, "sess-1")
	require.NoError(t, err)
	ok, err = repo.ClaimAttempt(ctx, o.ID, later.Add(time.Hour), later.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "only PendingPayment orders can be claimed")
}

func TestOrderRepo_ConcurrentClaimsOneWins(t *testing.T) {
	repo := NewOrderRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	o := newOrder(t, repo, "u1")
	now := time.Now()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ClaimAttempt(ctx, o.ID, now, now.Add(-time.Minute))
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
