package cartsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	"github.com/angelmondragon/rafflehouse-backend/internal/entry"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
)

// fakeServer is an in-memory server cart. Each response is built with
// cart.New so totals are always derived.
type fakeServer struct {
	mu      sync.Mutex
	id      uuid.UUID
	items   []cart.Item
	exists  bool
	prices  map[uuid.UUID]money.Pence
	failAll error
	calls   int
	fetches int
	gate    chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{id: uuid.New(), prices: map[uuid.UUID]money.Pence{}}
}

func (f *fakeServer) price(p string) uuid.UUID {
	id := uuid.New()
	f.prices[id] = money.MustPounds(p)
	return id
}

func (f *fakeServer) snapshot() cart.Cart {
	return cart.New(f.id, f.items, time.Now())
}

func (f *fakeServer) enter() error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	f.calls++
	err := f.failAll
	f.mu.Unlock()
	return err
}

func (f *fakeServer) FetchCart(context.Context) (*cart.Cart, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if !f.exists {
		return nil, nil
	}
	c := f.snapshot()
	return &c, nil
}

func (f *fakeServer) AddItem(_ context.Context, competitionID uuid.UUID, qty int) (cart.Cart, error) {
	if err := f.enter(); err != nil {
		return cart.Cart{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists = true
	for i := range f.items {
		if f.items[i].CompetitionID == competitionID {
			f.items[i].Quantity += qty
			return f.snapshot(), nil
		}
	}
	f.items = append(f.items, cart.Item{ID: uuid.New(), CompetitionID: competitionID, UnitPrice: f.prices[competitionID], Quantity: qty})
	return f.snapshot(), nil
}

func (f *fakeServer) UpdateItem(_ context.Context, itemID uuid.UUID, qty int) (cart.Cart, error) {
	if err := f.enter(); err != nil {
		return cart.Cart{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items[i].Quantity = qty
			return f.snapshot(), nil
		}
	}
	return cart.Cart{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
}

func (f *fakeServer) RemoveItem(_ context.Context, itemID uuid.UUID) (cart.Cart, error) {
	if err := f.enter(); err != nil {
		return cart.Cart{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.items[:0]
	for _, item := range f.items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	f.items = kept
	return f.snapshot(), nil
}

func (f *fakeServer) ClearCart(context.Context) (cart.Cart, error) {
	if err := f.enter(); err != nil {
		return cart.Cart{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	f.exists = false
	return cart.Empty(), nil
}

type stubChecker struct {
	outcome entry.Outcome
	calls   int
}

func (s *stubChecker) Validate(context.Context, uuid.UUID, string) (entry.Outcome, error) {
	s.calls++
	return s.outcome, nil
}

func newSyncer(t *testing.T, server Transport, checker AnswerChecker) *Syncer {
	t.Helper()
	s, err := New(cart.NewStore(), server, logger.Nop(), Options{Timeout: time.Second, StrictInvariants: true, Checker: checker})
	require.NoError(t, err)
	return s
}

func requireTotalsConsistent(t *testing.T, c cart.Cart) {
	t.Helper()
	require.NoError(t, cart.Verify(c))
}

func TestScenarioAAndB(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	comp := server.price("12.50")
	s := newSyncer(t, server, &stubChecker{outcome: entry.Outcome{Verdict: entry.Correct}})

	res, err := s.Enter(ctx, comp, "Paris", 3)
	require.NoError(t, err)
	require.True(t, res.Added())
	assert.Equal(t, 1, res.Cart.Totals.ItemCount)
	assert.Equal(t, "37.50", res.Cart.Totals.Subtotal.String())
	assert.Equal(t, 3, res.Cart.Totals.TotalTickets)

	itemID := res.Cart.Items[0].ID
	c, err := s.UpdateItem(ctx, itemID, 5)
	require.NoError(t, err)
	assert.Equal(t, "62.50", c.Totals.Subtotal.String())
	assert.Equal(t, 5, c.Totals.TotalTickets)
	assert.Equal(t, 1, c.Totals.ItemCount)
	requireTotalsConsistent(t, s.Cart())
}

func TestScenarioCIncorrectAnswerLeavesCartUntouched(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	first := server.price("20.00")
	second := server.price("12.50")
	checker := &stubChecker{outcome: entry.Outcome{Verdict: entry.Correct}}
	s := newSyncer(t, server, checker)

	_, err := s.Enter(ctx, first, "A", 2)
	require.NoError(t, err)
	before := s.Cart()
	callsBefore := server.calls

	checker.outcome = entry.Outcome{Verdict: entry.Incorrect}
	res, err := s.Enter(ctx, second, "B", 1)
	require.NoError(t, err)
	assert.False(t, res.Added())
	assert.Equal(t, before, s.Cart())
	assert.Equal(t, callsBefore, server.calls, "no cart call after an incorrect answer")
	_, found := s.Cart().FindCompetition(second)
	assert.False(t, found)
}

func TestEnterCheckFailedIsDistinctFailure(t *testing.T) {
	server := newFakeServer()
	comp := server.price("5.00")
	checker := &stubChecker{outcome: entry.Outcome{Verdict: entry.CheckFailed, Cause: errors.New("timeout")}}
	s := newSyncer(t, server, checker)

	res, err := s.Enter(context.Background(), comp, "A", 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, entry.CheckFailed, res.Outcome.Verdict)
	assert.Zero(t, server.calls)
}

func TestScenarioDTwoItems(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	a := server.price("12.50")
	b := server.price("20.00")
	s := newSyncer(t, server, nil)

	_, err := s.AddItem(ctx, a, 3)
	require.NoError(t, err)
	c, err := s.AddItem(ctx, b, 2)
	require.NoError(t, err)

	assert.Equal(t, "77.50", c.Totals.Subtotal.String())
	assert.Equal(t, 5, c.Totals.TotalTickets)
	assert.Equal(t, 2, c.Totals.ItemCount)
}

func TestQuantityFloor(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	comp := server.price("1.00")
	s := newSyncer(t, server, nil)

	c, err := s.AddItem(ctx, comp, 1)
	require.NoError(t, err)
	itemID := c.Items[0].ID
	calls := server.calls

	_, err = s.UpdateItem(ctx, itemID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	c, err = s.Decrement(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity, "decrementing at one is a no-op, not a removal")
	assert.Equal(t, calls, server.calls, "neither call reaches the server")

	c, err = s.Increment(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Items[0].Quantity)
	c, err = s.Decrement(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)

	_, err = s.AddItem(ctx, comp, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestIdempotentClear(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	comp := server.price("12.50")
	s := newSyncer(t, server, nil)

	_, err := s.AddItem(ctx, comp, 2)
	require.NoError(t, err)

	first, err := s.ClearCart(ctx)
	require.NoError(t, err)
	second, err := s.ClearCart(ctx)
	require.NoError(t, err)

	for _, c := range []cart.Cart{first, second} {
		assert.Equal(t, 0, c.Totals.ItemCount)
		assert.Equal(t, "0.00", c.Totals.Subtotal.String())
		assert.Equal(t, 0, c.Totals.TotalTickets)
	}
	assert.Equal(t, first, second)
}

func TestFetchMissingCartSettlesEmpty(t *testing.T) {
	s := newSyncer(t, newFakeServer(), nil)
	c, err := s.FetchCart(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, PhaseSettled, s.Snapshot().Phase)
}

func TestFailurePreservesLastSettledCartForEveryOperation(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	comp := server.price("12.50")
	s := newSyncer(t, server, nil)

	settled, err := s.AddItem(ctx, comp, 3)
	require.NoError(t, err)
	itemID := settled.Items[0].ID

	server.failAll = errors.New("connection refused")
	ops := map[string]func() (cart.Cart, error){
		"fetch":  func() (cart.Cart, error) { return s.FetchCart(ctx) },
		"add":    func() (cart.Cart, error) { return s.AddItem(ctx, comp, 1) },
		"update": func() (cart.Cart, error) { return s.UpdateItem(ctx, itemID, 4) },
		"remove": func() (cart.Cart, error) { return s.RemoveItem(ctx, itemID) },
		"clear":  func() (cart.Cart, error) { return s.ClearCart(ctx) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			c, err := op()
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
			assert.Equal(t, settled, c)
			assert.Equal(t, settled, s.Cart())
			snap := s.Snapshot()
			assert.Equal(t, PhaseFailed, snap.Phase)
			assert.False(t, snap.Loading)
		})
	}
}

func TestServerRejectionKeepsItsCode(t *testing.T) {
	s := newSyncer(t, newFakeServer(), nil)
	_, err := s.UpdateItem(context.Background(), uuid.New(), 2)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

// staleTransport lets the test release responses in any order.
type staleTransport struct {
	fakeServer
	release map[int]chan cart.Cart
	mu      sync.Mutex
	n       int
}

func (s *staleTransport) UpdateItem(_ context.Context, itemID uuid.UUID, qty int) (cart.Cart, error) {
	s.mu.Lock()
	s.n++
	ch := s.release[s.n]
	s.mu.Unlock()
	return <-ch, nil
}

func TestOlderResponseNeverOverwritesNewer(t *testing.T) {
	itemID := uuid.New()
	comp := uuid.New()
	older := cart.New(uuid.New(), []cart.Item{{ID: itemID, CompetitionID: comp, UnitPrice: money.MustPounds("1.00"), Quantity: 2}}, time.Now())
	newer := cart.New(older.ID, []cart.Item{{ID: itemID, CompetitionID: comp, UnitPrice: money.MustPounds("1.00"), Quantity: 7}}, time.Now())

	transport := &staleTransport{release: map[int]chan cart.Cart{1: make(chan cart.Cart), 2: make(chan cart.Cart)}}
	s := newSyncer(t, transport, nil)

	firstDone := make(chan cart.Cart)
	go func() {
		c, _ := s.UpdateItem(context.Background(), itemID, 2)
		firstDone <- c
	}()
	require.Eventually(t, func() bool { transport.mu.Lock(); defer transport.mu.Unlock(); return transport.n == 1 }, time.Second, time.Millisecond)

	secondDone := make(chan cart.Cart)
	go func() {
		c, _ := s.UpdateItem(context.Background(), itemID, 7)
		secondDone <- c
	}()
	require.Eventually(t, func() bool { transport.mu.Lock(); defer transport.mu.Unlock(); return transport.n == 2 }, time.Second, time.Millisecond)
	assert.True(t, s.Snapshot().Loading)

	transport.release[2] <- newer
	<-secondDone
	transport.release[1] <- older
	<-firstDone

	assert.Equal(t, 7, s.Cart().Items[0].Quantity, "the later-issued request wins")
	assert.False(t, s.Snapshot().Loading)
}

func TestPendingKeepsLastSettledCartVisible(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	comp := server.price("12.50")
	s := newSyncer(t, server, nil)
	settled, err := s.AddItem(ctx, comp, 1)
	require.NoError(t, err)

	snaps, stop := s.Subscribe()
	defer stop()
	initial := <-snaps
	assert.False(t, initial.Loading)

	server.gate = make(chan struct{})
	done := make(chan struct{})
	go func() {
		_, _ = s.ClearCart(ctx)
		close(done)
	}()

	pending := <-snaps
	assert.True(t, pending.Loading)
	assert.Equal(t, PhasePending, pending.Phase)
	assert.Equal(t, settled, pending.Cart, "no flash to empty while pending")

	close(server.gate)
	<-done
	final := <-snaps
	assert.False(t, final.Loading)
	assert.True(t, final.Cart.IsEmpty())
}

// cancelAwareTransport parks AddItem until released and then answers the way a
// real HTTP client would: with ctx.Err() if the request context was cancelled.
type cancelAwareTransport struct {
	*fakeServer
	started chan struct{}
	proceed chan struct{}
}

func (c *cancelAwareTransport) AddItem(ctx context.Context, competitionID uuid.UUID, qty int) (cart.Cart, error) {
	close(c.started)
	<-c.proceed
	if err := ctx.Err(); err != nil {
		return cart.Cart{}, err
	}
	return c.fakeServer.AddItem(ctx, competitionID, qty)
}

func TestMutationSurvivesCallerCancellation(t *testing.T) {
	server := newFakeServer()
	comp := server.price("3.00")
	transport := &cancelAwareTransport{fakeServer: server, started: make(chan struct{}), proceed: make(chan struct{})}
	s := newSyncer(t, transport, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.AddItem(ctx, comp, 2)
		done <- err
	}()
	<-transport.started
	cancel()
	close(transport.proceed)

	require.NoError(t, <-done)
	assert.Equal(t, 2, s.Cart().Totals.TotalTickets)
	assert.Equal(t, PhaseSettled, s.Snapshot().Phase)
}

func TestConcurrentFetchesShareOneRoundTrip(t *testing.T) {
	server := newFakeServer()
	server.gate = make(chan struct{})
	s := newSyncer(t, server, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.FetchCart(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return s.Snapshot().Loading }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(server.gate)
	wg.Wait()

	assert.Equal(t, 1, server.fetches)
}

func TestStrictModePanicsOnTotalsDrift(t *testing.T) {
	drifted := cart.New(uuid.New(), []cart.Item{{ID: uuid.New(), CompetitionID: uuid.New(), UnitPrice: 100, Quantity: 1}}, time.Now())
	drifted.Totals.Subtotal = 999
	transport := &staleTransport{release: map[int]chan cart.Cart{1: make(chan cart.Cart, 1)}}
	transport.release[1] <- drifted
	s := newSyncer(t, transport, nil)

	assert.Panics(t, func() { _, _ = s.UpdateItem(context.Background(), uuid.New(), 1) })
}

func TestLenientModeRederivesTotals(t *testing.T) {
	drifted := cart.New(uuid.New(), []cart.Item{{ID: uuid.New(), CompetitionID: uuid.New(), UnitPrice: 100, Quantity: 2}}, time.Now())
	drifted.Totals.Subtotal = 999
	transport := &staleTransport{release: map[int]chan cart.Cart{1: make(chan cart.Cart, 1)}}
	transport.release[1] <- drifted
	s, err := New(cart.NewStore(), transport, logger.Nop(), Options{})
	require.NoError(t, err)

	c, err := s.UpdateItem(context.Background(), uuid.New(), 2)
	require.NoError(t, err)
	assert.EqualValues(t, 200, c.Totals.Subtotal)
	requireTotalsConsistent(t, c)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := newSyncer(t, newFakeServer(), nil)
	snaps, stop := s.Subscribe()
	<-snaps
	stop()
	stop()
	_, open := <-snaps
	assert.False(t, open)
}

func TestStrictModePanicReleasesPendingState(t *testing.T) {
	drifted := cart.New(uuid.New(), []cart.Item{{ID: uuid.New(), CompetitionID: uuid.New(), UnitPrice: 100, Quantity: 1}}, time.Now())
	drifted.Totals.Subtotal = 999
	transport := &staleTransport{release: map[int]chan cart.Cart{1: make(chan cart.Cart, 1)}}
	transport.release[1] <- drifted
	s := newSyncer(t, transport, nil)

	require.Panics(t, func() { _, _ = s.UpdateItem(context.Background(), uuid.New(), 1) })

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, PhaseFailed, snap.Phase)
	assert.Error(t, snap.Err)
	assert.True(t, snap.Cart.IsEmpty(), "drifted cart is never stored")
}
