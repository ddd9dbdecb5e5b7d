// Package cartsync keeps a session's cart store in step with the
// server-authoritative cart. Every server response replaces the cart
// wholesale; a failed round trip leaves the last settled cart in place and the
// failure is returned to the caller.
package cartsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
)

// DefaultTimeout bounds a single round trip once it has been issued.
const DefaultTimeout = 15 * time.Second

// Transport is the server cart contract.
type Transport interface {
	// FetchCart returns nil when the owner has no cart yet.
	FetchCart(ctx context.Context) (*cart.Cart, error)
	AddItem(ctx context.Context, competitionID uuid.UUID, quantity int) (cart.Cart, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, quantity int) (cart.Cart, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) (cart.Cart, error)
	ClearCart(ctx context.Context) (cart.Cart, error)
}

// Phase is where the most recent operation stands.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePending Phase = "pending"
	PhaseSettled Phase = "settled"
	PhaseFailed  Phase = "failed"
)

// Snapshot is what subscribers render: the last settled cart plus whether a
// round trip is still outstanding.
type Snapshot struct {
	Cart    cart.Cart
	Loading bool
	Phase   Phase
	Err     error
}

// Options tunes a Syncer.
type Options struct {
	// Timeout bounds each round trip. Zero uses DefaultTimeout.
	Timeout time.Duration
	// StrictInvariants panics when the server returns totals that disagree
	// with its items. Otherwise the mismatch is logged and totals are
	// re-derived.
	StrictInvariants bool
	// Checker confirms qualifying answers for Enter.
	Checker AnswerChecker
}

// Syncer owns one session's cart store.
type Syncer struct {
	store     *cart.Store
	transport Transport
	logg      *logger.Logger
	timeout   time.Duration
	strict    bool
	checker   AnswerChecker
	fetches   singleflight.Group

	mu       sync.Mutex
	issued   uint64
	applied  uint64
	inflight int
	phase    Phase
	lastErr  error
	subs     map[int]chan Snapshot
	nextSub  int
}

// New builds a Syncer over store. The store starts as whatever it holds,
// normally the empty cart.
func New(store *cart.Store, transport Transport, logg *logger.Logger, opts Options) (*Syncer, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if transport == nil {
		return nil, fmt.Errorf("cart transport required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Syncer{
		store:     store,
		transport: transport,
		logg:      logg,
		timeout:   timeout,
		strict:    opts.StrictInvariants,
		checker:   opts.Checker,
		phase:     PhaseIdle,
		subs:      map[int]chan Snapshot{},
	}, nil
}

// Cart returns the last settled cart.
func (s *Syncer) Cart() cart.Cart {
	return s.store.Cart()
}

// Snapshot returns the current view state.
func (s *Syncer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe delivers the current snapshot and then every change. Slow readers
// only ever see the latest snapshot. The returned func stops delivery and
// closes the channel; in-flight operations are unaffected.
func (s *Syncer) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// FetchCart loads the server cart. Concurrent fetches share one round trip.
// A missing server cart settles as the empty cart.
func (s *Syncer) FetchCart(ctx context.Context) (cart.Cart, error) {
	res, err, _ := s.fetches.Do("fetch", func() (any, error) {
		return s.run(ctx, "fetch", func(opCtx context.Context) (*cart.Cart, error) {
			c, err := s.transport.FetchCart(opCtx)
			if err != nil {
				return nil, err
			}
			if c == nil {
				empty := cart.Empty()
				return &empty, nil
			}
			return c, nil
		})
	})
	if err != nil {
		return s.store.Cart(), err
	}
	return res.(cart.Cart), nil
}

// AddItem requests quantity tickets for a competition. Callers must have had
// the qualifying answer confirmed first; Enter does both in order.
func (s *Syncer) AddItem(ctx context.Context, competitionID uuid.UUID, quantity int) (cart.Cart, error) {
	if competitionID == uuid.Nil {
		return s.store.Cart(), pkgerrors.New(pkgerrors.CodeValidation, "competition id required")
	}
	if err := cart.ValidateQuantity(quantity, 0); err != nil {
		return s.store.Cart(), err
	}
	return s.run(ctx, "add", func(opCtx context.Context) (*cart.Cart, error) {
		c, err := s.transport.AddItem(opCtx, competitionID, quantity)
		return &c, err
	})
}

// UpdateItem sets an item's quantity. Quantities below one are rejected
// here and never reach the server; use RemoveItem to drop a line.
func (s *Syncer) UpdateItem(ctx context.Context, itemID uuid.UUID, quantity int) (cart.Cart, error) {
	if err := cart.ValidateQuantity(quantity, 0); err != nil {
		return s.store.Cart(), err
	}
	return s.run(ctx, "update", func(opCtx context.Context) (*cart.Cart, error) {
		c, err := s.transport.UpdateItem(opCtx, itemID, quantity)
		return &c, err
	})
}

// Increment raises an item's quantity by one.
func (s *Syncer) Increment(ctx context.Context, itemID uuid.UUID) (cart.Cart, error) {
	item, ok := s.store.Cart().FindItem(itemID)
	if !ok {
		return s.store.Cart(), pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.UpdateItem(ctx, itemID, item.Quantity+1)
}

// Decrement lowers an item's quantity by one. At the floor it does nothing:
// removal is a separate operation.
func (s *Syncer) Decrement(ctx context.Context, itemID uuid.UUID) (cart.Cart, error) {
	current := s.store.Cart()
	item, ok := current.FindItem(itemID)
	if !ok {
		return current, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if item.Quantity <= cart.MinQuantity {
		return current, nil
	}
	return s.UpdateItem(ctx, itemID, item.Quantity-1)
}

// RemoveItem drops a line from the cart.
func (s *Syncer) RemoveItem(ctx context.Context, itemID uuid.UUID) (cart.Cart, error) {
	return s.run(ctx, "remove", func(opCtx context.Context) (*cart.Cart, error) {
		c, err := s.transport.RemoveItem(opCtx, itemID)
		return &c, err
	})
}

// ClearCart empties the cart. Clearing an already empty cart yields the same
// empty cart.
func (s *Syncer) ClearCart(ctx context.Context) (cart.Cart, error) {
	return s.run(ctx, "clear", func(opCtx context.Context) (*cart.Cart, error) {
		c, err := s.transport.ClearCart(opCtx)
		return &c, err
	})
}

// run drives one operation through Pending to Settled or Failed. The round
// trip is detached from ctx cancellation so that a caller going away does not
// abandon a mutation of shared session state; only the timeout applies.
func (s *Syncer) run(ctx context.Context, op string, call func(context.Context) (*cart.Cart, error)) (cart.Cart, error) {
	seq := s.begin()

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	resp, err := call(opCtx)
	if err != nil {
		return s.fail(ctx, op, seq, err)
	}
	return s.settle(ctx, op, seq, resp)
}

func (s *Syncer) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	s.inflight++
	s.phase = PhasePending
	s.notifyLocked()
	return s.issued
}

func (s *Syncer) settle(ctx context.Context, op string, seq uint64, resp *cart.Cart) (cart.Cart, error) {
	if resp == nil {
		empty := cart.Empty()
		resp = &empty
	}
	if err := cart.Verify(*resp); err != nil {
		if s.strict {
			s.abandon(seq, err)
			panic(err)
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"op": op, "error": err.Error()}), "server cart totals disagree with items, re-deriving")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if seq <= s.applied {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"op": op, "seq": seq, "applied": s.applied}), "discarding stale cart response")
		s.notifyLocked()
		return s.store.Cart(), nil
	}
	s.applied = seq
	s.phase = PhaseSettled
	s.lastErr = nil
	settled := s.store.SetCart(resp)
	s.notifyLocked()
	return settled, nil
}

// abandon releases seq's in-flight slot without touching the store.
func (s *Syncer) abandon(seq uint64, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if seq > s.applied {
		s.phase = PhaseFailed
		s.lastErr = cause
	}
	s.notifyLocked()
}

func (s *Syncer) fail(ctx context.Context, op string, seq uint64, cause error) (cart.Cart, error) {
	err := classify(cause)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if seq > s.applied {
		s.phase = PhaseFailed
		s.lastErr = err
	}
	s.notifyLocked()

	logCtx := s.logg.WithFields(ctx, map[string]any{"op": op, "seq": seq, "error": cause.Error()})
	s.logg.Warn(logCtx, "cart sync failed, keeping last settled cart")
	return s.store.Cart(), err
}

func (s *Syncer) snapshotLocked() Snapshot {
	return Snapshot{
		Cart:    s.store.Cart(),
		Loading: s.inflight > 0,
		Phase:   s.phase,
		Err:     s.lastErr,
	}
}

func (s *Syncer) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// classify keeps coded server rejections and treats everything else as a
// transport failure.
func classify(err error) error {
	if err == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "cart service unavailable")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart service unavailable")
}
