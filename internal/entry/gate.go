package entry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultPassTTL bounds how long a correct answer stays spendable.
const DefaultPassTTL = 10 * time.Minute

type passStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	EntryPassKey(userID, competitionID string) string
}

// PassGate records correct answers in redis so the cart can confirm the
// question was passed before accepting tickets. A pass is spent by the add it
// authorises.
type PassGate struct {
	store passStore
	ttl   time.Duration
}

// NewPassGate builds a gate over the redis client. A non-positive ttl falls
// back to DefaultPassTTL.
func NewPassGate(store passStore, ttl time.Duration) (*PassGate, error) {
	if store == nil {
		return nil, fmt.Errorf("pass store required")
	}
	if ttl <= 0 {
		ttl = DefaultPassTTL
	}
	return &PassGate{store: store, ttl: ttl}, nil
}

// Grant issues a pass for the owner and competition.
func (g *PassGate) Grant(ctx context.Context, ownerID, competitionID uuid.UUID) error {
	return g.store.Set(ctx, g.key(ownerID, competitionID), time.Now().UTC().Format(time.RFC3339), g.ttl)
}

// HasPass reports whether an unspent pass exists.
func (g *PassGate) HasPass(ctx context.Context, ownerID, competitionID uuid.UUID) (bool, error) {
	return g.store.Exists(ctx, g.key(ownerID, competitionID))
}

// ConsumePass retires the pass.
func (g *PassGate) ConsumePass(ctx context.Context, ownerID, competitionID uuid.UUID) error {
	return g.store.Del(ctx, g.key(ownerID, competitionID))
}

// Revoke clears a pass after a later incorrect answer so the last verdict for
// the competition is the one that counts.
func (g *PassGate) Revoke(ctx context.Context, ownerID, competitionID uuid.UUID) error {
	return g.ConsumePass(ctx, ownerID, competitionID)
}

func (g *PassGate) key(ownerID, competitionID uuid.UUID) string {
	return g.store.EntryPassKey(ownerID.String(), competitionID.String())
}
