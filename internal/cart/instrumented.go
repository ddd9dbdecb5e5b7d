package cart

import (
	"context"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
)

// MutationRecorder observes cart operations.
type MutationRecorder interface {
	ObserveCartMutation(op, result string, d time.Duration)
}

type instrumented struct {
	next    Service
	metrics MutationRecorder
}

// Instrument wraps svc so every mutation is counted and timed. Reads are not
// recorded.
func Instrument(svc Service, metrics MutationRecorder) Service {
	if metrics == nil {
		return svc
	}
	return &instrumented{next: svc, metrics: metrics}
}

func (s *instrumented) GetCart(ctx context.Context, ownerID uuid.UUID) (Cart, error) {
	return s.next.GetCart(ctx, ownerID)
}

func (s *instrumented) AddItem(ctx context.Context, ownerID uuid.UUID, input AddItemInput) (Cart, error) {
	start := time.Now()
	c, err := s.next.AddItem(ctx, ownerID, input)
	s.observe("add", start, err)
	return c, err
}

func (s *instrumented) UpdateItem(ctx context.Context, ownerID, itemID uuid.UUID, quantity int) (Cart, error) {
	start := time.Now()
	c, err := s.next.UpdateItem(ctx, ownerID, itemID, quantity)
	s.observe("update", start, err)
	return c, err
}

func (s *instrumented) RemoveItem(ctx context.Context, ownerID, itemID uuid.UUID) (Cart, error) {
	start := time.Now()
	c, err := s.next.RemoveItem(ctx, ownerID, itemID)
	s.observe("remove", start, err)
	return c, err
}

func (s *instrumented) Clear(ctx context.Context, ownerID uuid.UUID) (Cart, error) {
	start := time.Now()
	c, err := s.next.Clear(ctx, ownerID)
	s.observe("clear", start, err)
	return c, err
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	s.metrics.ObserveCartMutation(op, resultLabel(err), time.Since(start))
}

// resultLabel separates caller mistakes from server failures.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal && typed.Code() != pkgerrors.CodeDependency {
		return "rejected"
	}
	return "error"
}
