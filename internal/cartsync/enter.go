package cartsync

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	"github.com/angelmondragon/rafflehouse-backend/internal/entry"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
)

// AnswerChecker confirms a qualifying answer. entry.Validator satisfies it.
type AnswerChecker interface {
	Validate(ctx context.Context, competitionID uuid.UUID, answer string) (entry.Outcome, error)
}

// EntryResult reports how an entry attempt ended and the cart afterwards.
type EntryResult struct {
	Outcome entry.Outcome
	Cart    cart.Cart
}

// Added reports whether tickets were added.
func (r EntryResult) Added() bool { return r.Outcome.IsCorrect() }

// Enter checks the answer and, only when it is correct, adds the tickets. An
// incorrect answer leaves the cart exactly as it was. A failed check returns
// its cause so the caller can tell "couldn't check" apart from "wrong answer".
func (s *Syncer) Enter(ctx context.Context, competitionID uuid.UUID, answer string, quantity int) (EntryResult, error) {
	current := s.store.Cart()
	if s.checker == nil {
		return EntryResult{Cart: current}, pkgerrors.New(pkgerrors.CodeInternal, "answer checker not configured")
	}
	if err := cart.ValidateQuantity(quantity, 0); err != nil {
		return EntryResult{Cart: current}, err
	}

	outcome, err := s.checker.Validate(ctx, competitionID, answer)
	if err != nil {
		return EntryResult{Cart: current}, err
	}
	switch outcome.Verdict {
	case entry.Correct:
	case entry.Incorrect:
		return EntryResult{Outcome: outcome, Cart: current}, nil
	default:
		return EntryResult{Outcome: outcome, Cart: current}, classify(outcome.Cause)
	}

	updated, err := s.AddItem(ctx, competitionID, quantity)
	return EntryResult{Outcome: outcome, Cart: updated}, err
}
