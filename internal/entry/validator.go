package entry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
)

// Transport asks the server whether an answer is correct.
type Transport interface {
	ValidateAnswer(ctx context.Context, competitionID uuid.UUID, answer string) (bool, error)
}

// Validator is the client-side entry check. Verdicts are never cached: every
// call is a fresh round trip.
type Validator struct {
	transport Transport
	logg      *logger.Logger
}

// NewValidator wires a validator over the given transport.
func NewValidator(transport Transport, logg *logger.Logger) (*Validator, error) {
	if transport == nil {
		return nil, fmt.Errorf("entry transport required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Validator{transport: transport, logg: logg}, nil
}

// Validate checks answer for the competition. The returned error is non-nil
// only when the input is unusable; every round-trip result, including
// transport failures, is reported through the Outcome.
func (v *Validator) Validate(ctx context.Context, competitionID uuid.UUID, answer string) (Outcome, error) {
	if competitionID == uuid.Nil {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, "competition id required")
	}
	if strings.TrimSpace(answer) == "" {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, "answer is required").
			WithDetails(map[string]any{"answer": "is required"})
	}

	correct, err := v.transport.ValidateAnswer(ctx, competitionID, answer)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			return Outcome{}, err
		}
		logCtx := v.logg.WithCompetitionID(ctx, competitionID.String())
		v.logg.Warn(v.logg.WithField(logCtx, "error", err.Error()), "answer check failed")
		return Outcome{Verdict: CheckFailed, Cause: asDependency(err)}, nil
	}
	return Outcome{Verdict: verdictFor(correct)}, nil
}

// asDependency keeps server-reported codes and classifies anything untyped as
// a dependency failure.
func asDependency(err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "answer check unavailable")
}
