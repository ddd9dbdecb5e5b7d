package entry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/rafflehouse-backend/pkg/db/models"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
)

// CompetitionLoader resolves the competition holding the question.
type CompetitionLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Competition, error)
}

// Passes issues and revokes entry passes.
type Passes interface {
	Grant(ctx context.Context, ownerID, competitionID uuid.UUID) error
	Revoke(ctx context.Context, ownerID, competitionID uuid.UUID) error
}

// Recorder counts verdicts.
type Recorder interface {
	IncEntryValidation(outcome string)
}

// Service checks answers against server-held truth. The correct answer never
// leaves this package.
type Service interface {
	ValidateAnswer(ctx context.Context, ownerID, competitionID uuid.UUID, answer string) (bool, error)
}

type service struct {
	competitions CompetitionLoader
	passes       Passes
	metrics      Recorder
	logg         *logger.Logger
}

// NewService wires the answer-checking service.
func NewService(competitions CompetitionLoader, passes Passes, metrics Recorder, logg *logger.Logger) (Service, error) {
	if competitions == nil {
		return nil, fmt.Errorf("competition loader required")
	}
	if passes == nil {
		return nil, fmt.Errorf("pass store required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{competitions: competitions, passes: passes, metrics: metrics, logg: logg}, nil
}

func (s *service) ValidateAnswer(ctx context.Context, ownerID, competitionID uuid.UUID, answer string) (bool, error) {
	if ownerID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner required")
	}
	if strings.TrimSpace(answer) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "answer is required").
			WithDetails(map[string]any{"answer": "is required"})
	}

	competition, err := s.competitions.GetByID(ctx, competitionID)
	if err != nil {
		s.metrics.IncEntryValidation(string(CheckFailed))
		return false, err
	}
	if competition.Status != enums.CompetitionStatusLive {
		s.metrics.IncEntryValidation(string(CheckFailed))
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "competition is not accepting entries").
			WithDetails(map[string]any{"status": competition.Status})
	}

	correct := IsCorrect(competition, answer)
	logCtx := s.logg.WithCompetitionID(ctx, competitionID.String())
	logCtx = s.logg.WithUserID(logCtx, ownerID.String())

	if correct {
		if err := s.passes.Grant(ctx, ownerID, competitionID); err != nil {
			s.metrics.IncEntryValidation(string(CheckFailed))
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record entry pass")
		}
	} else if err := s.passes.Revoke(ctx, ownerID, competitionID); err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "entry pass revoke failed")
	}

	verdict := verdictFor(correct)
	s.metrics.IncEntryValidation(string(verdict))
	s.logg.Info(s.logg.WithField(logCtx, "verdict", verdict), "answer checked")
	return correct, nil
}

// IsCorrect is an exact, case-sensitive match. A candidate that is not one of
// the offered options is never correct.
func IsCorrect(c *models.Competition, candidate string) bool {
	if c == nil {
		return false
	}
	offered := false
	for _, opt := range c.AnswerOptions {
		if opt == candidate {
			offered = true
			break
		}
	}
	return offered && candidate == c.CorrectAnswer
}
