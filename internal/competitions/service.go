package competitions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/pkg/db/models"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/outbox"
	"github.com/angelmondragon/rafflehouse-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/rafflehouse-backend/pkg/pagination"
	"github.com/angelmondragon/rafflehouse-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes competition reads for customers and CRUD for administrators.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Competition, error)
	GetPublic(ctx context.Context, id uuid.UUID) (PublicCompetition, error)
	ListLive(ctx context.Context, params pagination.Params) (types.Page[PublicCompetition], error)
	List(ctx context.Context, status enums.CompetitionStatus, params pagination.Params) (types.Page[AdminCompetition], error)
	Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (AdminCompetition, error)
	Update(ctx context.Context, actorID, id uuid.UUID, input UpdateInput) (AdminCompetition, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   *Repository
	tx     txRunner
	events outbox.Emitter
	logg   *logger.Logger
	now    func() time.Time
}

// NewService wires the competition service.
func NewService(repo *Repository, tx txRunner, events outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("competition repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		events: events,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Competition, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "competition not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load competition")
	}
	return c, nil
}

// GetPublic hides drafts from customers.
func (s *service) GetPublic(ctx context.Context, id uuid.UUID) (PublicCompetition, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return PublicCompetition{}, err
	}
	if c.Status == enums.CompetitionStatusDraft {
		return PublicCompetition{}, pkgerrors.New(pkgerrors.CodeNotFound, "competition not found")
	}
	return ToPublic(c), nil
}

func (s *service) ListLive(ctx context.Context, params pagination.Params) (types.Page[PublicCompetition], error) {
	rows, next, err := s.page(ctx, enums.CompetitionStatusLive, params)
	if err != nil {
		return types.Page[PublicCompetition]{}, err
	}
	items := make([]PublicCompetition, 0, len(rows))
	for i := range rows {
		items = append(items, ToPublic(&rows[i]))
	}
	return types.Page[PublicCompetition]{Items: items, NextCursor: next}, nil
}

func (s *service) List(ctx context.Context, status enums.CompetitionStatus, params pagination.Params) (types.Page[AdminCompetition], error) {
	if status != "" && !status.IsValid() {
		return types.Page[AdminCompetition]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").
			WithDetails(map[string]any{"status": status})
	}
	rows, next, err := s.page(ctx, status, params)
	if err != nil {
		return types.Page[AdminCompetition]{}, err
	}
	items := make([]AdminCompetition, 0, len(rows))
	for i := range rows {
		items = append(items, ToAdmin(&rows[i]))
	}
	return types.Page[AdminCompetition]{Items: items, NextCursor: next}, nil
}

func (s *service) page(ctx context.Context, status enums.CompetitionStatus, params pagination.Params) ([]models.Competition, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, status, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list competitions")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(c models.Competition) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return rows, next, nil
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (AdminCompetition, error) {
	row := input.ToModel()
	if err := validateCompetition(row); err != nil {
		return AdminCompetition{}, err
	}
	if row.Status == enums.CompetitionStatusClosed {
		return AdminCompetition{}, pkgerrors.New(pkgerrors.CodeValidation, "competition cannot be created closed")
	}
	now := s.now()
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := s.repo.Create(ctx, row); err != nil {
		return AdminCompetition{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create competition")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"competition_id": row.ID.String(),
		"actor_id":       actorID.String(),
		"status":         row.Status,
	})
	s.logg.Info(logCtx, "competition created")
	return ToAdmin(row), nil
}

func (s *service) Update(ctx context.Context, actorID, id uuid.UUID, input UpdateInput) (AdminCompetition, error) {
	var updated *models.Competition
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "competition not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load competition")
		}
		previous := current.Status

		if err := applyUpdate(current, input); err != nil {
			return err
		}
		if err := validateCompetition(current); err != nil {
			return err
		}
		current.UpdatedAt = s.now()
		if err := repo.Save(ctx, current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update competition")
		}

		if previous != enums.CompetitionStatusClosed && current.Status == enums.CompetitionStatusClosed {
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCompetitionClosed,
				AggregateType: enums.AggregateCompetition,
				AggregateID:   current.ID,
				Actor:         &outbox.ActorRef{UserID: actorID, Role: string(enums.UserRoleAdmin)},
				Data: payloads.CompetitionClosedEvent{
					CompetitionID: current.ID,
					Title:         current.Title,
					DrawAt:        current.DrawAt,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit competition closed")
			}
		}
		updated = current
		return nil
	})
	if err != nil {
		return AdminCompetition{}, asTyped(err)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"competition_id": updated.ID.String(),
		"actor_id":       actorID.String(),
		"status":         updated.Status,
	})
	s.logg.Info(logCtx, "competition updated")
	return ToAdmin(updated), nil
}

// Delete removes a draft competition. Competitions that have been live may
// hold entries and can only be closed.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	return asTyped(s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "competition not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load competition")
		}
		if current.Status != enums.CompetitionStatusDraft {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only draft competitions can be deleted").
				WithDetails(map[string]any{"status": current.Status})
		}
		refs, err := repo.CountCartReferences(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count cart references")
		}
		if refs > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "competition is referenced by carts")
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete competition")
		}
		return nil
	}))
}

// applyUpdate patches current in place. Pricing and the question are frozen
// once a competition leaves draft.
func applyUpdate(current *models.Competition, in UpdateInput) error {
	frozen := current.Status != enums.CompetitionStatusDraft
	if frozen && (in.TicketPrice != nil || in.QuestionPrompt != nil || in.AnswerOptions != nil || in.CorrectAnswer != nil || in.MaxTicketsPerUser != nil) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "pricing and question are fixed once a competition is live").
			WithDetails(map[string]any{"status": current.Status})
	}
	if in.Status != nil && *in.Status != current.Status {
		if !canTransition(current.Status, *in.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status transition").
				WithDetails(map[string]any{"from": current.Status, "to": *in.Status})
		}
		current.Status = *in.Status
	}
	if in.Title != nil {
		current.Title = *in.Title
	}
	if in.Description != nil {
		current.Description = *in.Description
	}
	if in.DrawAt != nil {
		current.DrawAt = in.DrawAt
	}
	if in.TicketPrice != nil {
		current.TicketPricePence = *in.TicketPrice
	}
	if in.MaxTicketsPerUser != nil {
		current.MaxTicketsPerUser = *in.MaxTicketsPerUser
	}
	if in.QuestionPrompt != nil {
		current.QuestionPrompt = *in.QuestionPrompt
	}
	if in.AnswerOptions != nil {
		current.AnswerOptions = append([]string(nil), in.AnswerOptions...)
	}
	if in.CorrectAnswer != nil {
		current.CorrectAnswer = *in.CorrectAnswer
	}
	return nil
}

func canTransition(from, to enums.CompetitionStatus) bool {
	switch from {
	case enums.CompetitionStatusDraft:
		return to == enums.CompetitionStatusLive || to == enums.CompetitionStatusClosed
	case enums.CompetitionStatusLive:
		return to == enums.CompetitionStatusClosed
	default:
		return false
	}
}

func validateCompetition(c *models.Competition) error {
	details := map[string]any{}
	if strings.TrimSpace(c.Title) == "" {
		details["title"] = "is required"
	}
	if !c.Status.IsValid() {
		details["status"] = "must be one of draft, live, closed"
	}
	if c.TicketPricePence <= 0 {
		details["ticketPrice"] = "must be greater than zero"
	}
	if c.MaxTicketsPerUser < 0 {
		details["maxTicketsPerUser"] = "must not be negative"
	}
	if strings.TrimSpace(c.QuestionPrompt) == "" {
		details["questionPrompt"] = "is required"
	}

	seen := make(map[string]struct{}, len(c.AnswerOptions))
	for _, opt := range c.AnswerOptions {
		if strings.TrimSpace(opt) == "" {
			details["answerOptions"] = "options must not be blank"
			break
		}
		if _, dup := seen[opt]; dup {
			details["answerOptions"] = "options must be unique"
			break
		}
		seen[opt] = struct{}{}
	}
	if len(c.AnswerOptions) < 2 {
		details["answerOptions"] = "at least two options are required"
	}
	if _, ok := seen[c.CorrectAnswer]; !ok {
		details["correctAnswer"] = "must be one of the answer options"
	}

	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid competition").WithDetails(details)
	}
	return nil
}

func asTyped(err error) error {
	if err == nil {
		return nil
	}
	var typed *pkgerrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "competition transaction failed")
}
