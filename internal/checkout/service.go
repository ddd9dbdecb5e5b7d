package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	pkgcheckout "github.com/angelmondragon/rafflehouse-backend/pkg/checkout"
	"github.com/angelmondragon/rafflehouse-backend/pkg/db"
	"github.com/angelmondragon/rafflehouse-backend/pkg/db/models"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
	"github.com/angelmondragon/rafflehouse-backend/pkg/outbox"
	"github.com/angelmondragon/rafflehouse-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Receipt acknowledges a stored checkout intent.
type Receipt struct {
	IntentID       uuid.UUID   `json:"intentId"`
	IdempotencyKey string      `json:"idempotencyKey"`
	Status         string      `json:"status"`
	Total          money.Pence `json:"total"`
	TotalTickets   int         `json:"totalTickets"`
	SubmittedAt    time.Time   `json:"submittedAt"`
	Replayed       bool        `json:"replayed"`
}

// Service turns an owner's active cart into a checkout intent.
type Service interface {
	Submit(ctx context.Context, ownerID uuid.UUID, details pkgcheckout.CustomerDetails, idempotencyKey string) (Receipt, error)
}

// CompetitionLoader resolves competitions so closed ones can be refused.
type CompetitionLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Competition, error)
}

type ServiceParams struct {
	Intents      IntentRepository
	Carts        cart.CartRepository
	Competitions CompetitionLoader
	Tx           txRunner
	Events       outbox.Emitter
	Gateway      PaymentGateway
	Logger       *logger.Logger
}

type service struct {
	intents      IntentRepository
	carts        cart.CartRepository
	competitions CompetitionLoader
	tx           txRunner
	events       outbox.Emitter
	gateway      PaymentGateway
	logg         *logger.Logger
	now          func() time.Time
}

var errDuplicateIntent = errors.New("checkout intent already recorded")

func NewService(params ServiceParams) (Service, error) {
	if params.Intents == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Competitions == nil {
		return nil, fmt.Errorf("competition loader required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	gateway := params.Gateway
	if gateway == nil {
		gateway = NewPendingGateway(params.Logger)
	}
	return &service{
		intents:      params.Intents,
		carts:        params.Carts,
		competitions: params.Competitions,
		tx:           params.Tx,
		events:       params.Events,
		gateway:      gateway,
		logg:         params.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Submit(ctx context.Context, ownerID uuid.UUID, details pkgcheckout.CustomerDetails, idempotencyKey string) (Receipt, error) {
	if ownerID == uuid.Nil {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner required")
	}
	ctx = s.logg.WithUserID(ctx, ownerID.String())

	if idempotencyKey != "" {
		receipt, found, err := s.replay(ctx, ownerID, idempotencyKey)
		if err != nil || found {
			return receipt, err
		}
	}

	record, err := s.carts.FindActiveByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Receipt{}, ErrEmptyCart()
		}
		return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	payload, err := Assemble(cart.FromRecord(record), details, s.now())
	if err != nil {
		return Receipt{}, err
	}
	payload = payload.WithIdempotencyKey(idempotencyKey)
	ctx = s.logg.WithCartID(ctx, record.ID.String())

	if err := s.ensureLive(ctx, payload); err != nil {
		return Receipt{}, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode checkout payload")
	}
	intent := &models.CheckoutIntent{
		CartID:         record.ID,
		UserID:         ownerID,
		IdempotencyKey: payload.IdempotencyKey(),
		TotalPence:     payload.Total(),
		Payload:        raw,
		Status:         StatusPendingPayment,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.intents.WithTx(tx).Create(ctx, intent); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errDuplicateIntent
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert checkout intent")
		}
		if err := s.events.Emit(ctx, tx, submittedEvent(intent, payload)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit checkout event")
		}
		if err := s.carts.WithTx(tx).UpdateStatus(ctx, record.ID, ownerID, enums.CartStatusConverted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
		}
		return nil
	})
	if errors.Is(err, errDuplicateIntent) {
		receipt, found, replayErr := s.replay(ctx, ownerID, payload.IdempotencyKey())
		if replayErr != nil {
			return Receipt{}, replayErr
		}
		if found {
			return receipt, nil
		}
		return Receipt{}, pkgerrors.New(pkgerrors.CodeConflict, "checkout intent conflict")
	}
	if err != nil {
		return Receipt{}, err
	}

	if err := s.gateway.Begin(ctx, intent.ID.String(), payload); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "checkout_intent_id", intent.ID.String()), "payment gateway handoff failed", err)
	}

	return Receipt{
		IntentID:       intent.ID,
		IdempotencyKey: intent.IdempotencyKey,
		Status:         intent.Status,
		Total:          payload.Total(),
		TotalTickets:   payload.TotalTickets(),
		SubmittedAt:    payload.SubmittedAt(),
	}, nil
}

// replay resolves a previously stored intent. A key reused by another owner
// is refused.
func (s *service) replay(ctx context.Context, ownerID uuid.UUID, key string) (Receipt, bool, error) {
	existing, err := s.intents.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Receipt{}, false, nil
		}
		return Receipt{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout intent")
	}
	if existing.UserID != ownerID {
		return Receipt{}, false, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused").
			WithDetails(map[string]any{"idempotencyKey": key})
	}
	var stored payloadJSON
	if err := json.Unmarshal(existing.Payload, &stored); err != nil {
		return Receipt{}, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode checkout payload")
	}
	s.logg.Info(s.logg.WithField(ctx, "checkout_intent_id", existing.ID.String()), "checkout replayed")
	return Receipt{
		IntentID:       existing.ID,
		IdempotencyKey: existing.IdempotencyKey,
		Status:         existing.Status,
		Total:          existing.TotalPence,
		TotalTickets:   stored.TotalTickets,
		SubmittedAt:    stored.SubmittedAt,
		Replayed:       true,
	}, true, nil
}

func (s *service) ensureLive(ctx context.Context, payload Payload) error {
	for _, line := range payload.Lines() {
		competition, err := s.competitions.GetByID(ctx, line.CompetitionID)
		if err != nil {
			if pkgerrors.As(err) != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load competition")
		}
		if competition.Status != enums.CompetitionStatusLive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "competition no longer accepts entries").
				WithDetails(map[string]any{
					"competitionId": line.CompetitionID,
					"status":        competition.Status,
				})
		}
	}
	return nil
}

func submittedEvent(intent *models.CheckoutIntent, payload Payload) outbox.DomainEvent {
	lines := payload.Lines()
	summary := make([]payloads.CheckoutLineSummary, 0, len(lines))
	for _, line := range lines {
		summary = append(summary, payloads.CheckoutLineSummary{
			CompetitionID: line.CompetitionID,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventCheckoutSubmitted,
		AggregateType: enums.AggregateCheckoutIntent,
		AggregateID:   intent.ID,
		Actor:         &outbox.ActorRef{UserID: intent.UserID, Role: enums.UserRoleCustomer.String()},
		OccurredAt:    payload.SubmittedAt(),
		Data: payloads.CheckoutSubmittedEvent{
			CheckoutIntentID: intent.ID,
			CartID:           intent.CartID,
			UserID:           intent.UserID,
			IdempotencyKey:   intent.IdempotencyKey,
			Total:            payload.Total(),
			TotalTickets:     payload.TotalTickets(),
			Lines:            summary,
			SubmittedAt:      payload.SubmittedAt(),
		},
	}
}
