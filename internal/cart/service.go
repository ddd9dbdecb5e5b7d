package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/rafflehouse-backend/pkg/db"
	"github.com/angelmondragon/rafflehouse-backend/pkg/db/models"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the server-authoritative cart. Every method returns the full cart
// after the change with totals derived from its items.
type Service interface {
	GetCart(ctx context.Context, ownerID uuid.UUID) (Cart, error)
	AddItem(ctx context.Context, ownerID uuid.UUID, input AddItemInput) (Cart, error)
	UpdateItem(ctx context.Context, ownerID, itemID uuid.UUID, quantity int) (Cart, error)
	RemoveItem(ctx context.Context, ownerID, itemID uuid.UUID) (Cart, error)
	Clear(ctx context.Context, ownerID uuid.UUID) (Cart, error)
}

// AddItemInput is a ticket request for one competition.
type AddItemInput struct {
	CompetitionID uuid.UUID
	Quantity      int
}

type service struct {
	repo         CartRepository
	tx           txRunner
	competitions CompetitionLoader
	gate         EntryGate
	maxQuantity  int
	logg         *logger.Logger
}

// NewService builds a cart service. maxQuantity caps any single line item; zero
// leaves only the per-competition cap.
func NewService(repo CartRepository, tx txRunner, competitions CompetitionLoader, gate EntryGate, maxQuantity int, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if competitions == nil {
		return nil, fmt.Errorf("competition loader required")
	}
	if gate == nil {
		return nil, fmt.Errorf("entry gate required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:         repo,
		tx:           tx,
		competitions: competitions,
		gate:         gate,
		maxQuantity:  maxQuantity,
		logg:         logg,
	}, nil
}

func (s *service) GetCart(ctx context.Context, ownerID uuid.UUID) (Cart, error) {
	if ownerID == uuid.Nil {
		return Cart{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner required")
	}
	record, err := s.repo.FindActiveByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Cart{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.toDomain(ctx, record)
}

func (s *service) AddItem(ctx context.Context, ownerID uuid.UUID, input AddItemInput) (Cart, error) {
	if ownerID == uuid.Nil {
		return Cart{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner required")
	}
	if input.CompetitionID == uuid.Nil {
		return Cart{}, pkgerrors.New(pkgerrors.CodeValidation, "competitionId is required").
			WithDetails(map[string]any{"competitionId": "is required"})
	}
	if err := ValidateQuantity(input.Quantity, 0); err != nil {
		return Cart{}, err
	}

	competition, err := s.competitions.GetByID(ctx, input.CompetitionID)
	if err != nil {
		return Cart{}, err
	}
	if competition.Status != enums.CompetitionStatusLive {
		return Cart{}, pkgerrors.New(pkgerrors.CodeStateConflict, "competition is not accepting entries").
			WithDetails(map[string]any{"status": competition.Status})
	}

	passed, err := s.gate.HasPass(ctx, ownerID, input.CompetitionID)
	if err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check entry pass")
	}
	if !passed {
		return Cart{}, pkgerrors.New(pkgerrors.CodeStateConflict, "qualifying question must be answered correctly before adding tickets").
			WithDetails(map[string]any{"competitionId": input.CompetitionID})
	}

	limit := s.limitFor(competition)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := s.findOrCreate(ctx, repo, ownerID)
		if err != nil {
			return err
		}
		for _, existing := range record.Items {
			if existing.CompetitionID != input.CompetitionID {
				continue
			}
			merged := existing.Quantity + input.Quantity
			if err := ValidateQuantity(merged, limit); err != nil {
				return err
			}
			if err := repo.UpdateItemQuantity(ctx, record.ID, existing.ID, merged); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
			return repo.Touch(ctx, record.ID)
		}
		if err := ValidateQuantity(input.Quantity, limit); err != nil {
			return err
		}
		item := &models.CartItem{
			CartID:         record.ID,
			CompetitionID:  competition.ID,
			Title:          competition.Title,
			UnitPricePence: competition.TicketPricePence,
			Quantity:       input.Quantity,
		}
		if err := repo.AddItem(ctx, item); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart item added concurrently, retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart item")
		}
		return repo.Touch(ctx, record.ID)
	})
	if err != nil {
		return Cart{}, asTyped(err, "add cart item")
	}

	if err := s.gate.ConsumePass(ctx, ownerID, input.CompetitionID); err != nil {
		// The pass expires on its own; the add already committed.
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"competition_id": input.CompetitionID.String(),
			"error":          err.Error(),
		}), "entry pass consume failed")
	}
	return s.GetCart(ctx, ownerID)
}

func (s *service) UpdateItem(ctx context.Context, ownerID, itemID uuid.UUID, quantity int) (Cart, error) {
	if ownerID == uuid.Nil {
		return Cart{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner required")
	}
	if err := ValidateQuantity(quantity, 0); err != nil {
		return Cart{}, err
	}

	_, current, err := s.findItem(ctx, s.repo, ownerID, itemID)
	if err != nil {
		return Cart{}, err
	}
	competition, err := s.competitions.GetByID(ctx, current.CompetitionID)
	if err != nil {
		return Cart{}, err
	}
	if err := ValidateQuantity(quantity, s.limitFor(competition)); err != nil {
		return Cart{}, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, item, err := s.findItem(ctx, repo, ownerID, itemID)
		if err != nil {
			return err
		}
		if err := repo.UpdateItemQuantity(ctx, record.ID, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return repo.Touch(ctx, record.ID)
	})
	if err != nil {
		return Cart{}, asTyped(err, "update cart item")
	}
	return s.GetCart(ctx, ownerID)
}

func (s *service) RemoveItem(ctx context.Context, ownerID, itemID uuid.UUID) (Cart, error) {
	if ownerID == uuid.Nil {
		return Cart{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, item, err := s.findItem(ctx, repo, ownerID, itemID)
		if err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, record.ID, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return repo.Touch(ctx, record.ID)
	})
	if err != nil {
		return Cart{}, asTyped(err, "remove cart item")
	}
	return s.GetCart(ctx, ownerID)
}

// Clear deletes the active cart. Clearing when no cart exists succeeds with
// the same empty cart.
func (s *service) Clear(ctx context.Context, ownerID uuid.UUID) (Cart, error) {
	if ownerID == uuid.Nil {
		return Cart{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "owner required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindActiveByOwner(ctx, ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := repo.Delete(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart")
		}
		return nil
	})
	if err != nil {
		return Cart{}, asTyped(err, "clear cart")
	}
	return Empty(), nil
}

func (s *service) findOrCreate(ctx context.Context, repo CartRepository, ownerID uuid.UUID) (*models.CartRecord, error) {
	record, err := repo.FindActiveByOwner(ctx, ownerID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	created, err := repo.Create(ctx, &models.CartRecord{OwnerID: ownerID})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart created concurrently, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

func (s *service) findItem(ctx context.Context, repo CartRepository, ownerID, itemID uuid.UUID) (*models.CartRecord, *models.CartItem, error) {
	record, err := repo.FindActiveByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	for i := range record.Items {
		if record.Items[i].ID == itemID {
			return record, &record.Items[i], nil
		}
	}
	return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found").
		WithDetails(map[string]any{"itemId": itemID})
}

func (s *service) limitFor(competition *models.Competition) int {
	limit := s.maxQuantity
	if competition.MaxTicketsPerUser > 0 && (limit == 0 || competition.MaxTicketsPerUser < limit) {
		limit = competition.MaxTicketsPerUser
	}
	return limit
}

func (s *service) toDomain(ctx context.Context, record *models.CartRecord) (Cart, error) {
	out := FromRecord(record)
	if err := Verify(out); err != nil {
		s.logg.Error(s.logg.WithCartID(ctx, record.ID.String()), "persisted cart violates invariants", err)
		return Cart{}, err
	}
	return out, nil
}

// FromRecord maps a persisted cart and its items to the domain cart.
func FromRecord(record *models.CartRecord) Cart {
	if record == nil {
		return Empty()
	}
	items := make([]Item, 0, len(record.Items))
	for _, row := range record.Items {
		items = append(items, Item{
			ID:            row.ID,
			CompetitionID: row.CompetitionID,
			Title:         row.Title,
			UnitPrice:     row.UnitPricePence,
			Quantity:      row.Quantity,
		})
	}
	return New(record.ID, items, record.UpdatedAt)
}

func asTyped(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
}
