package competitions

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rafflehouse-backend/pkg/db/models"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
)

// Question is the qualifying multiple-choice question shown before entry.
type Question struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// PublicCompetition is the customer-facing view. It never carries the correct
// answer.
type PublicCompetition struct {
	ID                uuid.UUID               `json:"id"`
	Title             string                  `json:"title"`
	Description       string                  `json:"description,omitempty"`
	Status            enums.CompetitionStatus `json:"status"`
	TicketPrice       money.Pence             `json:"ticketPrice"`
	MaxTicketsPerUser int                     `json:"maxTicketsPerUser,omitempty"`
	Question          Question                `json:"question"`
	DrawAt            *time.Time              `json:"drawAt,omitempty"`
}

// AdminCompetition adds the fields only administrators may see.
type AdminCompetition struct {
	PublicCompetition
	CorrectAnswer string    `json:"correctAnswer"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CreateInput holds the admin-supplied fields for a new competition.
type CreateInput struct {
	Title             string                  `json:"title" validate:"required,max=200"`
	Description       string                  `json:"description" validate:"max=4000"`
	Status            enums.CompetitionStatus `json:"status"`
	TicketPrice       money.Pence             `json:"ticketPrice" validate:"gt=0"`
	MaxTicketsPerUser int                     `json:"maxTicketsPerUser" validate:"gte=0"`
	QuestionPrompt    string                  `json:"questionPrompt" validate:"required,max=500"`
	AnswerOptions     []string                `json:"answerOptions" validate:"required,min=2,max=10,dive,required"`
	CorrectAnswer     string                  `json:"correctAnswer" validate:"required"`
	DrawAt            *time.Time              `json:"drawAt"`
}

// UpdateInput patches a competition. Nil fields are left unchanged.
type UpdateInput struct {
	Title             *string                  `json:"title" validate:"omitempty,max=200"`
	Description       *string                  `json:"description" validate:"omitempty,max=4000"`
	Status            *enums.CompetitionStatus `json:"status"`
	TicketPrice       *money.Pence             `json:"ticketPrice" validate:"omitempty,gt=0"`
	MaxTicketsPerUser *int                     `json:"maxTicketsPerUser" validate:"omitempty,gte=0"`
	QuestionPrompt    *string                  `json:"questionPrompt" validate:"omitempty,max=500"`
	AnswerOptions     []string                 `json:"answerOptions" validate:"omitempty,min=2,max=10,dive,required"`
	CorrectAnswer     *string                  `json:"correctAnswer"`
	DrawAt            *time.Time               `json:"drawAt"`
}

// ToModel maps the input onto a new row. Status defaults to draft.
func (in CreateInput) ToModel() *models.Competition {
	status := in.Status
	if status == "" {
		status = enums.CompetitionStatusDraft
	}
	return &models.Competition{
		Title:             in.Title,
		Description:       in.Description,
		Status:            status,
		TicketPricePence:  in.TicketPrice,
		MaxTicketsPerUser: in.MaxTicketsPerUser,
		QuestionPrompt:    in.QuestionPrompt,
		AnswerOptions:     append([]string(nil), in.AnswerOptions...),
		CorrectAnswer:     in.CorrectAnswer,
		DrawAt:            in.DrawAt,
	}
}

// ToPublic maps a persisted row to the customer view.
func ToPublic(m *models.Competition) PublicCompetition {
	if m == nil {
		return PublicCompetition{}
	}
	return PublicCompetition{
		ID:                m.ID,
		Title:             m.Title,
		Description:       m.Description,
		Status:            m.Status,
		TicketPrice:       m.TicketPricePence,
		MaxTicketsPerUser: m.MaxTicketsPerUser,
		Question: Question{
			Prompt:  m.QuestionPrompt,
			Options: append([]string(nil), m.AnswerOptions...),
		},
		DrawAt: m.DrawAt,
	}
}

// ToAdmin maps a persisted row to the administrator view.
func ToAdmin(m *models.Competition) AdminCompetition {
	if m == nil {
		return AdminCompetition{}
	}
	return AdminCompetition{
		PublicCompetition: ToPublic(m),
		CorrectAnswer:     m.CorrectAnswer,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
