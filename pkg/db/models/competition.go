package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	"github.com/angelmondragon/rafflehouse-backend/pkg/money"
)

// Competition is a prize draw with a qualifying multiple-choice question.
// CorrectAnswer never leaves the server.
type Competition struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Title             string                  `gorm:"column:title;not null"`
	Description       string                  `gorm:"column:description;not null;default:''"`
	Status            enums.CompetitionStatus `gorm:"column:status;not null;default:'draft'"`
	TicketPricePence  money.Pence             `gorm:"column:ticket_price_pence;not null"`
	MaxTicketsPerUser int                     `gorm:"column:max_tickets_per_user;not null;default:0"`
	QuestionPrompt    string                  `gorm:"column:question_prompt;not null"`
	AnswerOptions     pq.StringArray          `gorm:"column:answer_options;type:text[];not null"`
	CorrectAnswer     string                  `gorm:"column:correct_answer;not null"`
	DrawAt            *time.Time              `gorm:"column:draw_at"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Competition) TableName() string { return "competitions" }

func (c *Competition) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
