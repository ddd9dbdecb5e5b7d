package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/rafflehouse-backend/pkg/db/models"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	"github.com/angelmondragon/rafflehouse-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopeInsideTx(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	aggregate := uuid.New()
	userID := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventCompetitionClosed,
			AggregateType: enums.AggregateCompetition,
			AggregateID:   aggregate,
			Actor:         &ActorRef{UserID: userID, Role: "admin"},
			Data:          payloads.CompetitionClosedEvent{CompetitionID: aggregate, Title: "Tesla Model 3"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, aggregate, rows[0].AggregateID)

	env, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, env.Version)
	require.NotEmpty(t, env.EventID)
	require.Equal(t, userID, env.Actor.UserID)
	require.Contains(t, string(env.Data), "Tesla Model 3")
}

func TestEmitRollsBackWithTx(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventCheckoutSubmitted,
			AggregateType: enums.AggregateCheckoutIntent,
			AggregateID:   uuid.New(),
			Data:          map[string]string{"k": "v"},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := NewRepository(conn).CountPending()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestEmitRejectsUnknownTypes(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	err := svc.Emit(context.Background(), conn, DomainEvent{EventType: "nope", AggregateType: enums.AggregateCompetition, AggregateID: uuid.New()})
	require.Error(t, err)
	err = svc.Emit(context.Background(), conn, DomainEvent{EventType: enums.EventCompetitionClosed, AggregateType: enums.AggregateCompetition})
	require.Error(t, err, "aggregate id is required")
	require.ErrorIs(t, svc.Emit(context.Background(), nil, DomainEvent{}), ErrTxRequired)
}

func TestEmitStampsOccurredAtFromClock(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	fixed := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventCompetitionClosed,
		AggregateType: enums.AggregateCompetition,
		AggregateID:   uuid.New(),
		Data:          map[string]string{},
		Version:       2,
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	env, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	require.True(t, env.OccurredAt.Equal(fixed))
	require.Equal(t, 2, env.Version)
}

func TestFetchAndMark(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
			EventType:     enums.EventCheckoutSubmitted,
			AggregateType: enums.AggregateCheckoutIntent,
			AggregateID:   uuid.New(),
			Data:          map[string]int{"i": i},
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New("unavailable")))
	}

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1, "published and exhausted rows are skipped")

	pending, err := repo.CountPending()
	require.NoError(t, err)
	require.EqualValues(t, 2, pending)
}

func TestDeleteSettledBeforeKeepsRetryableRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	old := time.Now().UTC().Add(-48 * time.Hour)

	published := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventCheckoutSubmitted, AggregateType: enums.AggregateCheckoutIntent, AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: old, PublishedAt: &old}
	dead := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventCheckoutSubmitted, AggregateType: enums.AggregateCheckoutIntent, AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: old, AttemptCount: 5}
	retryable := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventCheckoutSubmitted, AggregateType: enums.AggregateCheckoutIntent, AggregateID: uuid.New(), Payload: []byte(`{}`), CreatedAt: old, AttemptCount: 1}
	for _, row := range []models.OutboxEvent{published, dead, retryable} {
		require.NoError(t, repo.Insert(conn, row))
	}

	deleted, err := repo.DeleteSettledBefore(conn, time.Now().UTC().Add(-24*time.Hour), 5)
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	pending, err := repo.CountPending()
	require.NoError(t, err)
	require.EqualValues(t, 1, pending)
}
