package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
)

type fakeOutboxPruner struct {
	cutoff      time.Time
	maxAttempts int
	calls       int
	err         error
}

func (f *fakeOutboxPruner) DeleteSettledBefore(_ *gorm.DB, cutoff time.Time, maxAttempts int) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	f.maxAttempts = maxAttempts
	return 7, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newOutboxRetentionJob(t *testing.T, repo *fakeOutboxPruner) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.Nop(),
		DB:          passthroughTx{},
		Repository:  repo,
		MaxAttempts: 10,
	})
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionUsesDefaultWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxPruner{}
	job := newOutboxRetentionJob(t, repo)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, repo.calls)
	assert.True(t, repo.cutoff.Equal(now.Add(-defaultOutboxRetention)))
	assert.Equal(t, 10, repo.maxAttempts)
}

func TestOutboxRetentionPropagatesError(t *testing.T) {
	job := newOutboxRetentionJob(t, &fakeOutboxPruner{err: errors.New("boom")})
	assert.Error(t, job.Run(context.Background()))
}
