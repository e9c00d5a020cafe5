package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"gartenconnect/internal/infrastructure"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *UsageRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	client, err := infrastructure.NewPostgresClient(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return NewUsageRepository(client.Pool)
}

func TestUsageRepositoryCounters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	chatID := uuid.NewString() + "@s.whatsapp.net"

	sent, received, err := repo.GetTodayUsage(ctx, chatID)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, received)

	require.NoError(t, repo.IncrementReceived(ctx, chatID))
	require.NoError(t, repo.IncrementReceived(ctx, chatID))
	require.NoError(t, repo.IncrementSent(ctx, chatID, 3))
	require.NoError(t, repo.IncrementSent(ctx, chatID, 0))

	usage, err := repo.GetChatUsage(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, chatID, usage.ChatID)
	assert.Equal(t, 3, usage.TodaySent)
	assert.Equal(t, 2, usage.TodayReceived)
	assert.Equal(t, 3, usage.MonthSent)
	assert.Equal(t, 2, usage.MonthReceived)
	require.Len(t, usage.History, 1)
	assert.Equal(t, 3, usage.History[0].MessagesSent)
}

func TestUsageRepositoryHistoryWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	chatID := uuid.NewString() + "@g.us"

	base := time.Now().UTC().Truncate(24 * time.Hour)
	for _, daysAgo := range []int{10, 2, 0} {
		repo.now = func() time.Time { return base.AddDate(0, 0, -daysAgo) }
		require.NoError(t, repo.IncrementReceived(ctx, chatID))
	}
	repo.now = func() time.Time { return base }

	history, err := repo.GetUsageHistory(ctx, chatID, 7)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Date.Before(history[1].Date))
}
