package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSubmissionsChangedEvictsAnalyticsCache(t *testing.T) {
	server := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: server.Addr()})

	require.NoError(t, cache.Set(context.Background(), "analytics:assignment:30", "{}", time.Minute).Err())
	require.NoError(t, cache.Set(context.Background(), "analytics:course:5", "{}", time.Minute).Err())
	require.NoError(t, cache.Set(context.Background(), "analytics:assignment:99", "{}", time.Minute).Err())

	events := NewSubmissionEvents(nil, "", cache, testLogger())
	events.SubmissionsChanged(context.Background(), 5, 30)

	require.False(t, server.Exists("analytics:assignment:30"))
	require.False(t, server.Exists("analytics:course:5"))
	require.True(t, server.Exists("analytics:assignment:99"))
}

func TestSubmissionsChangedToleratesMissingBackends(t *testing.T) {
	events := NewSubmissionEvents(nil, "", nil, testLogger())

	// Must not panic with neither NATS nor redis configured.
	events.SubmissionsChanged(context.Background(), 1, 2)
}
