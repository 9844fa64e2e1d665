package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	n     int
	err   error
	calls int
}

func (s *stubResolver) ResolveExpired(context.Context) (int, error) {
	s.calls++
	return s.n, s.err
}

type stubPurger struct{ calls int }

func (s *stubPurger) PurgeRollingDays(context.Context) (int64, error) {
	s.calls++
	return 12, nil
}

type stubReindexer struct{ calls int }

func (s *stubReindexer) ReindexGroups(context.Context) (int, error) {
	s.calls++
	return 3, nil
}

func TestRegisterAndRunByName(t *testing.T) {
	resolver := &stubResolver{n: 2}
	purger := &stubPurger{}
	reindexer := &stubReindexer{}

	s := New()
	require.NoError(t, s.Register(ChallengeSweep("*/5 * * * *", resolver)))
	require.NoError(t, s.Register(RollingGC("15 3 * * *", purger)))
	require.NoError(t, s.Register(SearchReindex("", reindexer)))

	assert.Equal(t, []string{"challenge-sweep", "rolling-gc", "search-reindex"}, s.Registered())

	ctx := context.Background()
	require.NoError(t, s.RunByName(ctx, "challenge-sweep"))
	require.NoError(t, s.RunByName(ctx, "rolling-gc"))
	require.NoError(t, s.RunByName(ctx, "search-reindex"))
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, 1, reindexer.calls)

	assert.Error(t, s.RunByName(ctx, "missing"))
}

func TestRegisterRejectsBadSchedule(t *testing.T) {
	s := New()
	err := s.Register(ChallengeSweep("every five minutes", &stubResolver{}))
	assert.Error(t, err)
	assert.Empty(t, s.Registered())
}

func TestJobPropagatesError(t *testing.T) {
	boom := errors.New("db down")
	job := ChallengeSweep("", &stubResolver{err: boom})
	assert.ErrorIs(t, job.Run(context.Background()), boom)
}

func TestStartStop(t *testing.T) {
	s := New()
	require.NoError(t, s.Register(RollingGC("0 0 1 1 *", &stubPurger{})))
	s.Start()
	s.Stop()
}
