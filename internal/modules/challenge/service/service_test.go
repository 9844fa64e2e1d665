package service

import (
	"context"
	"testing"
	"time"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	challengeRepo "github.com/PhoenixSmith/seraph-v2-sub000/internal/modules/challenge/repository"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/queue"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	groups     map[uuid.UUID]*entity.Group
	members    map[uuid.UUID][]uuid.UUID
	challenges map[uuid.UUID]*entity.Challenge
	metrics    map[uuid.UUID]challengeRepo.SideMetrics
	totalXP    map[uuid.UUID]int
	wins       map[uuid.UUID]int
	snapshots  int
	locked     [][]uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		groups:     map[uuid.UUID]*entity.Group{},
		members:    map[uuid.UUID][]uuid.UUID{},
		challenges: map[uuid.UUID]*entity.Challenge{},
		metrics:    map[uuid.UUID]challengeRepo.SideMetrics{},
		totalXP:    map[uuid.UUID]int{},
		wins:       map[uuid.UUID]int{},
	}
}

// addGroup creates a group led by a fresh user with extra plain members.
func (f *fakeRepo) addGroup(name string, open bool, extra int) *entity.Group {
	g := &entity.Group{ID: uuid.New(), Name: name, LeaderID: uuid.New(), OpenForChallenges: open}
	f.groups[g.ID] = g
	f.members[g.ID] = []uuid.UUID{g.LeaderID}
	for range extra {
		f.members[g.ID] = append(f.members[g.ID], uuid.New())
	}
	return g
}

func (f *fakeRepo) Transaction(_ context.Context, fn func(tx challengeRepo.ChallengeRepository) error) error {
	return fn(f)
}

func (f *fakeRepo) FindGroup(_ context.Context, id uuid.UUID) (*entity.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, apperror.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeRepo) MemberIDs(_ context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return f.members[groupID], nil
}

func (f *fakeRepo) Create(_ context.Context, c *entity.Challenge) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	cp := *c
	f.challenges[c.ID] = &cp
	return nil
}

func (f *fakeRepo) LockGroups(_ context.Context, ids []uuid.UUID) error {
	f.locked = append(f.locked, ids)
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error) {
	c, err := f.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	c.ChallengerGroup, _ = f.FindGroup(ctx, c.ChallengerGroupID)
	c.ChallengedGroup, _ = f.FindGroup(ctx, c.ChallengedGroupID)
	return c, nil
}

func (f *fakeRepo) Lock(_ context.Context, id uuid.UUID) (*entity.Challenge, error) {
	c, ok := f.challenges[id]
	if !ok {
		return nil, apperror.ErrChallengeNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRepo) Save(_ context.Context, c *entity.Challenge) error {
	cp := *c
	cp.ChallengerGroup, cp.ChallengedGroup = nil, nil
	f.challenges[c.ID] = &cp
	return nil
}

func (f *fakeRepo) HasOpenChallenge(_ context.Context, a, b uuid.UUID) (bool, error) {
	for _, c := range f.challenges {
		pair := (c.ChallengerGroupID == a && c.ChallengedGroupID == b) || (c.ChallengerGroupID == b && c.ChallengedGroupID == a)
		if pair && !c.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ListByGroup(_ context.Context, groupID uuid.UUID, status string) ([]entity.Challenge, error) {
	var out []entity.Challenge
	for _, c := range f.challenges {
		if (c.ChallengerGroupID == groupID || c.ChallengedGroupID == groupID) && (status == "" || c.Status == status) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListExpiredActive(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id, c := range f.challenges {
		if c.Status == entity.ChallengeActive && !now.Before(*c.EndTime) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeRepo) TotalXP(_ context.Context, groupID uuid.UUID) (int, error) {
	return f.totalXP[groupID], nil
}

func (f *fakeRepo) Metrics(_ context.Context, ids []uuid.UUID, _ challengeRepo.MetricsWindow) (map[uuid.UUID]challengeRepo.SideMetrics, error) {
	out := map[uuid.UUID]challengeRepo.SideMetrics{}
	for _, id := range ids {
		out[id] = f.metrics[id]
	}
	return out, nil
}

func (f *fakeRepo) Snapshot(ctx context.Context, ids []uuid.UUID, w challengeRepo.MetricsWindow) (map[uuid.UUID]challengeRepo.SideMetrics, error) {
	f.snapshots++
	return f.Metrics(ctx, ids, w)
}

func (f *fakeRepo) RecordWin(_ context.Context, groupID uuid.UUID) error {
	f.wins[groupID]++
	return nil
}

type recordingProducer struct {
	tasks []queue.Task
}

func (p *recordingProducer) Enqueue(_ context.Context, t queue.Task) error {
	p.tasks = append(p.tasks, t)
	return nil
}

var start = time.Date(2024, 3, 3, 18, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(repo *fakeRepo) (*challengeService, *clock, *recordingProducer) {
	producer := &recordingProducer{}
	svc := NewChallengeService(repo, producer, nil, nil, time.Minute).(*challengeService)
	clk := &clock{t: start}
	svc.now = clk.now
	return svc, clk, producer
}

// activeChallenge sets up a challenge accepted at start between two open groups.
func activeChallenge(t *testing.T, repo *fakeRepo, svc *challengeService) (*entity.Group, *entity.Group, uuid.UUID) {
	t.Helper()
	challenger := repo.addGroup("Bereans", true, 6)
	challenged := repo.addGroup("Thessalonians", true, 9)

	created, err := svc.CreateChallenge(context.Background(), challenger.LeaderID, challenger.ID, challenged.ID)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	_, err = svc.AcceptChallenge(context.Background(), challenged.LeaderID, id)
	require.NoError(t, err)
	return challenger, challenged, id
}

func TestComputeScore(t *testing.T) {
	tests := []struct {
		Desc   string
		XP     int
		Active int
		Want   float64
	}{
		{Desc: "challenger side", XP: 140, Active: 7, Want: 20},
		{Desc: "challenged side", XP: 150, Active: 10, Want: 15},
		{Desc: "nobody active", XP: 0, Active: 0, Want: 0},
		{Desc: "xp with no active count", XP: 30, Active: 0, Want: 30},
		{Desc: "fractional", XP: 10, Active: 4, Want: 2.5},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			assert.Equal(t, tc.Want, ComputeScore(tc.XP, tc.Active))
		})
	}
}

func TestDecideWinner(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	assert.Equal(t, &a, DecideWinner(a, b, 20, 15))
	assert.Equal(t, &b, DecideWinner(a, b, 15, 20))
	assert.Nil(t, DecideWinner(a, b, 12.5, 12.5))
	assert.Nil(t, DecideWinner(a, b, 0, 0))
}

func TestResolveChallengeNormalizesBySize(t *testing.T) {
	repo := newFakeRepo()
	svc, clk, producer := newTestService(repo)
	challenger, challenged, id := activeChallenge(t, repo, svc)
	repo.metrics[challenger.ID] = challengeRepo.SideMetrics{XP: 140, Active: 7}
	repo.metrics[challenged.ID] = challengeRepo.SideMetrics{XP: 150, Active: 10}

	clk.t = start.Add(entity.ChallengeDuration)
	resolved, err := svc.ResolveChallenge(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, entity.ChallengeCompleted, resolved.Status)
	require.NotNil(t, resolved.WinnerGroupID)
	assert.Equal(t, challenger.ID, *resolved.WinnerGroupID)
	assert.Equal(t, 20.0, resolved.ChallengerScore)
	assert.Equal(t, 15.0, resolved.ChallengedScore)
	assert.Equal(t, 1, repo.wins[challenger.ID])
	assert.Zero(t, repo.wins[challenged.ID])

	// every winning member gets an achievement check
	assert.Len(t, producer.tasks, len(repo.members[challenger.ID]))
	for _, task := range producer.tasks {
		assert.Equal(t, queue.TaskCheckMiscAchievements, task.Type)
	}

	// resolving again changes nothing
	clk.t = clk.t.Add(time.Hour)
	again, err := svc.ResolveChallenge(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.ChallengeCompleted, again.Status)
	assert.Equal(t, resolved.ResolvedAt, again.ResolvedAt)
	assert.Equal(t, 1, repo.wins[challenger.ID])
	assert.Len(t, producer.tasks, len(repo.members[challenger.ID]))
}

func TestResolveChallengeTie(t *testing.T) {
	tests := []struct {
		Desc       string
		Challenger challengeRepo.SideMetrics
		Challenged challengeRepo.SideMetrics
	}{
		{Desc: "identical scores", Challenger: challengeRepo.SideMetrics{XP: 100, Active: 4}, Challenged: challengeRepo.SideMetrics{XP: 50, Active: 2}},
		{Desc: "nobody read", Challenger: challengeRepo.SideMetrics{}, Challenged: challengeRepo.SideMetrics{}},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			repo := newFakeRepo()
			svc, clk, producer := newTestService(repo)
			challenger, challenged, id := activeChallenge(t, repo, svc)
			repo.metrics[challenger.ID] = tc.Challenger
			repo.metrics[challenged.ID] = tc.Challenged

			clk.t = start.Add(entity.ChallengeDuration + time.Minute)
			resp, err := svc.GetChallenge(context.Background(), challenger.LeaderID, id)
			require.NoError(t, err)

			assert.Equal(t, entity.ChallengeCompleted, resp.Status)
			assert.Nil(t, resp.WinnerGroupID)
			assert.True(t, resp.IsTie)
			assert.Empty(t, repo.wins)
			assert.Empty(t, producer.tasks)
		})
	}
}

func TestResolveBeforeEndIsNoop(t *testing.T) {
	repo := newFakeRepo()
	svc, clk, _ := newTestService(repo)
	challenger, _, id := activeChallenge(t, repo, svc)
	repo.metrics[challenger.ID] = challengeRepo.SideMetrics{XP: 90, Active: 3}

	clk.t = start.Add(entity.ChallengeDuration - time.Second)
	got, err := svc.ResolveChallenge(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.ChallengeActive, got.Status)
	assert.Nil(t, got.ResolvedAt)

	resp, err := svc.GetChallenge(context.Background(), challenger.LeaderID, id)
	require.NoError(t, err)
	assert.Equal(t, entity.ChallengeActive, resp.Status)
	assert.Equal(t, 30.0, resp.Challenger.Score)
	assert.Equal(t, 0.0, resp.Challenged.Score)
	assert.EqualValues(t, 1, resp.SecondsLeft)
	assert.Equal(t, ViewerChallengerLeader, resp.ViewerRole)
	assert.Positive(t, repo.snapshots)
}

func TestCreateChallengeGuards(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	mine := repo.addGroup("Ephesus", true, 2)
	open := repo.addGroup("Smyrna", true, 2)
	closed := repo.addGroup("Laodicea", false, 2)
	busy := repo.addGroup("Pergamum", true, 2)
	_, err := svc.CreateChallenge(context.Background(), busy.LeaderID, busy.ID, mine.ID)
	require.NoError(t, err)
	member := repo.members[mine.ID][1]

	tests := []struct {
		Desc       string
		Actor      uuid.UUID
		Challenger uuid.UUID
		Challenged uuid.UUID
		WantErr    error
	}{
		{Desc: "unknown challenger group", Actor: mine.LeaderID, Challenger: uuid.New(), Challenged: open.ID, WantErr: apperror.ErrNotFound},
		{Desc: "plain member", Actor: member, Challenger: mine.ID, Challenged: open.ID, WantErr: apperror.ErrInvalidTransition},
		{Desc: "own group", Actor: mine.LeaderID, Challenger: mine.ID, Challenged: mine.ID, WantErr: apperror.ErrInvalidTransition},
		{Desc: "unknown target", Actor: mine.LeaderID, Challenger: mine.ID, Challenged: uuid.New(), WantErr: apperror.ErrNotFound},
		{Desc: "target closed", Actor: mine.LeaderID, Challenger: mine.ID, Challenged: closed.ID, WantErr: apperror.ErrInvalidTransition},
		{Desc: "pair already pending", Actor: mine.LeaderID, Challenger: mine.ID, Challenged: busy.ID, WantErr: apperror.ErrInvalidTransition},
		{Desc: "valid", Actor: mine.LeaderID, Challenger: mine.ID, Challenged: open.ID},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			before := len(repo.challenges)
			resp, err := svc.CreateChallenge(context.Background(), tc.Actor, tc.Challenger, tc.Challenged)
			if tc.WantErr != nil {
				assert.ErrorIs(t, err, tc.WantErr)
				assert.Len(t, repo.challenges, before)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, entity.ChallengePending, resp.Status)
			assert.Nil(t, resp.EndTime)
			assert.Len(t, repo.challenges, before+1)
		})
	}
}

func TestCreateChallengeLocksBothGroups(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	a := repo.addGroup("Antioch", true, 1)
	b := repo.addGroup("Corinth", true, 1)

	_, err := svc.CreateChallenge(context.Background(), a.LeaderID, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, repo.locked, 1)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, repo.locked[0])

	// The reverse direction sees the first challenge once it holds the same locks.
	_, err = svc.CreateChallenge(context.Background(), b.LeaderID, b.ID, a.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	assert.Len(t, repo.locked, 2)
	assert.Len(t, repo.challenges, 1)
}

func TestChallengeTransitions(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	challenger := repo.addGroup("Judah", true, 3)
	challenged := repo.addGroup("Benjamin", true, 3)
	repo.totalXP[challenger.ID] = 400
	repo.totalXP[challenged.ID] = 650
	repo.metrics[challenger.ID] = challengeRepo.SideMetrics{Active: 3}
	repo.metrics[challenged.ID] = challengeRepo.SideMetrics{Active: 4}
	ctx := context.Background()

	created, err := svc.CreateChallenge(ctx, challenger.LeaderID, challenger.ID, challenged.ID)
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)
	challengedMember := repo.members[challenged.ID][1]

	_, err = svc.AcceptChallenge(ctx, challengedMember, id)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition, "member of the challenged group")
	_, err = svc.AcceptChallenge(ctx, challenger.LeaderID, id)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition, "challenger accepting its own challenge")
	_, err = svc.CancelChallenge(ctx, challenged.LeaderID, id)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition, "target cannot cancel")
	assert.Equal(t, entity.ChallengePending, repo.challenges[id].Status)

	accepted, err := svc.AcceptChallenge(ctx, challenged.LeaderID, id)
	require.NoError(t, err)
	assert.Equal(t, entity.ChallengeActive, accepted.Status)
	require.NotNil(t, accepted.EndTime)
	assert.Equal(t, start.Add(entity.ChallengeDuration), *accepted.EndTime)
	assert.Equal(t, 400, accepted.Challenger.StartXP)
	assert.Equal(t, 650, accepted.Challenged.StartXP)
	assert.Equal(t, 3, accepted.Challenger.StartActive)
	assert.Equal(t, 4, accepted.Challenged.StartActive)

	_, err = svc.AcceptChallenge(ctx, challenged.LeaderID, id)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition, "accepting twice")
	_, err = svc.DeclineChallenge(ctx, challenged.LeaderID, id)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition, "declining an active challenge")
	_, err = svc.CancelChallenge(ctx, challenger.LeaderID, id)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition, "cancelling an active challenge")

	_, err = svc.AcceptChallenge(ctx, challenged.LeaderID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeclineAndCancel(t *testing.T) {
	repo := newFakeRepo()
	svc, _, _ := newTestService(repo)
	a := repo.addGroup("Asher", true, 1)
	b := repo.addGroup("Dan", true, 1)
	ctx := context.Background()

	first, err := svc.CreateChallenge(ctx, a.LeaderID, a.ID, b.ID)
	require.NoError(t, err)
	declined, err := svc.DeclineChallenge(ctx, b.LeaderID, uuid.MustParse(first.ID))
	require.NoError(t, err)
	assert.Equal(t, entity.ChallengeDeclined, declined.Status)

	// a terminal challenge frees the pair
	second, err := svc.CreateChallenge(ctx, a.LeaderID, a.ID, b.ID)
	require.NoError(t, err)
	cancelled, err := svc.CancelChallenge(ctx, a.LeaderID, uuid.MustParse(second.ID))
	require.NoError(t, err)
	assert.Equal(t, entity.ChallengeCancelled, cancelled.Status)

	_, err = svc.AcceptChallenge(ctx, b.LeaderID, uuid.MustParse(second.ID))
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	list, err := svc.ListGroupChallenges(ctx, a.LeaderID, a.ID, entity.ChallengeDeclined)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestResolveExpired(t *testing.T) {
	repo := newFakeRepo()
	svc, clk, _ := newTestService(repo)
	_, _, first := activeChallenge(t, repo, svc)
	clk.t = start.Add(24 * time.Hour)
	_, _, second := activeChallenge(t, repo, svc)

	clk.t = start.Add(entity.ChallengeDuration + time.Hour)
	n, err := svc.ResolveExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entity.ChallengeCompleted, repo.challenges[first].Status)
	assert.Equal(t, entity.ChallengeActive, repo.challenges[second].Status)

	n, err = svc.ResolveExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
