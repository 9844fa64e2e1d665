package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/entity"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/apperror"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepo(t *testing.T) (ChallengeRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewChallengeRepository(db), mock
}

const metricsQuery = `SELECT gm.group_id, ` +
	`COALESCE\(SUM\(e.amount\) FILTER \(WHERE e.created_at >= \$1\), 0\) AS xp, ` +
	`COUNT\(DISTINCT e.user_id\) FILTER \(WHERE e.created_at >= \$2\) AS active ` +
	`FROM group_memberships gm ` +
	`JOIN xp_events e ON e.user_id = gm.user_id AND e.created_at >= \$3 AND e.created_at <= \$4 ` +
	`WHERE gm.group_id IN \(\$5,\$6\) GROUP BY gm.group_id`

func TestMetrics(t *testing.T) {
	challenger := uuid.New()
	challenged := uuid.New()
	end := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	accepted := end.Add(-entity.ChallengeDuration)

	tests := []struct {
		Desc         string
		Window       MetricsWindow
		MockPrepFunc func(mock sqlmock.Sqlmock, w MetricsWindow)
		Want         map[uuid.UUID]SideMetrics
		WantErr      bool
	}{
		{
			Desc:   "final window binds since, the trailing week and the end",
			Window: MetricsWindow{Since: accepted, ActiveFrom: end.Add(-7 * 24 * time.Hour), To: end},
			MockPrepFunc: func(mock sqlmock.Sqlmock, w MetricsWindow) {
				mock.ExpectQuery(metricsQuery).
					WithArgs(w.Since, w.ActiveFrom, w.Since, w.To, challenger, challenged).
					WillReturnRows(sqlmock.NewRows([]string{"group_id", "xp", "active"}).
						AddRow(challenger.String(), 140, 7).
						AddRow(challenged.String(), 150, 10))
			},
			Want: map[uuid.UUID]SideMetrics{
				challenger: {XP: 140, Active: 7},
				challenged: {XP: 150, Active: 10},
			},
		},
		{
			Desc:   "scan starts at the earlier of since and the activity window",
			Window: MetricsWindow{Since: end.Add(-2 * 24 * time.Hour), ActiveFrom: end.Add(-7 * 24 * time.Hour), To: end},
			MockPrepFunc: func(mock sqlmock.Sqlmock, w MetricsWindow) {
				mock.ExpectQuery(metricsQuery).
					WithArgs(w.Since, w.ActiveFrom, w.ActiveFrom, w.To, challenger, challenged).
					WillReturnRows(sqlmock.NewRows([]string{"group_id", "xp", "active"}).
						AddRow(challenger.String(), 0, 3))
			},
			Want: map[uuid.UUID]SideMetrics{
				challenger: {XP: 0, Active: 3},
				challenged: {},
			},
		},
		{
			Desc:   "db error",
			Window: MetricsWindow{Since: accepted, ActiveFrom: accepted, To: end},
			MockPrepFunc: func(mock sqlmock.Sqlmock, _ MetricsWindow) {
				mock.ExpectQuery(metricsQuery).WillReturnError(assert.AnError)
			},
			WantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tc.MockPrepFunc(mock, tc.Window)

			got, err := repo.Metrics(context.Background(), []uuid.UUID{challenger, challenged}, tc.Window)
			if tc.WantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.Want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecordWinLocksMembersBeforeGroup(t *testing.T) {
	repo, mock := newMockRepo(t)
	groupID := uuid.New()
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE id IN \(SELECT "user_id" FROM "group_memberships" WHERE group_id = \$1\) ORDER BY id FOR UPDATE`).
		WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(first.String()).AddRow(second.String()))
	mock.ExpectExec(`UPDATE "users" SET "challenge_wins"=challenge_wins \+ 1 WHERE id IN \(\$1,\$2\)`).
		WithArgs(first, second).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE "groups" SET "challenge_wins"=challenge_wins \+ 1 WHERE id = \$1`).
		WithArgs(groupID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordWin(context.Background(), groupID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockGroups(t *testing.T) {
	repo, mock := newMockRepo(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT "id" FROM "groups" WHERE id IN \(\$1,\$2\) ORDER BY id FOR UPDATE`).
		WithArgs(a, b).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(a.String()).AddRow(b.String()))

	require.NoError(t, repo.LockGroups(context.Background(), []uuid.UUID{a, b}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	tests := []struct {
		Desc    string
		DBErr   error
		WantErr error
	}{
		{Desc: "successful"},
		{Desc: "open pair index violation", DBErr: &pgconn.PgError{Code: "23505", ConstraintName: "idx_challenges_open_pair"}, WantErr: apperror.ErrInvalidTransition},
		{Desc: "other db error", DBErr: assert.AnError, WantErr: assert.AnError},
	}

	for _, tc := range tests {
		t.Run(tc.Desc, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			exp := mock.ExpectExec(`INSERT INTO "challenges"`)
			if tc.DBErr != nil {
				exp.WillReturnError(tc.DBErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := repo.Create(context.Background(), &entity.Challenge{
				ChallengerGroupID: uuid.New(),
				ChallengedGroupID: uuid.New(),
				CreatedByID:       uuid.New(),
				Status:            entity.ChallengePending,
			})
			if tc.WantErr != nil {
				assert.ErrorIs(t, err, tc.WantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
