package presence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shareCols = []string{"id", "user_id", "location_id", "status_message", "is_active", "created_at", "expires_at"}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewPostgresRepository(conn), mock
}

func TestPostgresRepository_Activate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	s := &Share{UserID: "u-1", LocationID: "FS_01", Status: StatusStudying, CreatedAt: now, ExpiresAt: now.Add(DefaultTTL)}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE presence_shares SET is_active = FALSE\s+WHERE user_id = \$1 AND is_active`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"location_id"}).AddRow("P01_A"))
	mock.ExpectQuery(`INSERT INTO presence_shares`).
		WithArgs("u-1", "FS_01", StatusStudying, now, s.ExpiresAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1"))
	mock.ExpectExec(`UPDATE locations l SET`).
		WithArgs(pq.Array([]string{"P01_A", "FS_01"}), now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	touched, err := repo.Activate(context.Background(), s, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"P01_A", "FS_01"}, touched)
	assert.Equal(t, "s-1", s.ID)
	assert.True(t, s.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Activate_ConcurrentShare(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE presence_shares`).WillReturnRows(sqlmock.NewRows([]string{"location_id"}))
	mock.ExpectQuery(`INSERT INTO presence_shares`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_presence_one_active"})
	mock.ExpectRollback()

	touched, err := repo.Activate(context.Background(), &Share{UserID: "u-1", LocationID: "FS_01", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}, now)
	assert.ErrorIs(t, err, ErrShareConflict)
	assert.Nil(t, touched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Deactivate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE presence_shares SET is_active = FALSE`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(shareCols).
			AddRow("s-1", "u-1", "FS_02", "busy", false, now.Add(-time.Hour), now.Add(3*time.Hour)))
	mock.ExpectExec(`UPDATE locations l SET`).
		WithArgs(pq.Array([]string{"FS_02"}), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	vacated, touched, err := repo.Deactivate(context.Background(), "u-1", now)
	require.NoError(t, err)
	require.NotNil(t, vacated)
	assert.Equal(t, "FS_02", vacated.LocationID)
	assert.Equal(t, []string{"FS_02"}, touched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Deactivate_ExpiredRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE presence_shares SET is_active = FALSE`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(shareCols).
			AddRow("s-1", "u-1", "P01_A", "busy", false, now.Add(-5*time.Hour), now.Add(-time.Hour)))
	mock.ExpectExec(`UPDATE locations l SET`).
		WithArgs(pq.Array([]string{"P01_A"}), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	vacated, touched, err := repo.Deactivate(context.Background(), "u-1", now)
	require.NoError(t, err)
	assert.Nil(t, vacated)
	assert.Equal(t, []string{"P01_A"}, touched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Sweep(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE is_active AND expires_at <= \$1`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"location_id"}).AddRow("P01_A").AddRow("P01_A").AddRow("P02_A"))
	mock.ExpectExec(`UPDATE locations l SET`).
		WithArgs(pq.Array([]string{"P01_A", "P02_A"}), now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := repo.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
