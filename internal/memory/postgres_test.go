package memory

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewPostgresRepository(conn), mock
}

var memoryCols = []string{"id", "user_id", "location_id", "title", "description", "media_type", "media_key",
	"visibility", "is_archived", "is_featured", "tags", "year_created", "likes_count", "view_count",
	"created_at", "updated_at"}

func TestPostgresRepository_ToggleLike(t *testing.T) {
	t.Run("like", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM memories WHERE id::text = \$1 FOR UPDATE`).
			WithArgs("m-1").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m-1"))
		mock.ExpectExec(`DELETE FROM memory_likes`).WithArgs("m-1", "u-1").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO memory_likes`).WithArgs("m-1", "u-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`UPDATE memories SET likes_count = GREATEST\(likes_count \+ 1, 0\)`).
			WithArgs("m-1").WillReturnRows(sqlmock.NewRows([]string{"likes_count"}).AddRow(4))
		mock.ExpectCommit()

		liked, count, err := repo.ToggleLike(context.Background(), "m-1", "u-1")
		require.NoError(t, err)
		assert.True(t, liked)
		assert.Equal(t, 4, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unlike", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m-1"))
		mock.ExpectExec(`DELETE FROM memory_likes`).WithArgs("m-1", "u-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`GREATEST\(likes_count - 1, 0\)`).
			WithArgs("m-1").WillReturnRows(sqlmock.NewRows([]string{"likes_count"}).AddRow(0))
		mock.ExpectCommit()

		liked, count, err := repo.ToggleLike(context.Background(), "m-1", "u-1")
		require.NoError(t, err)
		assert.False(t, liked)
		assert.Equal(t, 0, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing memory", func(t *testing.T) {
		repo, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FOR UPDATE`).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, _, err := repo.ToggleLike(context.Background(), "nope", "u-1")
		assert.ErrorIs(t, err, ErrMemoryNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_Feed(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	cursor := &Cursor{CreatedAt: now, ID: "00000000-0000-0000-0000-000000000009"}

	mock.ExpectQuery(`FROM memories m\s+WHERE NOT m.is_archived`).
		WithArgs("viewer", sqlmock.AnyArg(), sql.NullTime{Time: now, Valid: true},
			sql.NullString{String: cursor.ID, Valid: true}, 11).
		WillReturnRows(sqlmock.NewRows(memoryCols).
			AddRow("m-1", "friend", "FS_01", "Title", "Desc", "image", "memories/2026/03/a.jpg",
				"friends", false, false, "{finals,coffee}", 2026, 2, 5, now.Add(-time.Hour), now))

	ms, err := repo.Feed(context.Background(), FeedQuery{ViewerID: "viewer", FriendIDs: []string{"friend"}, After: cursor, Limit: 11})
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, []string{"finals", "coffee"}, ms[0].Tags)
	assert.Equal(t, VisibilityFriends, ms[0].Visibility)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Update(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM memories m WHERE m.id::text = \$1 FOR UPDATE`).WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows(memoryCols).
			AddRow("m-1", "owner", "FS_01", "T", "D", "none", "", "private", false, false, "{}", 2026, 0, 0, now, now))
	mock.ExpectExec(`UPDATE memories SET visibility`).
		WithArgs("m-1", VisibilityPublic, false, false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m, err := repo.Update(context.Background(), "m-1", func(m *Memory) error {
		m.Visibility = VisibilityPublic
		m.UpdatedAt = now
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, VisibilityPublic, m.Visibility)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_DeleteNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`DELETE FROM memories`).WithArgs("m-1").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "m-1"), ErrMemoryNotFound)
}

func TestPostgresRepository_UserStats(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`COUNT\(\*\) FILTER \(WHERE is_archived\)`).WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum", "archived"}).AddRow(5, 12, 2))

	s, err := repo.UserStats(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 5, TotalLikes: 12, Archived: 2, Active: 3}, *s)
}
