package friendship

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var friendshipCols = []string{"id", "from_user_id", "to_user_id", "status", "created_at", "accepted_at"}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewPostgresRepository(conn), mock
}

func TestPostgresRepository_Create_PairExists(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`INSERT INTO friendships`).
		WithArgs("a", "b", StatusPending).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_friendships_pair"})

	err := repo.Create(context.Background(), &Friendship{FromUserID: "a", ToUserID: "b", Status: StatusPending})
	assert.ErrorIs(t, err, ErrRelationExists)
}

func TestPostgresRepository_Resolve(t *testing.T) {
	now := time.Now()

	t.Run("accept", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`UPDATE friendships SET status = 'accepted'`).
			WithArgs("f-1", "b", now).
			WillReturnRows(sqlmock.NewRows(friendshipCols).AddRow("f-1", "a", "b", "accepted", now, now))

		f, err := repo.Resolve(context.Background(), "f-1", "b", true, now)
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, f.Status)
		require.NotNil(t, f.AcceptedAt)
	})

	t.Run("reject deletes", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`DELETE FROM friendships`).
			WithArgs("f-1", "b").
			WillReturnRows(sqlmock.NewRows(friendshipCols).AddRow("f-1", "a", "b", "pending", now, nil))

		_, err := repo.Resolve(context.Background(), "f-1", "b", false, now)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong responder", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`UPDATE friendships`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT .* FROM friendships WHERE id = \$1`).
			WithArgs("f-1").
			WillReturnRows(sqlmock.NewRows(friendshipCols).AddRow("f-1", "a", "b", "pending", now, nil))

		_, err := repo.Resolve(context.Background(), "f-1", "a", true, now)
		assert.ErrorIs(t, err, ErrNotRecipient)
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`UPDATE friendships`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT .* FROM friendships WHERE id = \$1`).WillReturnError(sql.ErrNoRows)

		_, err := repo.Resolve(context.Background(), "f-9", "b", true, now)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestPostgresRepository_FriendIDs(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT CASE WHEN from_user_id = \$1`).
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"friend_id"}).AddRow("b").AddRow("c"))

	ids, err := repo.FriendIDs(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids)
}
