package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestVoteFind(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "proposal_id", "user_id", "archived_at", "created_at", "updated_at"}).
		AddRow("v1", "p1", "u1", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, proposal_id, user_id, archived_at, created_at, updated_at FROM votes WHERE proposal_id = $1 AND user_id = $2 LIMIT 1")).
		WithArgs("p1", "u1").
		WillReturnRows(rows)

	vote, err := repo.Find(context.Background(), "p1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "v1", vote.ID)
	assert.True(t, vote.Active())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteFindNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	mock.ExpectQuery("SELECT id, proposal_id").
		WithArgs("p1", "u1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "p1", "u1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	mock.ExpectExec("INSERT INTO votes").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), "p1", "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRestore(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE votes SET archived_at = NULL, updated_at = $2 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Restore(context.Background(), "v1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteArchiveActiveIdempotent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	// Zero rows affected must not surface an error.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE votes SET archived_at = $3, updated_at = $3 WHERE proposal_id = $1 AND user_id = $2 AND archived_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ArchiveActive(context.Background(), "p1", "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteCountActiveDefaultsToZero(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	rows := sqlmock.NewRows([]string{"proposal_id", "votes"}).AddRow("p1", 3)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT proposal_id, COUNT(*) AS votes FROM votes WHERE proposal_id = ANY($1) AND archived_at IS NULL GROUP BY proposal_id")).
		WillReturnRows(rows)

	counts, err := repo.CountActive(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, 3, counts["p1"])
	assert.Equal(t, 0, counts["p2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteCountActiveEmptyInput(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	counts, err := repo.CountActive(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestActiveProposalIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVoteRepository(db)

	rows := sqlmock.NewRows([]string{"proposal_id"}).AddRow("p2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT proposal_id FROM votes WHERE user_id = $1 AND proposal_id = ANY($2) AND archived_at IS NULL")).
		WillReturnRows(rows)

	voted, err := repo.ActiveProposalIDs(context.Background(), "u1", []string{"p1", "p2"})
	require.NoError(t, err)
	_, ok := voted["p2"]
	assert.True(t, ok)
	_, ok = voted["p1"]
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
