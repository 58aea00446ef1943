package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alirun/StreamSaga/internal/models"
)

func TestProposalCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectExec("INSERT INTO proposals").
		WillReturnResult(sqlmock.NewResult(1, 1))

	desc := "a longer pitch"
	proposal := &models.Proposal{Title: "Bring back the bard", Description: &desc, TopicID: "t1", UserID: "u1"}
	err := repo.Create(context.Background(), proposal, pgvector.NewVector([]float32{0.1}))
	require.NoError(t, err)
	assert.NotEmpty(t, proposal.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalArchiveScopedByOwner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET archived_at = $3, updated_at = $3 WHERE id = $1 AND user_id = $2 AND archived_at IS NULL")).
		WithArgs("p1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	archived, err := repo.Archive(context.Background(), "p1", "u1")
	require.NoError(t, err)
	assert.True(t, archived)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalArchiveNonOwnerAffectsNothing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectExec("UPDATE proposals SET archived_at").
		WithArgs("p1", "intruder", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	archived, err := repo.Archive(context.Background(), "p1", "intruder")
	require.NoError(t, err)
	assert.False(t, archived)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalListActiveByTopic(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "description", "topic_id", "user_id", "archived_at", "approved_at", "created_at", "updated_at"}).
		AddRow("p1", "Bring back the bard", nil, "t1", "u1", nil, nil, now, now)
	mock.ExpectQuery("SELECT id, title, description, topic_id").
		WithArgs("t1").
		WillReturnRows(rows)

	proposals, err := repo.ListActiveByTopic(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.False(t, proposals[0].Archived())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalMatchByTopic(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "description", "topic_id", "user_id", "archived_at", "approved_at", "created_at", "updated_at", "similarity"}).
		AddRow("p1", "Bring back the bard", nil, "t1", "u1", nil, nil, now, now, 0.87)
	mock.ExpectQuery(regexp.QuoteMeta("1 - (embedding <=> $1) AS similarity")).
		WillReturnRows(rows)

	vec := pgvector.NewVector([]float32{0.1, 0.2})
	matches, err := repo.MatchByTopic(context.Background(), vec, "t1", 0.3, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0.87, matches[0].MatchScore, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalFindByIDsEmpty(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	proposals, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, proposals)
}

func TestProposalApproveMany(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET approved_at = $2, updated_at = $2 WHERE id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.ApproveMany(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
