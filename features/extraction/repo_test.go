package extraction

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepo(db), mock
}

func TestRepoCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO extractions").
		WithArgs("abc12345", "https://example.com/post", "article", "pending", "C123", "T456").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	ex := &Extraction{
		ID:         "abc12345",
		URL:        "https://example.com/post",
		SourceKind: "article",
		Status:     StatusPending,
		ChannelID:  "C123",
		ThreadRef:  "T456",
	}
	require.NoError(t, repo.Create(context.Background(), ex))
	assert.Equal(t, now, ex.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoCreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("INSERT INTO extractions").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &Extraction{ID: "abc12345", Status: StatusPending})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func extractionRows(t *testing.T, status Status) *sqlmock.Rows {
	t.Helper()
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "url", "source_kind", "status", "title", "content",
		"metadata", "error_detail", "channel_id", "thread_ref", "created_at", "updated_at",
	}).AddRow(
		"abc12345", "https://example.com/post", "article", string(status), "A Title", "Body text",
		[]byte(`{"word_count":42}`), "", "", "", now, now,
	)
}

func TestRepoGet(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM extractions WHERE id").
		WithArgs("abc12345").
		WillReturnRows(extractionRows(t, StatusCompleted))

	ex, err := repo.Get(context.Background(), "abc12345")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, ex.Status)
	assert.Equal(t, "A Title", ex.Title)
	assert.JSONEq(t, `{"word_count":42}`, string(ex.Metadata))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM extractions WHERE id").
		WithArgs("missing1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepoList(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "title", "source_kind", "status", "created_at"}).
		AddRow("id111111", "First", "article", "completed", now).
		AddRow("id222222", "Second", "video", "failed", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM extractions ORDER BY created_at DESC").
		WithArgs(20).
		WillReturnRows(rows)

	summaries, err := repo.List(context.Background(), "", 20)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "id111111", summaries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoListFiltered(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM extractions\\s+WHERE status").
		WithArgs("failed", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "source_kind", "status", "created_at"}))

	summaries, err := repo.List(context.Background(), StatusFailed, 10)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoTransition(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE extractions SET status").
		WithArgs("processing", "", "", nil, "", "abc12345", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Transition(context.Background(), "abc12345", StatusPending, StatusProcessing, TerminalFields{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoTransitionCompleted(t *testing.T) {
	repo, mock := newMockRepo(t)
	metadata := json.RawMessage(`{"word_count":42}`)

	mock.ExpectExec("UPDATE extractions SET status").
		WithArgs("completed", "A Title", "Body text", []byte(metadata), "", "abc12345", "processing").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Transition(context.Background(), "abc12345", StatusProcessing, StatusCompleted, TerminalFields{
		Title:    "A Title",
		Content:  "Body text",
		Metadata: metadata,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A zero-row update means the record is not on the expected edge: terminal
// records stay terminal.
func TestRepoTransitionInvalid(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE extractions SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM extractions WHERE id").
		WithArgs("abc12345").
		WillReturnRows(extractionRows(t, StatusCompleted))

	err := repo.Transition(context.Background(), "abc12345", StatusProcessing, StatusFailed, TerminalFields{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoTransitionMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE extractions SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM extractions WHERE id").
		WithArgs("missing1").
		WillReturnError(sql.ErrNoRows)

	err := repo.Transition(context.Background(), "missing1", StatusPending, StatusProcessing, TerminalFields{})
	assert.ErrorIs(t, err, ErrNotFound)
}
