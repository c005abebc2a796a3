package extraction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// TerminalFields are the columns written together with a status transition.
// Content fields are only populated on the processing→completed edge,
// ErrorDetail only on processing→failed.
type TerminalFields struct {
	Title       string
	Content     string
	Metadata    json.RawMessage
	ErrorDetail string
}

type Repository interface {
	Create(ctx context.Context, ex *Extraction) error
	Get(ctx context.Context, id string) (*Extraction, error)
	List(ctx context.Context, status Status, limit int) ([]Summary, error)
	Transition(ctx context.Context, id string, from, to Status, fields TerminalFields) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, ex *Extraction) error {
	query := `INSERT INTO extractions (id, url, source_kind, status, channel_id, thread_ref)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		ex.ID, ex.URL, ex.SourceKind, ex.Status, ex.ChannelID, ex.ThreadRef).
		Scan(&ex.CreatedAt, &ex.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Extraction, error) {
	ex := &Extraction{}
	var metadata []byte
	query := `SELECT id, url, source_kind, status, COALESCE(title, ''), COALESCE(content, ''),
		COALESCE(metadata, 'null'), COALESCE(error_detail, ''), COALESCE(channel_id, ''),
		COALESCE(thread_ref, ''), created_at, updated_at FROM extractions WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ex.ID, &ex.URL, &ex.SourceKind, &ex.Status, &ex.Title, &ex.Content,
		&metadata, &ex.ErrorDetail, &ex.ChannelID, &ex.ThreadRef, &ex.CreatedAt, &ex.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if string(metadata) != "null" {
		ex.Metadata = json.RawMessage(metadata)
	}
	return ex, nil
}

func (r *PostgresRepo) List(ctx context.Context, status Status, limit int) ([]Summary, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		query := `SELECT id, COALESCE(title, ''), source_kind, status, created_at FROM extractions
			WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		rows, err = r.db.QueryContext(ctx, query, status, limit)
	} else {
		query := `SELECT id, COALESCE(title, ''), source_kind, status, created_at FROM extractions
			ORDER BY created_at DESC LIMIT $1`
		rows, err = r.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.SourceKind, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Transition performs the state-machine edge as a single conditional update:
// the status check and the write are one atomic statement, so two concurrent
// attempts on the same edge cannot both succeed.
func (r *PostgresRepo) Transition(ctx context.Context, id string, from, to Status, fields TerminalFields) error {
	var metadata any
	if len(fields.Metadata) > 0 {
		metadata = []byte(fields.Metadata)
	}
	query := `UPDATE extractions SET status = $1, title = NULLIF($2, ''), content = NULLIF($3, ''),
		metadata = $4, error_detail = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $6 AND status = $7`
	res, err := r.db.ExecContext(ctx, query, to, fields.Title, fields.Content, metadata, fields.ErrorDetail, id, from)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %s cannot move %s -> %s (currently %s)",
			ErrInvalidTransition, id, from, to, current.Status)
	}
	return nil
}
