// Package postgres implements the memo store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onebitebitcoin/zentel/internal/memo"
)

// DB is the slice of pgxpool.Pool the store uses, also satisfied by pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// MemoStore implements memo.Store on a Postgres database.
type MemoStore struct {
	db DB
}

// NewMemoStore wraps the given pool or mock.
func NewMemoStore(db DB) *MemoStore {
	return &MemoStore{db: db}
}

const getMemoQuery = `
SELECT id, user_id, memo_type, content, COALESCE(source_url, ''),
       analysis_status, COALESCE(analysis_error, ''),
       COALESCE(fetched_content, ''), COALESCE(context, ''), COALESCE(summary, ''),
       COALESCE(original_language, ''), COALESCE(translated_content, ''),
       COALESCE(highlights, '[]'::jsonb), COALESCE(matched_interests, '{}'),
       COALESCE(og_title, ''), COALESCE(og_image, ''),
       created_at, updated_at
FROM memos
WHERE id = $1`

// GetMemo loads one memo row.
func (s *MemoStore) GetMemo(ctx context.Context, id string) (*memo.Memo, error) {
	var (
		m           memo.Memo
		highlightsB []byte
	)
	err := s.db.QueryRow(ctx, getMemoQuery, id).Scan(
		&m.ID, &m.UserID, &m.Type, &m.Content, &m.SourceURL,
		&m.AnalysisStatus, &m.AnalysisError,
		&m.FetchedContent, &m.Context, &m.Summary,
		&m.OriginalLanguage, &m.TranslatedContent,
		&highlightsB, &m.MatchedInterests,
		&m.OGTitle, &m.OGImage,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, memo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query memo %s: %w", id, err)
	}
	if len(highlightsB) > 0 {
		if err := json.Unmarshal(highlightsB, &m.Highlights); err != nil {
			return nil, fmt.Errorf("decode highlights for memo %s: %w", id, err)
		}
	}
	return &m, nil
}

const updateAnalysisQuery = `
UPDATE memos
SET fetched_content = $2, context = $3, summary = $4,
    original_language = $5, translated_content = $6,
    highlights = $7, matched_interests = $8,
    og_title = $9, og_image = $10,
    updated_at = now()
WHERE id = $1`

// UpdateAnalysis overwrites the analysis fields of a memo in one statement.
func (s *MemoStore) UpdateAnalysis(ctx context.Context, id string, update memo.AnalysisUpdate) error {
	highlights := update.Highlights
	if highlights == nil {
		highlights = []memo.Highlight{}
	}
	highlightsB, err := json.Marshal(highlights)
	if err != nil {
		return fmt.Errorf("encode highlights: %w", err)
	}
	interests := update.MatchedInterests
	if interests == nil {
		interests = []string{}
	}

	tag, err := s.db.Exec(ctx, updateAnalysisQuery,
		id, update.FetchedContent, update.Context, update.Summary,
		update.OriginalLanguage, update.TranslatedContent,
		highlightsB, interests,
		update.OGTitle, update.OGImage,
	)
	if err != nil {
		return fmt.Errorf("update analysis for memo %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return memo.ErrNotFound
	}
	return nil
}

const setStatusQuery = `
UPDATE memos
SET analysis_status = $2, analysis_error = $3, updated_at = now()
WHERE id = $1`

// SetStatus transitions the analysis status. The error message is persisted
// only for failed and cleared otherwise.
func (s *MemoStore) SetStatus(ctx context.Context, id string, status memo.AnalysisStatus, errMsg string) error {
	if status != memo.StatusFailed {
		errMsg = ""
	}
	tag, err := s.db.Exec(ctx, setStatusQuery, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("set status for memo %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return memo.ErrNotFound
	}
	return nil
}

const getInterestsQuery = `
SELECT keyword
FROM user_interests
WHERE user_id = $1
ORDER BY created_at`

// GetUserInterests lists the user's interest keywords.
func (s *MemoStore) GetUserInterests(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, getInterestsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("query interests for user %s: %w", userID, err)
	}
	defer rows.Close()

	var interests []string
	for rows.Next() {
		var keyword string
		if err := rows.Scan(&keyword); err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		interests = append(interests, keyword)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interests: %w", err)
	}
	return interests, nil
}
