// Package memory provides an in-memory memo store for development and
// tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/onebitebitcoin/zentel/internal/memo"
)

// MemoStore implements memo.Store on a mutex-guarded map.
type MemoStore struct {
	mu        sync.RWMutex
	memos     map[string]*memo.Memo
	interests map[string][]string
}

// NewMemoStore creates an empty store.
func NewMemoStore() *MemoStore {
	return &MemoStore{
		memos:     make(map[string]*memo.Memo),
		interests: make(map[string][]string),
	}
}

// PutMemo inserts or replaces a memo. Test and seed helper.
func (s *MemoStore) PutMemo(m *memo.Memo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	if cp.AnalysisStatus == "" {
		cp.AnalysisStatus = memo.StatusPending
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.memos[cp.ID] = &cp
}

// SetInterests sets a user's interest keywords. Test and seed helper.
func (s *MemoStore) SetInterests(userID string, interests []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interests[userID] = append([]string(nil), interests...)
}

// GetMemo returns a copy of the memo or memo.ErrNotFound.
func (s *MemoStore) GetMemo(_ context.Context, id string) (*memo.Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memos[id]
	if !ok {
		return nil, memo.ErrNotFound
	}
	cp := *m
	cp.Highlights = append([]memo.Highlight(nil), m.Highlights...)
	cp.MatchedInterests = append([]string(nil), m.MatchedInterests...)
	return &cp, nil
}

// UpdateAnalysis overwrites the analysis fields.
func (s *MemoStore) UpdateAnalysis(_ context.Context, id string, update memo.AnalysisUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memos[id]
	if !ok {
		return memo.ErrNotFound
	}
	m.FetchedContent = update.FetchedContent
	m.Context = update.Context
	m.Summary = update.Summary
	m.OriginalLanguage = update.OriginalLanguage
	m.TranslatedContent = update.TranslatedContent
	m.Highlights = append([]memo.Highlight(nil), update.Highlights...)
	m.MatchedInterests = append([]string(nil), update.MatchedInterests...)
	m.OGTitle = update.OGTitle
	m.OGImage = update.OGImage
	m.UpdatedAt = time.Now()
	return nil
}

// SetStatus transitions the analysis status, storing errMsg only for failed.
func (s *MemoStore) SetStatus(_ context.Context, id string, status memo.AnalysisStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memos[id]
	if !ok {
		return memo.ErrNotFound
	}
	m.AnalysisStatus = status
	if status == memo.StatusFailed {
		m.AnalysisError = errMsg
	} else {
		m.AnalysisError = ""
	}
	m.UpdatedAt = time.Now()
	return nil
}

// GetUserInterests returns the user's interests, nil for unknown users.
func (s *MemoStore) GetUserInterests(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.interests[userID]...), nil
}
