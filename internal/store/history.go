package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/capitalize-ai/scheduling-agent/internal/model"
)

// HistoryStore is the relational conversation log.
type HistoryStore struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// NewHistoryStore creates a history store that stamps turns in loc.
func NewHistoryStore(db *DB, loc *time.Location) *HistoryStore {
	if loc == nil {
		loc = time.UTC
	}
	return &HistoryStore{db: db.gorm, loc: loc, now: time.Now}
}

// Append writes one immutable turn.
func (s *HistoryStore) Append(ctx context.Context, userID string, role model.Role, content string) error {
	turn := &model.ChatTurn{
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: s.now().In(s.loc).Format(time.RFC3339Nano),
	}
	if err := s.db.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("%w: failed to append chat turn: %v", ErrStorage, err)
	}
	return nil
}

// RecentWindow returns at most limit turns for userID, oldest first.
func (s *HistoryStore) RecentWindow(ctx context.Context, userID string, limit int) ([]model.ChatTurn, error) {
	if limit <= 0 {
		return nil, nil
	}

	var turns []model.ChatTurn
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read chat history: %v", ErrStorage, err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
