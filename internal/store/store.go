package store

import (
	"context"
	"errors"

	"github.com/seantiz/tatool/internal/model"
)

// ErrInvalidTransition is returned when a session status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// SessionStats holds aggregate session statistics.
type SessionStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByMode   map[string]int `json:"count_by_mode"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for sessions and their
// lifecycle events.
type Store interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]*model.Session, int, error)
	UpdateSessionStatus(ctx context.Context, id, status string) error
	UpdateSession(ctx context.Context, s *model.Session) error
	GetSessionStats(ctx context.Context) (*SessionStats, error)
	InsertEvent(ctx context.Context, e *model.Event) error
	GetEvents(ctx context.Context, sessionID string) ([]model.Event, error)
	Close() error
}
