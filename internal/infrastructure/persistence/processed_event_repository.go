package persistence

import (
	"context"
	"time"

	"github.com/creditgw/backend/internal/domain/billing"
	"github.com/creditgw/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedEventModel records payment provider event IDs that have been
// handled. The primary key constraint is the dedup guarantee: a retried
// delivery hits the conflict and is dropped.
type ProcessedEventModel struct {
	EventID     string    `gorm:"type:varchar(255);primaryKey"`
	ProcessedAt time.Time `gorm:"index;not null"`
	ExpiresAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for the model
func (ProcessedEventModel) TableName() string {
	return "processed_events"
}

// ProcessedEventRepository implements billing.ProcessedEventRepository on SQL.
// Unlike the cache-backed stores, marks here survive restarts.
type ProcessedEventRepository struct {
	db *gorm.DB
}

// NewProcessedEventRepository creates a new processed event repository
func NewProcessedEventRepository(db *gorm.DB) *ProcessedEventRepository {
	return &ProcessedEventRepository{db: db}
}

// MarkProcessed claims an event ID. Returns true if this call took the
// claim, false if the event was already recorded.
func (r *ProcessedEventRepository) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	model := &ProcessedEventModel{
		EventID:     eventID,
		ProcessedAt: now,
		ExpiresAt:   now.Add(ttl),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// Unmark releases a claimed event ID so the provider retry can be handled
func (r *ProcessedEventRepository) Unmark(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).
		Delete(&ProcessedEventModel{}, "event_id = ?", eventID).Error
}

// IsProcessed checks whether an event ID has been recorded
func (r *ProcessedEventRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ProcessedEventModel{}).
		Where("event_id = ?", eventID).
		Where("expires_at > ?", time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PruneOlderThan removes dedup rows processed before the cutoff and
// returns the number of rows removed
func (r *ProcessedEventRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&ProcessedEventModel{})
	return result.RowsAffected, result.Error
}

// Close is a no-op; the repository does not own the database connection
func (r *ProcessedEventRepository) Close() error {
	return nil
}

// Ensure ProcessedEventRepository implements the interfaces
var (
	_ billing.ProcessedEventRepository = (*ProcessedEventRepository)(nil)
	_ shared.IdempotencyStore          = (*ProcessedEventRepository)(nil)
)
