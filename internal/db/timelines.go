package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/models"
)

func (db *DB) GetTimeline(ctx context.Context, videoID uuid.UUID) (*models.Timeline, error) {
	query := `SELECT data FROM timelines WHERE video_id = $1`

	timeline := &models.Timeline{}
	err := db.QueryRowContext(ctx, query, videoID).Scan(timeline)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("db.get_timeline", "no timeline for video %s", videoID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}
	return timeline, nil
}

// SaveTimeline replaces the stored timeline. Latest write wins.
func (db *DB) SaveTimeline(ctx context.Context, videoID uuid.UUID, timeline *models.Timeline) error {
	query := `
		INSERT INTO timelines (video_id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (video_id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
	`

	if _, err := db.ExecContext(ctx, query, videoID, *timeline); err != nil {
		return fmt.Errorf("failed to save timeline: %w", err)
	}
	return nil
}
