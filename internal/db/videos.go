package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bobarin/reelsmith/internal/apperr"
	"github.com/bobarin/reelsmith/internal/models"
)

const uniqueViolation = "23505"

func (db *DB) CreateVideo(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (id, title, status, duration)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := db.QueryRowContext(
		ctx, query,
		video.ID, video.Title, video.Status, video.Duration,
	).Scan(&video.CreatedAt, &video.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return apperr.Conflict("db.create_video", "video %s already exists", video.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

func (db *DB) GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	query := `
		SELECT id, title, status, duration, output_path, public_url, error_message, created_at, updated_at
		FROM videos
		WHERE id = $1
	`

	video := &models.Video{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&video.ID, &video.Title, &video.Status, &video.Duration,
		&video.OutputPath, &video.PublicURL, &video.ErrorMessage,
		&video.CreatedAt, &video.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("db.get_video", "video %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return video, nil
}

// ListVideos returns videos ordered by creation date (newest first).
func (db *DB) ListVideos(ctx context.Context) ([]models.Video, error) {
	query := `
		SELECT id, title, status, duration, output_path, public_url, error_message, created_at, updated_at
		FROM videos
		ORDER BY created_at DESC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(
			&v.ID, &v.Title, &v.Status, &v.Duration,
			&v.OutputPath, &v.PublicURL, &v.ErrorMessage,
			&v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}

	return videos, rows.Err()
}

func (db *DB) UpdateVideoRender(ctx context.Context, id uuid.UUID, outcome models.RenderOutcome) error {
	query := `
		UPDATE videos
		SET status = $2,
			duration = COALESCE(NULLIF($3, ''), duration),
			output_path = NULLIF($4, ''),
			public_url = NULLIF($5, ''),
			error_message = NULLIF($6, ''),
			updated_at = now()
		WHERE id = $1
	`

	res, err := db.ExecContext(ctx, query,
		id, outcome.Status, outcome.Duration, outcome.OutputPath, outcome.PublicURL, outcome.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to update video render: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("db.update_video_render", "video %s not found", id)
	}
	return nil
}
