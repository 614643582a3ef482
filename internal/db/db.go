package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/bobarin/reelsmith/internal/models"
)

// Repository persists the video catalog and timelines.
type Repository interface {
	CreateVideo(ctx context.Context, video *models.Video) error
	GetVideo(ctx context.Context, id uuid.UUID) (*models.Video, error)
	ListVideos(ctx context.Context) ([]models.Video, error)
	UpdateVideoRender(ctx context.Context, id uuid.UUID, outcome models.RenderOutcome) error

	// GetTimeline returns a not-found error when the video has no saved timeline.
	GetTimeline(ctx context.Context, videoID uuid.UUID) (*models.Timeline, error)
	SaveTimeline(ctx context.Context, videoID uuid.UUID, timeline *models.Timeline) error

	Close() error
}

// DB is the Postgres-backed repository.
type DB struct {
	*sql.DB
}

var _ Repository = (*DB)(nil)

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{conn}
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	id          UUID PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'draft',
	duration    TEXT NOT NULL DEFAULT '0:00',
	output_path TEXT,
	public_url  TEXT,
	error_message TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS timelines (
	video_id   UUID PRIMARY KEY REFERENCES videos(id) ON DELETE CASCADE,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
