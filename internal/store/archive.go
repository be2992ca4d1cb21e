package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FinishedGame is one terminal outcome recorded locally, so the viewer
// keeps a history even though the lobby itself is rebuilt from the
// event stream on every connect.
type FinishedGame struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	GameID     string    `json:"gameId" gorm:"index;not null"`
	WinnerID   *string   `json:"winnerId"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recordedAt"`
}

// TableName returns the table name for GORM
func (FinishedGame) TableName() string {
	return "finished_games"
}

// Archive persists finished-game outcomes to a local sqlite database
type Archive struct {
	db *gorm.DB
}

// Open opens (and migrates) the archive at the given path
func Open(path string) (*Archive, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&FinishedGame{}); err != nil {
		return nil, err
	}

	return &Archive{db: db}, nil
}

// RecordFinished stores one terminal outcome. Duplicate delivery of the
// same game/reason pair is collapsed to a single record.
func (a *Archive) RecordFinished(ctx context.Context, gameID string, winnerID *string, reason string) error {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&FinishedGame{}).
		Where("game_id = ? AND reason = ?", gameID, reason).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	record := &FinishedGame{
		ID:         uuid.New(),
		GameID:     gameID,
		WinnerID:   winnerID,
		Reason:     reason,
		RecordedAt: time.Now(),
	}
	return a.db.WithContext(ctx).Create(record).Error
}

// Recent returns the most recently recorded outcomes, newest first
func (a *Archive) Recent(ctx context.Context, limit int) ([]FinishedGame, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []FinishedGame
	err := a.db.WithContext(ctx).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
