package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sessionRow is the single key/value row holding the record
type sessionRow struct {
	Slot       string `gorm:"primaryKey"`
	Credential string
	UserID     string
	Name       string
	Email      string
	Role       string
	StoredAt   time.Time
}

func (sessionRow) TableName() string {
	return "sessions"
}

// SQLiteStore keeps the record in a local SQLite database
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" is accepted.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("error creating session directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Record, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("slot = ?", CredentialKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &Record{
		Credential: row.Credential,
		Identity: Identity{
			UserID: row.UserID,
			Name:   row.Name,
			Email:  row.Email,
			Role:   roleOf(row.Role),
		},
		StoredAt: row.StoredAt,
	}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	row := &sessionRow{
		Slot:       CredentialKey,
		Credential: rec.Credential,
		UserID:     rec.Identity.UserID,
		Name:       rec.Identity.Name,
		Email:      rec.Identity.Email,
		Role:       string(rec.Identity.Role),
		StoredAt:   rec.StoredAt,
	}
	return s.db.WithContext(ctx).Save(row).Error
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("slot = ?", CredentialKey).Delete(&sessionRow{}).Error
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
