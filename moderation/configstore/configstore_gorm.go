package configstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/commentum/commentum/models"
)

type GormStore struct {
	DB *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.ConfigEntry{}); err != nil {
		return nil, err
	}
	return &GormStore{DB: db}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) (string, error) {
	var entry models.ConfigEntry
	err := s.DB.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (s *GormStore) Set(ctx context.Context, key, val string) error {
	return s.upsert(s.DB.WithContext(ctx), key, val)
}

// All writes land in one transaction so readers never observe a
// half-applied group (eg, an identity removed from one role set but not
// yet added to another).
func (s *GormStore) SetMulti(ctx context.Context, vals map[string]string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for k, v := range vals {
			if err := s.upsert(tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update re-reads the rows inside the transaction, locking them on
// backends that support it, so the recompute runs against the committed
// state rather than whatever the caller last observed.
func (s *GormStore) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// sqlite has a single writer and rejects FOR UPDATE
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var entries []models.ConfigEntry
		if err := q.Where("key IN ?", keys).Find(&entries).Error; err != nil {
			return err
		}
		cur := make(map[string]string, len(entries))
		for _, e := range entries {
			cur[e.Key] = e.Value
		}
		vals, err := fn(cur)
		if err != nil {
			return err
		}
		for k, v := range vals {
			if err := s.upsert(tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) List(ctx context.Context) (map[string]string, error) {
	var entries []models.ConfigEntry
	if err := s.DB.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}

func (s *GormStore) upsert(tx *gorm.DB, key, val string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.ConfigEntry{Key: key, Value: val}).Error
}
